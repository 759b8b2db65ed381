// Package config defines the YAML configuration surface of the saturn
// retention engine and its loading pipeline: parse, apply defaults, apply
// SATURN_* environment overrides, validate.
package config
