package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g. "storage.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All validation errors are
// collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	switch cfg.Storage.Backend {
	case "sqlite", "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("must be \"sqlite\" or \"memory\", got %q", cfg.Storage.Backend),
		})
	}
	if cfg.Storage.Backend == "sqlite" {
		if cfg.Storage.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: "cannot be empty",
			})
		}
		switch cfg.Storage.SQLite.Driver {
		case "sqlite3", "sqlite":
		default:
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.driver",
				Message: fmt.Sprintf("must be \"sqlite3\" or \"sqlite\", got %q", cfg.Storage.SQLite.Driver),
			})
		}
		if cfg.Storage.SQLite.MaxIdleConns > cfg.Storage.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.max_idle_conns",
				Message: "cannot exceed max_open_conns",
			})
		}
	}

	if len(cfg.Rules.Paths) == 0 {
		errs = append(errs, FieldError{
			Field:   "rules.paths",
			Message: "at least one rule source is required",
		})
	}
	if cfg.Rules.DebounceInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "rules.debounce_interval",
			Message: "cannot be negative",
		})
	}

	if cfg.Engine.LeadDays < 1 || cfg.Engine.LeadDays > 3650 {
		errs = append(errs, FieldError{
			Field:   "engine.lead_days",
			Message: fmt.Sprintf("must be between 1 and 3650 days, got %d", cfg.Engine.LeadDays),
		})
	}
	if cfg.Engine.ConflictRetries < 1 {
		errs = append(errs, FieldError{
			Field:   "engine.conflict_retries",
			Message: "must be at least 1",
		})
	}

	if cfg.Sweep.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Sweep.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "sweep.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.Sweep.Shards < 1 {
		errs = append(errs, FieldError{
			Field:   "sweep.shards",
			Message: "must be at least 1",
		})
	}
	if cfg.Sweep.RepeatIntervalHours < 1 {
		errs = append(errs, FieldError{
			Field:   "sweep.repeat_interval_hours",
			Message: "must be at least 1",
		})
	}
	if cfg.Sweep.MaxRepeats < 0 {
		errs = append(errs, FieldError{
			Field:   "sweep.max_repeats",
			Message: "cannot be negative",
		})
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Telemetry.Logging.Level),
		})
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be \"json\" or \"text\", got %q", cfg.Telemetry.Logging.Format),
		})
	}
	switch cfg.Telemetry.Logging.Output {
	case "stdout", "stderr":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.output",
			Message: fmt.Sprintf("must be \"stdout\" or \"stderr\", got %q", cfg.Telemetry.Logging.Output),
		})
	}
	if cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.listen_address",
			Message: "required when metrics are enabled",
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
