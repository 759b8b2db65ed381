package config

import "time"

// Config is the root configuration structure for saturn. It contains all
// configuration sections for storage, retention rules, the engine, the
// alert sweep, and telemetry.
type Config struct {
	// Storage contains persistence configuration including backend
	// selection and SQLite tuning.
	Storage StorageConfig `yaml:"storage"`

	// Rules contains the retention rule sources and hot-reload settings.
	Rules RulesConfig `yaml:"rules"`

	// Engine contains lifecycle engine settings such as the alert lead
	// window and optimistic retry bounds.
	Engine EngineConfig `yaml:"engine"`

	// Sweep contains the scheduled sweep configuration: cron schedule,
	// sharding, and alert repetition policy.
	Sweep SweepConfig `yaml:"sweep"`

	// Alerts contains notification routing defaults.
	Alerts AlertsConfig `yaml:"alerts"`

	// Telemetry contains observability configuration for logging and
	// metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// Backend selects the storage implementation: "sqlite" or "memory".
	// The memory backend keeps nothing across restarts and exists for
	// tests and ephemeral runs.
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains settings for the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite storage settings.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/retention.db"
	Path string `yaml:"path"`

	// Driver selects the SQLite driver: "sqlite3" (cgo) or "sqlite"
	// (pure Go). Default: "sqlite3"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RulesConfig contains retention rule loading configuration.
type RulesConfig struct {
	// Paths lists the YAML files and directories rules are loaded from.
	// Directories are walked recursively; hidden files and directories
	// are skipped.
	// Default: ["./rules"]
	Paths []string `yaml:"paths"`

	// Watch enables hot reload when rule files change. An invalid edit
	// keeps the previous rule set active.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces rapid file events into one reload.
	// Default: 250ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// EngineConfig contains lifecycle engine settings.
type EngineConfig struct {
	// LeadDays is the alert window before expiry, in days. Bounds: 1-3650.
	// Default: 30
	LeadDays int `yaml:"lead_days"`

	// ConflictRetries bounds retries after optimistic version conflicts.
	// Default: 3
	ConflictRetries int `yaml:"conflict_retries"`
}

// SweepConfig contains the scheduled sweep settings.
type SweepConfig struct {
	// Schedule is a standard cron expression. Empty disables scheduled
	// sweeping; manual sweeps stay available through the CLI.
	// Default: "0 6 * * *" (daily at 6 AM)
	Schedule string `yaml:"schedule"`

	// Shards is the number of parallel workers a sweep fans out to.
	// Default: 4
	Shards int `yaml:"shards"`

	// RepeatIntervalHours is how often unacknowledged expiry alerts are
	// re-sent. Default: 24
	RepeatIntervalHours int `yaml:"repeat_interval_hours"`

	// MaxRepeats caps re-sends of a repeating alert.
	// Default: 10
	MaxRepeats int `yaml:"max_repeats"`
}

// AlertsConfig contains notification routing defaults.
type AlertsConfig struct {
	// Recipients receive every alert when no per-record routing exists.
	Recipients []string `yaml:"recipients"`

	// Channels lists delivery channels. With no external transport
	// configured, alerts go to the structured log.
	// Default: ["log"]
	Channels []string `yaml:"channels"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// Output is the destination: "stdout" or "stderr".
	// Default: "stdout"
	Output string `yaml:"output"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address for the metrics HTTP endpoint.
	// Default: "127.0.0.1:9465"
	ListenAddress string `yaml:"listen_address"`

	// Namespace is the metric name prefix.
	// Default: "saturn"
	Namespace string `yaml:"namespace"`
}
