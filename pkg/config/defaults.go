package config

import "time"

// Default values for configuration fields.
const (
	// Storage defaults
	DefaultStorageBackend    = "sqlite"
	DefaultSQLitePath        = "data/retention.db"
	DefaultSQLiteDriver      = "sqlite3"
	DefaultSQLiteMaxOpen     = 10
	DefaultSQLiteMaxIdle     = 5
	DefaultSQLiteWALMode     = true
	DefaultSQLiteBusyTimeout = 5 * time.Second

	// Rules defaults
	DefaultRulesPath        = "./rules"
	DefaultRulesWatch       = false
	DefaultDebounceInterval = 250 * time.Millisecond

	// Engine defaults
	DefaultLeadDays        = 30
	DefaultConflictRetries = 3

	// Sweep defaults
	DefaultSweepSchedule       = "0 6 * * *"
	DefaultSweepShards         = 4
	DefaultRepeatIntervalHours = 24
	DefaultMaxRepeats          = 10

	// Telemetry defaults
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
	DefaultLogOutput            = "stdout"
	DefaultMetricsEnabled       = true
	DefaultMetricsListenAddress = "127.0.0.1:9465"
	DefaultMetricsNamespace     = "saturn"
)

// ApplyDefaults fills in default values for any unset configuration fields.
// It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.Driver == "" {
		cfg.Storage.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Storage.SQLite.MaxOpenConns == 0 {
		cfg.Storage.SQLite.MaxOpenConns = DefaultSQLiteMaxOpen
	}
	if cfg.Storage.SQLite.MaxIdleConns == 0 {
		cfg.Storage.SQLite.MaxIdleConns = DefaultSQLiteMaxIdle
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if !cfg.Storage.SQLite.WALMode {
		cfg.Storage.SQLite.WALMode = DefaultSQLiteWALMode
	}

	if len(cfg.Rules.Paths) == 0 {
		cfg.Rules.Paths = []string{DefaultRulesPath}
	}
	if cfg.Rules.DebounceInterval == 0 {
		cfg.Rules.DebounceInterval = DefaultDebounceInterval
	}

	if cfg.Engine.LeadDays == 0 {
		cfg.Engine.LeadDays = DefaultLeadDays
	}
	if cfg.Engine.ConflictRetries == 0 {
		cfg.Engine.ConflictRetries = DefaultConflictRetries
	}

	if cfg.Sweep.Schedule == "" {
		cfg.Sweep.Schedule = DefaultSweepSchedule
	}
	if cfg.Sweep.Shards == 0 {
		cfg.Sweep.Shards = DefaultSweepShards
	}
	if cfg.Sweep.RepeatIntervalHours == 0 {
		cfg.Sweep.RepeatIntervalHours = DefaultRepeatIntervalHours
	}
	if cfg.Sweep.MaxRepeats == 0 {
		cfg.Sweep.MaxRepeats = DefaultMaxRepeats
	}

	if len(cfg.Alerts.Channels) == 0 {
		cfg.Alerts.Channels = []string{"log"}
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Logging.Output == "" {
		cfg.Telemetry.Logging.Output = DefaultLogOutput
	}
	if !cfg.Telemetry.Metrics.Enabled {
		cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// DefaultConfig returns a configuration populated entirely with defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
