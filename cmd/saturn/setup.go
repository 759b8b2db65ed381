package main

import (
	"fmt"
	"log/slog"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/retention/alerts"
	"mercator-hq/saturn/pkg/retention/ledger"
	"mercator-hq/saturn/pkg/retention/rules"
	"mercator-hq/saturn/pkg/retention/storage"
	"mercator-hq/saturn/pkg/telemetry/logging"
)

// loadRuntime loads the configuration and sets up the process-wide logger.
// Flag overrides win over both file values and SATURN_* environment
// variables.
func loadRuntime(logLevel string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging)
	if err != nil {
		return nil, nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	return cfg, logger, nil
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.NewSQLiteStore(&storage.SQLiteConfig{
			Path:         cfg.Storage.SQLite.Path,
			Driver:       cfg.Storage.SQLite.Driver,
			MaxOpenConns: cfg.Storage.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Storage.SQLite.MaxIdleConns,
			WALMode:      cfg.Storage.SQLite.WALMode,
			BusyTimeout:  cfg.Storage.SQLite.BusyTimeout,
		})
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// loadRules loads the configured rule files into a resolver.
func loadRules(cfg *config.Config, logger *slog.Logger) (*rules.FileSource, *rules.Resolver, error) {
	source := rules.NewFileSource(cfg.Rules.Paths...)
	loaded, err := source.Load()
	if err != nil {
		return nil, nil, err
	}

	resolver := rules.NewResolver(logger)
	if err := resolver.Load(loaded); err != nil {
		return nil, nil, err
	}

	return source, resolver, nil
}

// newSweeper assembles a sweeper over the given store.
func newSweeper(cfg *config.Config, store storage.Store, logger *slog.Logger, sweepMetrics alerts.Metrics) *alerts.Sweeper {
	led := ledger.New(store, logger)
	dispatcher := alerts.NewLogDispatcher(logger)
	recipients := &alerts.StaticResolver{
		Recipients: cfg.Alerts.Recipients,
		Channels:   cfg.Alerts.Channels,
	}
	sweepConfig := &alerts.Config{
		Shards:              cfg.Sweep.Shards,
		RepeatIntervalHours: cfg.Sweep.RepeatIntervalHours,
		MaxRepeats:          cfg.Sweep.MaxRepeats,
		ConflictRetries:     cfg.Engine.ConflictRetries,
	}
	return alerts.NewSweeper(store, led, sweepConfig, dispatcher, recipients, sweepMetrics)
}
