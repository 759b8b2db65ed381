package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/retention/alerts"
	"mercator-hq/saturn/pkg/retention/rules"
	"mercator-hq/saturn/pkg/telemetry/metrics"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Saturn scheduler daemon",
	Long: `Start the Saturn scheduler daemon with the specified configuration.

The daemon runs the alert sweep on the configured cron schedule, serves the
Prometheus metrics endpoint, and hot-reloads retention rule files when
watching is enabled.

Examples:
  # Start with default config
  saturn run

  # Start with custom config
  saturn run --config /etc/saturn/config.yaml

  # Validate config without starting the daemon
  saturn run --dry-run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the daemon")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime(runFlags.logLevel)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Saturn v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	store, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()
	fmt.Printf("✓ Storage initialized (%s backend)\n", cfg.Storage.Backend)

	source, resolver, err := loadRules(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Retention rules loaded")

	ctx := cli.SetupSignalHandler()

	// Metrics endpoint
	var sweepMetrics alerts.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		collector := metrics.NewCollector(&cfg.Telemetry.Metrics)
		sweepMetrics = collector.Retention
		go func() {
			if err := collector.Serve(ctx, cfg.Telemetry.Metrics.ListenAddress); err != nil {
				slog.Error("metrics listener failed", "error", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Telemetry.Metrics.ListenAddress)
	}

	// Rule file hot reload
	if cfg.Rules.Watch {
		watcher, err := rules.NewWatcher(&rules.WatcherConfig{
			Paths:            cfg.Rules.Paths,
			DebounceInterval: cfg.Rules.DebounceInterval,
		}, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		go func() {
			err := watcher.Watch(ctx, func() error {
				reloaded, err := source.Load()
				if err != nil {
					return err
				}
				return resolver.Load(reloaded)
			})
			if err != nil {
				slog.Error("rules watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
		fmt.Println("✓ Rules hot reload enabled")
	}

	// Alert sweep scheduler
	sweeper := newSweeper(cfg, store, logger, sweepMetrics)
	if cfg.Sweep.Schedule == "" {
		slog.Warn("no sweep schedule configured, scheduled sweeping disabled")
	} else {
		scheduler := alerts.NewScheduler(sweeper, cfg.Sweep.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer scheduler.Stop()
		if next := scheduler.NextRun(); next != nil {
			fmt.Printf("✓ Sweep scheduled (%s, next run %s)\n", cfg.Sweep.Schedule, next.Format("2006-01-02 15:04:05 MST"))
		}
	}

	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")
	fmt.Println("✓ Daemon stopped")
	return nil
}
