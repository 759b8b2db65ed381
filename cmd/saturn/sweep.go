package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/saturn/pkg/cli"
)

var sweepFlags struct {
	format string
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single alert sweep and exit",
	Long: `Run a single alert sweep over every live retention process and exit.

The sweep applies clock-driven state transitions, creates any alerts the
current states demand, and dispatches pending alerts. It is idempotent:
running it twice in a row does not duplicate transitions or alerts.

Examples:
  # One-shot sweep with default config
  saturn sweep

  # JSON result for scripting
  saturn sweep --format json`,
	RunE: runSweepOnce,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVar(&sweepFlags.format, "format", "text", "output format: text, json")
}

// sweepReport is the printable shape of a sweep result.
type sweepReport struct {
	Examined     int    `json:"examined"`
	Transitioned int    `json:"transitioned"`
	Created      int    `json:"alerts_created"`
	Dispatched   int    `json:"alerts_dispatched"`
	Errors       int    `json:"errors"`
	Duration     string `json:"duration"`
}

func runSweepOnce(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime("")
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer store.Close()

	ctx := cli.SetupSignalHandler()

	sweeper := newSweeper(cfg, store, logger, nil)
	result, err := sweeper.Sweep(ctx)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}

	report := sweepReport{
		Examined:     result.Examined,
		Transitioned: result.Transitioned,
		Created:      result.Created,
		Dispatched:   result.Dispatched,
		Errors:       result.Errors,
		Duration:     result.Duration.String(),
	}

	if sweepFlags.format == "json" {
		formatter := cli.NewFormatter(cli.FormatJSON)
		return formatter.FormatTo(os.Stdout, report)
	}

	fmt.Printf("Examined:     %d\n", report.Examined)
	fmt.Printf("Transitioned: %d\n", report.Transitioned)
	fmt.Printf("Alerts created:    %d\n", report.Created)
	fmt.Printf("Alerts dispatched: %d\n", report.Dispatched)
	fmt.Printf("Errors:       %d\n", report.Errors)
	fmt.Printf("Duration:     %s\n", report.Duration)

	if report.Errors > 0 {
		return cli.NewCommandError("sweep", fmt.Errorf("%d processes failed, see process_error alerts", report.Errors))
	}
	return nil
}
