package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "saturn",
	Short: "Saturn - retention and disposition lifecycle engine",
	Long: `Saturn is a retention and disposition lifecycle engine for records
management systems.

It tracks archival records through their retention lifecycle, providing:
  - Hierarchical retention rule resolution over classification paths
  - Calendar-based retention date calculation
  - A guarded lifecycle state machine with deferral and suspension
  - Scheduled expiry alerts with repetition until acknowledgment
  - A hash-chained audit ledger with integrity verification`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
