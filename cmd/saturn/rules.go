package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/retention/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage retention rule files",
}

var rulesLintFlags struct {
	file   string
	dir    string
	format string
}

var rulesLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate retention rule files",
	Long: `Validate retention rule files for syntax and semantic errors.

The lint command parses rule files and performs the same validation the
daemon applies on load:
  - YAML syntax validation
  - Rule structure validation (scope, retention periods, priority)
  - Disposition action validation
  - Duplicate rule detection across the whole set

Examples:
  # Lint a single file
  saturn rules lint --file rules.yaml

  # Lint a directory
  saturn rules lint --dir rules/

  # JSON output for CI/CD
  saturn rules lint --file rules.yaml --format json`,
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesLintCmd)

	rulesLintCmd.Flags().StringVarP(&rulesLintFlags.file, "file", "f", "", "rule file to validate")
	rulesLintCmd.Flags().StringVarP(&rulesLintFlags.dir, "dir", "d", "", "directory of rule files")
	rulesLintCmd.Flags().StringVar(&rulesLintFlags.format, "format", "text", "output format: text, json")
}

// lintReport is the printable shape of a lint run.
type lintReport struct {
	Path   string   `json:"path"`
	Rules  int      `json:"rules"`
	Errors []string `json:"errors"`
	OK     bool     `json:"ok"`
}

func lintRules(cmd *cobra.Command, args []string) error {
	if rulesLintFlags.file == "" && rulesLintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	path := rulesLintFlags.file
	if path == "" {
		path = rulesLintFlags.dir
	}

	report := lintReport{Path: path, Errors: []string{}}

	source := rules.NewFileSource(path)
	loaded, err := source.Load()
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	} else {
		report.Rules = len(loaded)
		// Load into a resolver to catch cross-file problems a single
		// file's validation cannot see.
		resolver := rules.NewResolver(slog.Default())
		if err := resolver.Load(loaded); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	}
	report.OK = len(report.Errors) == 0

	if rulesLintFlags.format == "json" {
		formatter := cli.NewFormatter(cli.FormatJSON)
		if err := formatter.FormatTo(os.Stdout, report); err != nil {
			return err
		}
	} else if report.OK {
		fmt.Printf("✓ %s: %d rule(s), no problems\n", report.Path, report.Rules)
	} else {
		fmt.Printf("✗ %s:\n", report.Path)
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if !report.OK {
		return cli.NewCommandError("rules lint", fmt.Errorf("%d problem(s) found", len(report.Errors)))
	}
	return nil
}
