// Saturn is a retention and disposition lifecycle engine for records
// management.
//
// It tracks archival records through their retention lifecycle, providing:
//   - Hierarchical retention rule resolution over classification paths
//   - Calendar-based retention date calculation
//   - A guarded lifecycle state machine with deferral and suspension
//   - Scheduled expiry alerts with repetition until acknowledgment
//   - A hash-chained audit ledger with integrity verification
//
// Usage:
//
//	# Start the scheduler daemon with default configuration
//	saturn run
//
//	# Start with custom configuration file
//	saturn run --config /path/to/config.yaml
//
//	# Run a single sweep and exit
//	saturn sweep
//
//	# Verify ledger integrity for every process
//	saturn verify --all
//
//	# Validate retention rule files
//	saturn rules lint --file rules.yaml
//
//	# Show version information
//	saturn version
package main

func main() {
	Execute()
}
