package testevents

import (
	"fmt"
	"os"

	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
)

// SetupLogging initializes the logger for the test tool.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the test events tool.
func ShowHelp() {
	os.Stdout.WriteString(`Signal Engine Event Test Tool
=============================

Generates synthetic company event streams and submits them to a running
engine, then queries the emitted signals and sanity-checks the results.

Usage:
  go run cmd/test-events/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -companies int
        Number of synthetic companies to simulate (default 200)
  -span int
        Days of history to synthesize per company (default 120)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -min-score int
        Score floor for the final signal query (default 0)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Test with default settings
  go run cmd/test-events/main.go

  # Simulate a larger tenant
  go run cmd/test-events/main.go -companies 2000 -workers 16
`)
}
