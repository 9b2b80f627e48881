package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/testevents"
)

// Default configuration constants.
const (
	defaultCompanies     = 200
	defaultSpanDays      = 120
	defaultWorkerFactor  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultOverallBudget = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		companies = flag.Int("companies", defaultCompanies, "Number of synthetic companies to simulate")
		spanDays  = flag.Int("span", defaultSpanDays, "Days of history to synthesize per company")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkerFactor, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		minScore  = flag.Int("min-score", 0, "Score floor for the final signal query")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	if err := testevents.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultOverallBudget)
	defer cancel()

	config := &testevents.Config{
		BaseURL:      *baseURL,
		NumCompanies: *companies,
		SpanDays:     *spanDays,
		Workers:      *workers,
		Timeout:      *timeout,
		MinScore:     *minScore,
		Verbose:      *verbose,
	}

	if err := testevents.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		return
	}
}
