package testevents

import (
	"context"
	"fmt"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
)

// processingGracePeriod is how long to wait for the async pipeline to drain
// before querying signals.
const processingGracePeriod = 3 * time.Second

// Run executes the complete event test: health check, synthetic stream
// generation, concurrent submission, then a signal query and sanity checks.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting signal engine event test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("companies", config.NumCompanies),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
	)

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	events, err := generateEvents(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("event generation failed: %w", err)
	}

	if err := submitEvents(ctx, config, events, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for pipeline to drain")
	time.Sleep(processingGracePeriod)

	signals, err := fetchSignals(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("signal retrieval failed: %w", err)
	}

	if err := verifySignals(ctx, signals); err != nil {
		return fmt.Errorf("signal verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// verifySignals applies basic sanity checks to the retrieved signals.
func verifySignals(ctx context.Context, signals []Signal) error {
	seen := make(map[string]struct{}, len(signals))
	byKind := make(map[string]int)
	for _, sig := range signals {
		if sig.ID == "" || sig.CompanyID == "" {
			return fmt.Errorf("signal missing id or company: %+v", sig)
		}
		if sig.Score < 0 || sig.Score > 100 {
			return fmt.Errorf("signal %s score out of range: %d", sig.ID, sig.Score)
		}
		if _, dup := seen[sig.ID]; dup {
			return fmt.Errorf("duplicate signal id in results: %s", sig.ID)
		}
		seen[sig.ID] = struct{}{}
		byKind[sig.Kind]++
	}

	for kind, count := range byKind {
		logger.Get().Info(ctx, "signals by kind", logger.String("kind", kind), logger.Int("count", count))
	}
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "test statistics",
		logger.Int("generated", stats.EventsGenerated),
		logger.Int("submitted", stats.EventsSubmitted),
		logger.Int("successful", stats.EventsSuccessful),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("failed", stats.EventsFailed),
		logger.Int("signals", stats.SignalsRetrieved),
		logger.String("duration", stats.Duration.String()),
	)
}
