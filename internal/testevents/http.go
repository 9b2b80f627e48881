package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
)

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusAccepted = 202
)

// submitEvents posts all events concurrently through a fixed worker pool.
func submitEvents(ctx context.Context, config *Config, events []Event, stats *Stats) error {
	logger.Get().Info(ctx, "submitting events",
		logger.Int("count", len(events)),
		logger.Int("workers", config.Workers),
	)

	client := &http.Client{Timeout: config.Timeout}
	url := config.BaseURL + "/events"

	var successful, duplicate, failed atomic.Int64
	jobs := make(chan Event)

	var wg sync.WaitGroup
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range jobs {
				status, dup, err := postEvent(ctx, client, url, ev)
				switch {
				case err != nil:
					failed.Add(1)
					if config.Verbose {
						logger.Get().Warn(ctx, "submit failed", logger.String("delivery_id", ev.DeliveryID), logger.Error(err))
					}
				case dup:
					duplicate.Add(1)
				case status == StatusAccepted:
					successful.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	for _, ev := range events {
		select {
		case jobs <- ev:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	stats.EventsSubmitted = len(events)
	stats.EventsSuccessful = int(successful.Load())
	stats.EventsDuplicate = int(duplicate.Load())
	stats.EventsFailed = int(failed.Load())

	logger.Get().Info(ctx, "submission complete",
		logger.Int("successful", stats.EventsSuccessful),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("failed", stats.EventsFailed),
	)
	return nil
}

func postEvent(ctx context.Context, client *http.Client, url string, ev Event) (int, bool, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return 0, false, fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	var ack AckResponse
	_ = json.NewDecoder(resp.Body).Decode(&ack)
	return resp.StatusCode, ack.Duplicate, nil
}

// fetchSignals queries the signal log above the configured score floor.
func fetchSignals(ctx context.Context, config *Config, stats *Stats) ([]Signal, error) {
	client := &http.Client{Timeout: config.Timeout}
	url := fmt.Sprintf("%s/signals?min_score=%d&limit=500", config.BaseURL, config.MinScore)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("signal query failed with status: %d", resp.StatusCode)
	}

	var signals []Signal
	if err := json.NewDecoder(resp.Body).Decode(&signals); err != nil {
		return nil, fmt.Errorf("decode signals: %w", err)
	}
	stats.SignalsRetrieved = len(signals)
	return signals, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := &http.Client{Timeout: config.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Any 200 counts as healthy (the endpoint serves Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}
