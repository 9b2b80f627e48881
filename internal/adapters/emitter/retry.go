package emitter

import (
	"context"
	"fmt"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/metrics"
)

// Default retry configuration constants.
const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 100 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
)

// RetryingEmitter wraps another emitter with bounded exponential backoff.
// Because emission is idempotent by signal id, retrying a possibly-delivered
// publish is safe.
type RetryingEmitter struct {
	next         Emitter
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	log          logger.Logger
}

// RetryOption applies a configuration option to the RetryingEmitter.
type RetryOption func(*RetryingEmitter)

// WithMaxAttempts sets the total attempt budget per publish.
func WithMaxAttempts(n int) RetryOption {
	return func(r *RetryingEmitter) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the initial and maximum backoff delays.
func WithBackoff(initial, maxDelay time.Duration) RetryOption {
	return func(r *RetryingEmitter) {
		if initial > 0 {
			r.initialDelay = initial
		}
		if maxDelay > 0 {
			r.maxDelay = maxDelay
		}
	}
}

// NewRetryingEmitter wraps next with retry semantics.
func NewRetryingEmitter(next Emitter, log logger.Logger, opts ...RetryOption) *RetryingEmitter {
	r := &RetryingEmitter{
		next:         next,
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		log:          log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish implements Emitter.
func (r *RetryingEmitter) Publish(ctx context.Context, sig *model.Signal) error {
	delay := r.initialDelay
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = r.next.Publish(ctx, sig)
		if lastErr == nil {
			return nil
		}
		if attempt == r.maxAttempts {
			break
		}
		metrics.RecordEmitRetry()
		r.log.Warn(ctx, "signal publish failed, retrying",
			logger.String("signal_id", sig.ID),
			logger.Int("attempt", attempt),
			logger.Error(lastErr),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
	metrics.RecordEmitError()
	return fmt.Errorf("%w after %d attempts: %v", ErrPublishFailed, r.maxAttempts, lastErr)
}

// Close implements Emitter.
func (r *RetryingEmitter) Close() error { return r.next.Close() }
