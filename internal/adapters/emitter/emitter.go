// Package emitter delivers scored signals to downstream consumers. The
// deterministic signal id makes emission idempotent: re-delivering the same
// episode overwrites rather than duplicates on any consumer that keys by id.
package emitter

import (
	"context"
	"sync"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/metrics"
)

// Emitter publishes one scored signal downstream.
type Emitter interface {
	Publish(ctx context.Context, sig *model.Signal) error

	// Close releases the underlying transport.
	Close() error
}

// InMemoryEmitter implements Emitter by keeping the latest emission per
// signal id. Used in tests and as the default when no broker is configured.
type InMemoryEmitter struct {
	mu      sync.RWMutex
	signals map[string]*model.Signal
	order   []string
}

// NewInMemoryEmitter creates an empty in-memory emitter.
func NewInMemoryEmitter() *InMemoryEmitter {
	return &InMemoryEmitter{signals: make(map[string]*model.Signal)}
}

// Publish implements Emitter.
func (e *InMemoryEmitter) Publish(_ context.Context, sig *model.Signal) error {
	if sig == nil || sig.ID == "" {
		return ErrInvalidSignal
	}
	stored := *sig
	e.mu.Lock()
	if _, exists := e.signals[stored.ID]; !exists {
		e.order = append(e.order, stored.ID)
	}
	e.signals[stored.ID] = &stored
	e.mu.Unlock()
	metrics.RecordSignalEmitted(string(sig.Kind))
	return nil
}

// Close implements Emitter.
func (e *InMemoryEmitter) Close() error { return nil }

// Emitted returns all emissions in first-emission order, latest version of
// each. Test helper surface.
func (e *InMemoryEmitter) Emitted() []*model.Signal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*model.Signal, 0, len(e.order))
	for _, id := range e.order {
		sig := *e.signals[id]
		out = append(out, &sig)
	}
	return out
}

// Get returns the latest emission for a signal id, if any.
func (e *InMemoryEmitter) Get(id string) (*model.Signal, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sig, ok := e.signals[id]
	if !ok {
		return nil, false
	}
	out := *sig
	return &out, true
}
