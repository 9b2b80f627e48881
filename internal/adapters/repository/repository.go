// Package repository stores emitted signals for the query surface. Signals
// are keyed by their deterministic id, so a re-emission of the same episode
// overwrites in place instead of duplicating.
package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/types"
)

// SignalLog is the read/write contract for the emitted-signal store.
type SignalLog interface {
	// Upsert inserts or replaces a signal by its id.
	Upsert(ctx context.Context, sig *model.Signal) error

	// Get returns one signal by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Signal, error)

	// Search returns signals matching the filter, newest episode first.
	Search(ctx context.Context, filter types.SearchFilter) ([]*model.Signal, error)

	// Count returns the number of stored signals.
	Count(ctx context.Context) int
}

// InMemoryLog implements SignalLog with a mutex-guarded map. The write path
// is one upsert per emitted signal, so contention is dominated by reads.
type InMemoryLog struct {
	mu      sync.RWMutex
	signals map[string]*model.Signal
}

// NewInMemoryLog creates an empty signal log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{signals: make(map[string]*model.Signal)}
}

// Upsert implements SignalLog.
func (l *InMemoryLog) Upsert(_ context.Context, sig *model.Signal) error {
	if sig == nil || sig.ID == "" {
		return ErrInvalidSignal
	}
	stored := *sig
	l.mu.Lock()
	l.signals[stored.ID] = &stored
	l.mu.Unlock()
	return nil
}

// Get implements SignalLog.
func (l *InMemoryLog) Get(_ context.Context, id string) (*model.Signal, error) {
	l.mu.RLock()
	sig, ok := l.signals[id]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := *sig
	return &out, nil
}

// Search implements SignalLog. Results are ordered by episode start
// descending, ties broken by id for a stable order.
func (l *InMemoryLog) Search(_ context.Context, filter types.SearchFilter) ([]*model.Signal, error) {
	l.mu.RLock()
	matched := make([]*model.Signal, 0, len(l.signals))
	for _, sig := range l.signals {
		if !matches(sig, filter) {
			continue
		}
		out := *sig
		matched = append(matched, &out)
	}
	l.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].TSStart.Equal(matched[j].TSStart) {
			return matched[i].TSStart.After(matched[j].TSStart)
		}
		return matched[i].ID < matched[j].ID
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Count implements SignalLog.
func (l *InMemoryLog) Count(_ context.Context) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.signals)
}

func matches(sig *model.Signal, f types.SearchFilter) bool {
	if f.MinScore > 0 && sig.Score < f.MinScore {
		return false
	}
	if f.Kind != "" && sig.Kind != f.Kind {
		return false
	}
	if f.CompanyID != "" && sig.CompanyID != f.CompanyID {
		return false
	}
	// Since is an activity cutoff: episodes are kept while their end is at
	// or after it, regardless of when they opened.
	if !f.Since.IsZero() && sig.TSEnd.Before(f.Since) {
		return false
	}
	return true
}
