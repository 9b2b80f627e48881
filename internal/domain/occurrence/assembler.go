// Package occurrence decides whether a detector firing is a new signal
// episode or a continuation of an open one, and accumulates the evidence
// trail. One assembler instance is owned by one shard worker, so all
// transitions for a company happen on a single goroutine.
package occurrence

import (
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/detect"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/metrics"
)

type key struct {
	companyID string
	kind      model.SignalKind
}

// Assembler tracks open occurrences per (company, kind) and the recently
// emitted ones that can still absorb re-fires inside their merge window.
type Assembler struct {
	open    map[key]*model.SignalOccurrence
	emitted map[key]*model.SignalOccurrence
}

// New creates an empty assembler.
func New() *Assembler {
	return &Assembler{
		open:    make(map[key]*model.SignalOccurrence),
		emitted: make(map[key]*model.SignalOccurrence),
	}
}

// Observe folds one firing into the per-(company,kind) state machine and
// returns any occurrences that are ready for scoring and emission right
// now. Instantaneous kinds close immediately; window-based kinds close
// later via CloseExpired.
//
// A re-fire landing inside the merge window of an already-emitted
// occurrence reopens it with its original opened_at, so the re-emitted
// signal keeps its deterministic id. A re-fire after the merge window opens
// a fresh occurrence and therefore a fresh id.
func (a *Assembler) Observe(companyID string, f *detect.Firing, cal *calibration.Set) []*model.SignalOccurrence {
	k := key{companyID: companyID, kind: f.Kind}
	mergeWindow := cal.For(f.Kind).MergeWindow()

	occ, isOpen := a.open[k]
	if !isOpen {
		if prev, ok := a.emitted[k]; ok {
			if !f.TS.After(prev.LastUpdatedAt.Add(mergeWindow)) {
				// Reopen the emitted episode; same opened_at, same id.
				occ = prev
				delete(a.emitted, k)
			} else {
				// Cooled down; the old record can never merge again.
				delete(a.emitted, k)
			}
		}
	}

	if occ != nil && f.TS.After(occ.LastUpdatedAt.Add(mergeWindow)) {
		// Open but stale: close it out first, then re-trigger fresh.
		delete(a.open, k)
		a.emitted[k] = occ
		closed := []*model.SignalOccurrence{occ}
		metrics.RecordOccurrenceClosed(string(f.Kind))
		return append(closed, a.Observe(companyID, f, cal)...)
	}

	if occ == nil {
		occ = &model.SignalOccurrence{
			CompanyID: companyID,
			Kind:      f.Kind,
			OpenedAt:  f.TS,
			Params:    make(map[string]string),
		}
		metrics.RecordOccurrenceOpened(string(f.Kind))
	} else {
		metrics.RecordOccurrenceMerged(string(f.Kind))
	}

	a.merge(occ, f)

	if f.Kind.Instantaneous() {
		delete(a.open, k)
		a.emitted[k] = occ
		metrics.RecordOccurrenceClosed(string(f.Kind))
		return []*model.SignalOccurrence{occ}
	}
	a.open[k] = occ
	return nil
}

// merge folds a firing's evidence and parameters into the occurrence.
func (a *Assembler) merge(occ *model.SignalOccurrence, f *detect.Firing) {
	for _, ev := range f.Evidence {
		occ.AppendEvidence(ev)
	}
	if f.TS.After(occ.LastUpdatedAt) {
		occ.LastUpdatedAt = f.TS
	}
	if f.Magnitude > occ.Magnitude {
		occ.Magnitude = f.Magnitude
	}
	for k, v := range f.Params {
		if _, exists := occ.Params[k]; !exists {
			occ.Params[k] = v
		}
	}
	occ.Firings++
}

// CloseExpired closes open occurrences whose merge window elapsed with no
// new firing (cool-down closure) and prunes emitted records that can no
// longer absorb a re-fire. Returns the occurrences ready for scoring.
func (a *Assembler) CloseExpired(now time.Time, cal *calibration.Set) []*model.SignalOccurrence {
	var closed []*model.SignalOccurrence
	for k, occ := range a.open {
		if now.After(occ.LastUpdatedAt.Add(cal.For(k.kind).MergeWindow())) {
			delete(a.open, k)
			a.emitted[k] = occ
			closed = append(closed, occ)
			metrics.RecordOccurrenceClosed(string(k.kind))
		}
	}
	for k, occ := range a.emitted {
		if now.After(occ.LastUpdatedAt.Add(cal.For(k.kind).MergeWindow())) {
			delete(a.emitted, k)
		}
	}
	return closed
}

// OpenCount reports the number of in-flight occurrences.
func (a *Assembler) OpenCount() int { return len(a.open) }
