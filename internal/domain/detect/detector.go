// Package detect holds the pluggable signal detectors evaluated against the
// window store on each event. Detectors are independent: several may fire
// for the same company on the same event, and a fault in one never stops
// the others.
package detect

import (
	"context"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/window"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/metrics"
)

// Firing is a candidate signal occurrence produced by one detector.
type Firing struct {
	Kind      model.SignalKind
	TS        time.Time // event time of the firing
	Magnitude float64   // detector-specific strength, e.g. spike ratio
	Params    map[string]string
	Evidence  []model.Evidence // seeds/extends the occurrence's evidence
}

// Detector evaluates one event against the window state. A nil Firing with
// a nil error means no fire (including insufficient data, which is never
// surfaced as an error past this boundary).
type Detector interface {
	Kind() model.SignalKind
	Evaluate(ctx context.Context, ev *model.Event, win *window.Store, cal *calibration.Set) (*Firing, error)
}

// Sweeper is implemented by detectors holding pending join state that must
// be expired on the maintenance tick.
type Sweeper interface {
	Sweep(now time.Time)
}

// Set runs a group of detectors with per-detector fault isolation.
type Set struct {
	detectors []Detector
	log       logger.Logger
}

// NewSet builds a detector set. The default set holds one detector per
// signal kind.
func NewSet(log logger.Logger, detectors ...Detector) *Set {
	return &Set{detectors: detectors, log: log}
}

// DefaultSet builds the production detector lineup.
func DefaultSet(log logger.Logger) *Set {
	return NewSet(log,
		NewHiringSpike(),
		NewTechAdoption(),
		NewFunding(),
		NewCompliance(),
	)
}

// Evaluate runs every detector against the event and collects firings.
// A panicking or erroring detector is logged, counted, and skipped for this
// evaluation cycle; the rest proceed.
func (s *Set) Evaluate(ctx context.Context, ev *model.Event, win *window.Store, cal *calibration.Set) []*Firing {
	firings := make([]*Firing, 0, 2)
	for _, d := range s.detectors {
		f, err := s.evaluateOne(ctx, d, ev, win, cal)
		if err != nil {
			metrics.RecordDetectorFault(string(d.Kind()))
			s.log.Error(ctx, "detector fault; skipping for this cycle",
				logger.String("kind", string(d.Kind())),
				logger.String("deliveryID", ev.DeliveryID),
				logger.Error(err),
			)
			continue
		}
		if f != nil {
			metrics.RecordDetectorFiring(string(f.Kind))
			firings = append(firings, f)
		}
	}
	return firings
}

// evaluateOne isolates a single detector call, converting panics into errors.
func (s *Set) evaluateOne(ctx context.Context, d Detector, ev *model.Event, win *window.Store, cal *calibration.Set) (f *Firing, err error) {
	defer func() {
		if r := recover(); r != nil {
			f = nil
			err = &faultError{kind: d.Kind(), panicked: r}
		}
	}()
	return d.Evaluate(ctx, ev, win, cal)
}

// Sweep expires pending detector state older than now.
func (s *Set) Sweep(now time.Time) {
	for _, d := range s.detectors {
		if sw, ok := d.(Sweeper); ok {
			sw.Sweep(now)
		}
	}
}

// evidenceFrom builds the evidence entry for the event backing a firing.
func evidenceFrom(ev *model.Event) model.Evidence {
	return model.Evidence{URL: ev.SourceURL, Snippet: ev.Snippet(), TS: ev.TS}
}
