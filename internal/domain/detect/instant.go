package detect

import (
	"context"
	"strings"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/window"
)

// Funding fires on a single qualifying funding-round event at or above the
// configured minimum round stage. Instantaneous: no window required, but it
// still flows through the same occurrence/evidence path as every other kind.
type Funding struct{}

// NewFunding creates the funding-event detector.
func NewFunding() *Funding { return &Funding{} }

// Kind implements Detector.
func (d *Funding) Kind() model.SignalKind { return model.KindFunding }

// Evaluate implements Detector.
func (d *Funding) Evaluate(_ context.Context, ev *model.Event, _ *window.Store, cal *calibration.Set) (*Firing, error) {
	if ev.Type != model.EventFundingAnnounced {
		return nil, nil
	}
	stage := strings.ToLower(ev.Feature(model.FeatureRoundStage))
	rank := cal.StageRank(stage)
	if rank < 0 {
		return nil, nil
	}
	minRank := cal.StageRank(cal.For(model.KindFunding).MinRoundStage)
	if minRank >= 0 && rank < minRank {
		return nil, nil
	}

	return &Firing{
		Kind:      model.KindFunding,
		TS:        ev.TS,
		Magnitude: float64(rank + 1), // later stages rank higher
		Params: map[string]string{
			"round_stage": stage,
		},
		Evidence: []model.Evidence{evidenceFrom(ev)},
	}, nil
}

// Compliance fires on rule-matched category features from compliance and
// expansion notices. Instantaneous, same pattern as Funding.
type Compliance struct{}

// NewCompliance creates the compliance/expansion detector.
func NewCompliance() *Compliance { return &Compliance{} }

// Kind implements Detector.
func (d *Compliance) Kind() model.SignalKind { return model.KindCompliance }

// Evaluate implements Detector.
func (d *Compliance) Evaluate(_ context.Context, ev *model.Event, _ *window.Store, cal *calibration.Set) (*Firing, error) {
	if ev.Type != model.EventComplianceNotice && ev.Type != model.EventNewsMention {
		return nil, nil
	}
	category := strings.ToLower(ev.Feature(model.FeatureCategory))
	if category == "" {
		return nil, nil
	}
	matched := false
	for _, c := range cal.For(model.KindCompliance).Categories {
		if strings.EqualFold(c, category) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil
	}

	return &Firing{
		Kind:      model.KindCompliance,
		TS:        ev.TS,
		Magnitude: 1,
		Params: map[string]string{
			"category": category,
		},
		Evidence: []model.Evidence{evidenceFrom(ev)},
	}, nil
}
