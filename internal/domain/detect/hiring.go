package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/window"
)

// HiringSpike fires when the short-window posting count for a role class
// reaches spike_ratio times its baseline and at least min_absolute postings,
// scoped to the configured region filter.
type HiringSpike struct{}

// NewHiringSpike creates the hiring-spike detector.
func NewHiringSpike() *HiringSpike { return &HiringSpike{} }

// Kind implements Detector.
func (d *HiringSpike) Kind() model.SignalKind { return model.KindHiringSpike }

// Evaluate implements Detector.
func (d *HiringSpike) Evaluate(_ context.Context, ev *model.Event, win *window.Store, cal *calibration.Set) (*Firing, error) {
	if ev.Type != model.EventJobPosting {
		return nil, nil
	}
	role := ev.Feature(model.FeatureRole)
	if role == "" {
		return nil, nil
	}
	if !regionMatches(cal.Profile.Regions, ev.Feature(model.FeatureRegion)) {
		return nil, nil
	}

	class := window.RoleClass(role)
	snap, err := win.ReadWindow(ev.CompanyID, window.HiringKey(class), ev.TS, cal.ShortWindow(), cal.Baseline())
	if err != nil {
		if errors.Is(err, window.ErrInsufficientData) {
			return nil, nil
		}
		return nil, err
	}

	t := cal.For(model.KindHiringSpike)
	if snap.ShortCount < t.MinAbsolute {
		return nil, nil
	}
	ratio := float64(snap.ShortCount)
	if snap.Baseline > 0 {
		ratio = float64(snap.ShortCount) / snap.Baseline
	}
	if snap.Baseline > 0 && ratio < t.SpikeRatio {
		return nil, nil
	}

	return &Firing{
		Kind:      model.KindHiringSpike,
		TS:        ev.TS,
		Magnitude: ratio,
		Params: map[string]string{
			"role_class":  class,
			"region":      ev.Feature(model.FeatureRegion),
			"short_count": fmt.Sprintf("%d", snap.ShortCount),
			"baseline":    fmt.Sprintf("%.1f", snap.Baseline),
			"ratio":       fmt.Sprintf("%.2f", ratio),
		},
		Evidence: []model.Evidence{evidenceFrom(ev)},
	}, nil
}

// regionMatches applies the configured region filter; an empty filter
// matches everything.
func regionMatches(filter []string, region string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, r := range filter {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}
