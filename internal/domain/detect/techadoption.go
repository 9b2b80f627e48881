package detect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/window"
)

// TechAdoption fires on a two-feature joint condition: a technology
// fingerprint seen for the first time, corroborated by a textual mention of
// the same technology within the corroboration interval. One half alone is
// held as pending state until the interval expires, then discarded.
//
// The detector is stateful and not safe for concurrent use; the worker pool
// creates one instance per shard so all of a company's events hit the same
// instance in order.
type TechAdoption struct {
	pending map[string]*pendingAdoption // key: companyID|tech
}

type pendingAdoption struct {
	fingerprint *model.Evidence
	mention     *model.Evidence
	deadline    time.Time
}

// NewTechAdoption creates the tech-adoption detector.
func NewTechAdoption() *TechAdoption {
	return &TechAdoption{pending: make(map[string]*pendingAdoption)}
}

// Kind implements Detector.
func (d *TechAdoption) Kind() model.SignalKind { return model.KindTechAdopt }

// Evaluate implements Detector.
func (d *TechAdoption) Evaluate(_ context.Context, ev *model.Event, win *window.Store, cal *calibration.Set) (*Firing, error) {
	tech := strings.ToLower(ev.Feature(model.FeatureTechnology))
	if tech == "" {
		return nil, nil
	}

	interval := cal.For(model.KindTechAdopt).Corroboration()
	key := ev.CompanyID + "|" + tech

	switch ev.Type {
	case model.EventTechFingerprint:
		// Only a first observation of this technology counts as adoption.
		snap, err := win.Read(ev.CompanyID, window.TechKey(tech), ev.TS)
		if err == nil && snap.TotalCount > 1 {
			return nil, nil
		}
		return d.observe(key, tech, ev, interval, true), nil
	case model.EventBlogPost, model.EventNewsMention:
		return d.observe(key, tech, ev, interval, false), nil
	default:
		return nil, nil
	}
}

// observe records one half of the join and fires when both halves landed
// inside the corroboration interval.
func (d *TechAdoption) observe(key, tech string, ev *model.Event, interval time.Duration, isFingerprint bool) *Firing {
	p, ok := d.pending[key]
	if ok && ev.TS.After(p.deadline) {
		// Stale half; discard and start over with this observation.
		delete(d.pending, key)
		ok = false
	}
	if !ok {
		p = &pendingAdoption{}
		d.pending[key] = p
	}

	evd := evidenceFrom(ev)
	if isFingerprint {
		p.fingerprint = &evd
	} else {
		p.mention = &evd
	}
	p.deadline = ev.TS.Add(interval)

	if p.fingerprint == nil || p.mention == nil {
		return nil
	}
	gap := p.mention.TS.Sub(p.fingerprint.TS)
	if gap < 0 {
		gap = -gap
	}
	if gap > interval {
		return nil
	}
	delete(d.pending, key)

	// Evidence in chronological order: both sides of the join.
	evidence := []model.Evidence{*p.fingerprint, *p.mention}
	sort.SliceStable(evidence, func(i, j int) bool { return evidence[i].TS.Before(evidence[j].TS) })

	return &Firing{
		Kind:      model.KindTechAdopt,
		TS:        ev.TS,
		Magnitude: 1,
		Params: map[string]string{
			"technology":      tech,
			"corroborated_in": fmt.Sprintf("%dd", int(gap/(24*time.Hour))),
		},
		Evidence: evidence,
	}
}

// Sweep discards pending halves whose corroboration interval expired.
func (d *TechAdoption) Sweep(now time.Time) {
	for key, p := range d.pending {
		if now.After(p.deadline) {
			delete(d.pending, key)
		}
	}
}

// PendingCount reports held join state; used by stats and tests.
func (d *TechAdoption) PendingCount() int { return len(d.pending) }
