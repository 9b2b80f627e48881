// Package scoring turns a closed occurrence into a scored, explainable
// Signal using the FIT + INTENT + TIMING model.
package scoring

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/window"
)

// Scoring scale constants. The FIT point table follows the ideal-customer-
// profile rubric: industry 30, company size 30, tech-stack overlap 20,
// funding 20.
const (
	maxScore            = 100
	industryPoints      = 30
	sizeSweetSpotPoints = 30
	sizeNearPoints      = 20
	sizeKnownPoints     = 10
	techOverlapPointsEa = 5
	techOverlapCap      = 20
	fundingPoints       = 20

	// velocityBase and velocityStep modulate TIMING by how many firings
	// landed inside the episode.
	velocityBase = 0.5
	velocityStep = 0.125
)

// Input bundles everything needed to score one closed occurrence.
type Input struct {
	Occurrence *model.SignalOccurrence
	Profile    window.Profile
	Now        time.Time
}

// Scorer computes a Signal from a closed occurrence.
type Scorer interface {
	Score(ctx context.Context, in Input) (model.Signal, error)
}

// LeadScorer implements Scorer against a calibration store. Each Score call
// captures one calibration snapshot up front and uses it throughout, so a
// concurrent calibration swap is never observed half-applied.
type LeadScorer struct {
	cal *calibration.Store
}

// NewLeadScorer creates a scorer bound to the calibration store.
func NewLeadScorer(cal *calibration.Store) *LeadScorer {
	return &LeadScorer{cal: cal}
}

// Score implements Scorer.
func (s *LeadScorer) Score(_ context.Context, in Input) (model.Signal, error) {
	cal := s.cal.Active()
	occ := in.Occurrence

	fit := fitScore(in.Profile, cal.Profile)
	intent := intentScore(occ, cal)
	timing := timingScore(occ, cal, in.Now)

	w := cal.Weights
	composite := w.Fit*fit + w.Intent*intent + w.Timing*timing
	score := int(math.Round(composite))
	if score > maxScore {
		score = maxScore
	}
	if score < 0 {
		score = 0
	}

	evidence := make([]model.Evidence, len(occ.Evidence))
	copy(evidence, occ.Evidence)

	return model.Signal{
		ID:          model.SignalID(occ.CompanyID, occ.Kind, occ.OpenedAt),
		CompanyID:   occ.CompanyID,
		Kind:        occ.Kind,
		Score:       score,
		Components:  model.ComponentScores{Fit: fit, Intent: intent, Timing: timing},
		Evidence:    evidence,
		Explanation: explain(occ),
		TSStart:     occ.OpenedAt,
		TSEnd:       occ.LastUpdatedAt,
	}, nil
}

// fitScore matches the company's firmographic profile against the ICP.
func fitScore(p window.Profile, icp calibration.ICPProfile) float64 {
	score := 0.0

	for _, target := range icp.Industries {
		if p.Industry != "" && strings.Contains(p.Industry, strings.ToLower(target)) {
			score += industryPoints
			break
		}
	}

	switch n := p.EmployeeCount; {
	case icp.MinEmployees > 0 && n >= icp.MinEmployees && n <= icp.MaxEmployees:
		score += sizeSweetSpotPoints
	case n > 0 && n >= icp.MinEmployees/4 && n <= icp.MaxEmployees*2:
		score += sizeNearPoints
	case n > 0:
		score += sizeKnownPoints
	}

	overlap := 0.0
	for _, tech := range p.Technologies {
		for _, kw := range icp.TechKeywords {
			if strings.Contains(tech, strings.ToLower(kw)) {
				overlap += techOverlapPointsEa
				break
			}
		}
	}
	score += math.Min(overlap, techOverlapCap)

	if p.FundingSeen {
		score += fundingPoints
	}

	return math.Min(score, maxScore)
}

// intentScore maps the detector kind and firing magnitude to [0,100] via
// the calibrated per-kind base and scale.
func intentScore(occ *model.SignalOccurrence, cal *calibration.Set) float64 {
	t := cal.For(occ.Kind)
	scale := t.IntentScale
	if scale == 0 {
		scale = 1
	}
	return clamp(t.IntentBase+scale*occ.Magnitude, 0, maxScore)
}

// timingScore decays from 100 toward 0 with the configured half-life as the
// signal ages, modulated by episode velocity (more firings in the episode
// raise it). Monotonically non-increasing in elapsed time for a fixed
// occurrence, which keeps it auditable.
func timingScore(occ *model.SignalOccurrence, cal *calibration.Set, now time.Time) float64 {
	halfLife := cal.TimingHalfLife
	if halfLife <= 0 {
		halfLife = calibration.DefaultTimingHalfLife
	}
	elapsed := now.Sub(occ.LastUpdatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	decay := math.Exp2(-float64(elapsed) / float64(halfLife))

	velocity := clamp(velocityBase+velocityStep*float64(occ.Firings), 0, 1)

	return clamp(maxScore*decay*velocity, 0, maxScore)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
