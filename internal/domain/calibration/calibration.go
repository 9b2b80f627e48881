// Package calibration holds the tunable scoring weights and detector
// thresholds as versioned, immutable snapshots with atomic swap. In-flight
// operations capture a snapshot reference at start and never observe a
// partially updated set.
package calibration

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
)

// Default calibration constants. Thresholds define product behavior and
// mirror the documented defaults.
const (
	DefaultSpikeRatio        = 2.5
	DefaultMinAbsolute       = 4
	DefaultCorroborationDays = 14
	DefaultMergeWindowDays   = 14
	DefaultShortWindowDays   = 30
	DefaultBaselineDays      = 90
	DefaultIdleTTLDays       = 120
	DefaultTimingHalfLife    = 14 * 24 * time.Hour
	DefaultWeightTolerance   = 0.01
)

// Weights combines the FIT/INTENT/TIMING sub-scores into the composite.
type Weights struct {
	Fit    float64 `json:"fit" koanf:"fit"`
	Intent float64 `json:"intent" koanf:"intent"`
	Timing float64 `json:"timing" koanf:"timing"`
}

// KindThresholds are the per-signal-kind firing and merge parameters.
type KindThresholds struct {
	// SpikeRatio and MinAbsolute gate the hiring-spike detector.
	SpikeRatio  float64 `json:"spike_ratio,omitempty" koanf:"spike_ratio"`
	MinAbsolute int     `json:"min_absolute,omitempty" koanf:"min_absolute"`

	// CorroborationDays bounds the tech-adoption two-feature join.
	CorroborationDays int `json:"corroboration_days,omitempty" koanf:"corroboration_days"`

	// MergeWindowDays is the episode/cool-down window for dedup merging.
	MergeWindowDays int `json:"merge_window_days,omitempty" koanf:"merge_window_days"`

	// MinRoundStage gates the funding detector (index into StageRanks).
	MinRoundStage string `json:"min_round_stage,omitempty" koanf:"min_round_stage"`

	// Categories lists the matched categories for the compliance/expansion
	// detector.
	Categories []string `json:"categories,omitempty" koanf:"categories"`

	// IntentBase and IntentScale map a firing magnitude to [0,100] intent.
	IntentBase  float64 `json:"intent_base" koanf:"intent_base"`
	IntentScale float64 `json:"intent_scale" koanf:"intent_scale"`
}

// MergeWindow returns the merge window as a duration.
func (t KindThresholds) MergeWindow() time.Duration {
	days := t.MergeWindowDays
	if days <= 0 {
		days = DefaultMergeWindowDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Corroboration returns the corroboration interval as a duration.
func (t KindThresholds) Corroboration() time.Duration {
	days := t.CorroborationDays
	if days <= 0 {
		days = DefaultCorroborationDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// ICPProfile describes the ideal-customer-profile rules FIT is matched
// against. One profile per engine instance; multiple products run as
// independent calibrations, never merged.
type ICPProfile struct {
	Industries   []string `json:"industries" koanf:"industries"`
	MinEmployees int      `json:"min_employees" koanf:"min_employees"`
	MaxEmployees int      `json:"max_employees" koanf:"max_employees"`
	TechKeywords []string `json:"tech_keywords" koanf:"tech_keywords"`
	Regions      []string `json:"regions,omitempty" koanf:"regions"`
}

// Set is one immutable calibration snapshot. Never mutate a Set after it
// has been applied; build a new one and Apply it.
type Set struct {
	Version    int64                               `json:"version"`
	Weights    Weights                             `json:"weights" koanf:"weights"`
	Thresholds map[model.SignalKind]KindThresholds `json:"thresholds" koanf:"thresholds"`

	// Window geometry. Read per evaluation from the active snapshot: the
	// hiring-spike detector splits its windows with ShortWindow/Baseline and
	// the maintenance sweep evicts with IdleTTL, so applying a new set takes
	// effect without a restart. Spans wider than the window store's ring
	// capacity (fixed at startup) are clamped on read.
	ShortWindowDays int `json:"short_window_days" koanf:"short_window_days"`
	BaselineDays    int `json:"baseline_days" koanf:"baseline_days"`
	IdleTTLDays     int `json:"idle_ttl_days" koanf:"idle_ttl_days"`

	// TimingHalfLife controls the exponential timing decay.
	TimingHalfLife time.Duration `json:"timing_half_life" koanf:"timing_half_life"`

	Profile ICPProfile `json:"profile" koanf:"profile"`

	// StageRanks orders funding round stages; later entries rank higher.
	StageRanks []string `json:"stage_ranks" koanf:"stage_ranks"`
}

// For returns the thresholds for kind, falling back to defaults when the
// kind has no explicit entry.
func (s *Set) For(kind model.SignalKind) KindThresholds {
	if t, ok := s.Thresholds[kind]; ok {
		return t
	}
	return KindThresholds{
		SpikeRatio:        DefaultSpikeRatio,
		MinAbsolute:       DefaultMinAbsolute,
		CorroborationDays: DefaultCorroborationDays,
		MergeWindowDays:   DefaultMergeWindowDays,
		IntentScale:       1,
	}
}

// StageRank returns the rank of a funding round stage, or -1 when unknown.
func (s *Set) StageRank(stage string) int {
	for i, st := range s.StageRanks {
		if st == stage {
			return i
		}
	}
	return -1
}

// ShortWindow returns the short window span as a duration.
func (s *Set) ShortWindow() time.Duration {
	days := s.ShortWindowDays
	if days <= 0 {
		days = DefaultShortWindowDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Baseline returns the baseline span as a duration.
func (s *Set) Baseline() time.Duration {
	days := s.BaselineDays
	if days <= 0 {
		days = DefaultBaselineDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// IdleTTL returns the idle-entity eviction threshold as a duration.
func (s *Set) IdleTTL() time.Duration {
	days := s.IdleTTLDays
	if days <= 0 {
		days = DefaultIdleTTLDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Default builds the stock calibration set, version 1.
func Default() *Set {
	return &Set{
		Version: 1,
		Weights: Weights{Fit: 0.4, Intent: 0.4, Timing: 0.2},
		Thresholds: map[model.SignalKind]KindThresholds{
			model.KindHiringSpike: {
				SpikeRatio:      DefaultSpikeRatio,
				MinAbsolute:     DefaultMinAbsolute,
				MergeWindowDays: DefaultMergeWindowDays,
				IntentBase:      40,
				IntentScale:     12,
			},
			model.KindTechAdopt: {
				CorroborationDays: DefaultCorroborationDays,
				MergeWindowDays:   DefaultCorroborationDays,
				IntentBase:        50,
				IntentScale:       25,
			},
			model.KindFunding: {
				MinRoundStage:   "seed",
				MergeWindowDays: 30,
				IntentBase:      60,
				IntentScale:     8,
			},
			model.KindCompliance: {
				MergeWindowDays: DefaultMergeWindowDays,
				Categories:      []string{"expansion", "new_office", "compliance", "regulation", "product_launch"},
				IntentBase:      35,
				IntentScale:     15,
			},
		},
		ShortWindowDays: DefaultShortWindowDays,
		BaselineDays:    DefaultBaselineDays,
		IdleTTLDays:     DefaultIdleTTLDays,
		TimingHalfLife:  DefaultTimingHalfLife,
		Profile: ICPProfile{
			Industries:   []string{"technology", "fintech", "saas", "healthcare", "enterprise"},
			MinEmployees: 200,
			MaxEmployees: 5000,
			TechKeywords: []string{"aws", "azure", "gcp", "kubernetes", "python", "react", "microservices", "api"},
		},
		StageRanks: []string{"pre_seed", "seed", "series_a", "series_b", "series_c", "series_d", "growth"},
	}
}

// Store holds the active calibration set behind an atomic pointer. Readers
// never block on a writer beyond the swap instant.
type Store struct {
	active  atomic.Pointer[Set]
	version atomic.Int64

	// weightTolerance bounds how far the weight sum may drift from 1.0.
	weightTolerance float64
}

// StoreOption applies a configuration option to the Store.
type StoreOption func(*Store)

// WithWeightTolerance sets the permitted deviation of the weight sum from 1.0.
func WithWeightTolerance(tol float64) StoreOption {
	return func(s *Store) {
		if tol > 0 {
			s.weightTolerance = tol
		}
	}
}

// NewStore creates a calibration store seeded with the default set.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{weightTolerance: DefaultWeightTolerance}
	for _, opt := range opts {
		opt(s)
	}
	def := Default()
	s.version.Store(def.Version)
	s.active.Store(def)
	return s
}

// Active returns the current calibration snapshot. Callers must capture the
// returned pointer once per logical operation and use it throughout.
func (s *Store) Active() *Set {
	return s.active.Load()
}

// Apply validates and atomically installs a full replacement set. On
// rejection the previously active set stays in effect. Partial-field
// updates are not supported; callers fetch-modify-replace.
func (s *Store) Apply(next *Set) error {
	if next == nil {
		return fmt.Errorf("%w: nil set", ErrRejected)
	}
	if err := s.validate(next); err != nil {
		return err
	}
	installed := *next
	installed.Version = s.version.Add(1)
	s.active.Store(&installed)
	return nil
}

func (s *Store) validate(set *Set) error {
	w := set.Weights
	if w.Fit < 0 || w.Intent < 0 || w.Timing < 0 {
		return fmt.Errorf("%w: negative weight", ErrRejected)
	}
	sum := w.Fit + w.Intent + w.Timing
	if math.Abs(sum-1.0) > s.weightTolerance {
		return fmt.Errorf("%w: weights sum to %.3f, want 1.0±%.2f", ErrRejected, sum, s.weightTolerance)
	}
	for kind, t := range set.Thresholds {
		if t.SpikeRatio < 0 || t.MinAbsolute < 0 || t.CorroborationDays < 0 || t.MergeWindowDays < 0 {
			return fmt.Errorf("%w: negative threshold for kind %s", ErrRejected, kind)
		}
	}
	if set.TimingHalfLife < 0 {
		return fmt.Errorf("%w: negative timing half-life", ErrRejected)
	}
	if set.ShortWindowDays < 0 || set.BaselineDays < 0 || set.IdleTTLDays < 0 {
		return fmt.Errorf("%w: negative window geometry", ErrRejected)
	}
	if set.ShortWindowDays > 0 && set.BaselineDays > 0 && set.ShortWindowDays > set.BaselineDays {
		return fmt.Errorf("%w: short window %dd exceeds baseline %dd", ErrRejected, set.ShortWindowDays, set.BaselineDays)
	}
	return nil
}
