package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SignalKind enumerates the detector families that can produce a signal.
type SignalKind string

const (
	KindHiringSpike SignalKind = "hiring_spike"
	KindTechAdopt   SignalKind = "tech_adoption"
	KindFunding     SignalKind = "funding_event"
	KindCompliance  SignalKind = "compliance_expansion"
)

// Instantaneous reports whether occurrences of this kind close immediately
// after the first firing instead of waiting for a cool-down.
func (k SignalKind) Instantaneous() bool {
	return k == KindFunding || k == KindCompliance
}

// Evidence is a single source reference substantiating a signal. Ordering
// across a signal's evidence list is insertion order and meaningful.
type Evidence struct {
	URL     string    `json:"url"`
	Snippet string    `json:"snippet"`
	TS      time.Time `json:"ts"`
}

// SignalOccurrence is an in-flight, mergeable detection episode for one
// (company, kind) pair. It is owned by the occurrence assembler and becomes
// an immutable Signal at closure.
type SignalOccurrence struct {
	CompanyID     string
	Kind          SignalKind
	OpenedAt      time.Time
	LastUpdatedAt time.Time
	Evidence      []Evidence
	Magnitude     float64           // detector firing strength, e.g. spike ratio
	Params        map[string]string // feature values backing the firing
	Firings       int               // number of merged detector firings
}

// AppendEvidence appends ev unless its URL was already recorded; duplicate
// URLs collapse to the first occurrence with its earliest snippet/timestamp.
func (o *SignalOccurrence) AppendEvidence(ev Evidence) {
	for i := range o.Evidence {
		if o.Evidence[i].URL == ev.URL {
			if ev.TS.Before(o.Evidence[i].TS) {
				o.Evidence[i].TS = ev.TS
				o.Evidence[i].Snippet = ev.Snippet
			}
			return
		}
	}
	o.Evidence = append(o.Evidence, ev)
}

// ComponentScores carries the explainability breakdown of a composite score.
type ComponentScores struct {
	Fit    float64 `json:"fit"`
	Intent float64 `json:"intent"`
	Timing float64 `json:"timing"`
}

// Signal is the immutable, emitted-once record produced when an occurrence
// closes. Republishing the same ID is a safe overwrite downstream.
type Signal struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	Kind        SignalKind      `json:"kind"`
	Score       int             `json:"score"`
	Components  ComponentScores `json:"component_scores"`
	Evidence    []Evidence      `json:"evidence"`
	Explanation string          `json:"explanation"`
	TSStart     time.Time       `json:"ts_start"`
	TSEnd       time.Time       `json:"ts_end"`
}

// SignalID derives the deterministic signal identifier from the stable
// fields of an occurrence. The same (company, kind, opened_at) always maps
// to the same id, which makes re-emission idempotent across retries and
// restarts.
func SignalID(companyID string, kind SignalKind, openedAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", companyID, kind, openedAt.UnixNano())))
	return hex.EncodeToString(sum[:16])
}
