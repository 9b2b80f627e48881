// Package window maintains per-company rolling feature state: a short
// recent-count window, a trailing baseline, and the firmographic profile
// accumulated from event features.
//
// All state for one company is only ever mutated by that company's owning
// shard worker, so the internal locks exist for the cross-shard sweeps and
// stats reads, not for contended mutation.
package window

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/metrics"
)

// Default window geometry constants.
const (
	defaultShortDays    = 30
	defaultBaselineDays = 90
	defaultIdleTTL      = 120 * 24 * time.Hour
	defaultShardCount   = 16
	seenIDsCap          = 512 // per-company replay guard for at-least-once delivery
	day                 = 24 * time.Hour
)

// Snapshot is the read view a detector gets for one (company, feature) pair.
type Snapshot struct {
	FeatureKey string

	// ShortCount is the event count inside the short window.
	ShortCount int

	// Baseline is the trailing-baseline count normalized to the short
	// window length, so it is directly comparable to ShortCount.
	Baseline float64

	// TotalCount is the lifetime count since the feature was first seen
	// (or since re-arrival after eviction).
	TotalCount int

	FirstSeen time.Time
	LastSeen  time.Time
}

// Profile is the firmographic view accumulated for one company.
type Profile struct {
	Industry      string
	EmployeeCount int
	Technologies  []string
	FundingSeen   bool
}

// featureWindow keeps daily buckets spanning short + baseline days. Bucket
// zero is the most recent day; rotation advances in event time, O(1)
// amortized per event and capped at the ring length after long gaps.
type featureWindow struct {
	buckets   []int
	headDay   int64 // day index (ts / 24h) of buckets[0]
	total     int
	firstSeen time.Time
	lastSeen  time.Time
}

type companyState struct {
	features  map[string]*featureWindow
	profile   Profile
	techSet   map[string]struct{}
	firstSeen time.Time
	lastSeen  time.Time

	// seenIDs guards window updates against duplicate delivery.
	seenIDs   map[string]struct{}
	seenOrder []string
}

type shard struct {
	mu        sync.RWMutex
	companies map[string]*companyState
}

// Store is the event window store.
type Store struct {
	shards       []*shard
	shortDays    int
	baselineDays int
	idleTTL      time.Duration

	// minHistory is the observed history a company needs before its
	// windows stop reporting insufficient data.
	minHistory time.Duration
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithWindowDays sets the short window and baseline spans in days.
func WithWindowDays(short, baseline int) Option {
	return func(s *Store) {
		if short > 0 {
			s.shortDays = short
		}
		if baseline > 0 {
			s.baselineDays = baseline
		}
	}
}

// WithIdleTTL sets how long a company may stay idle before eviction.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

// WithMinHistory overrides the history required before windows are readable.
func WithMinHistory(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.minHistory = d
		}
	}
}

// WithShardCount sets the number of internal map shards.
func WithShardCount(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// New creates a window store.
func New(opts ...Option) *Store {
	s := &Store{
		shortDays:    defaultShortDays,
		baselineDays: defaultBaselineDays,
		idleTTL:      defaultIdleTTL,
		minHistory:   -1,
		shards:       make([]*shard, defaultShardCount),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.minHistory < 0 {
		s.minHistory = time.Duration(s.shortDays) * day
	}
	for i := range s.shards {
		s.shards[i] = &shard{companies: make(map[string]*companyState)}
	}
	return s
}

func (s *Store) shardFor(companyID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(companyID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Apply folds one event into the company's windows and profile. Duplicate
// delivery ids are a no-op, which keeps window state idempotent under
// at-least-once delivery.
func (s *Store) Apply(ev *model.Event) {
	if s.apply(ev) {
		metrics.UpdateCompaniesTracked(s.Companies())
	}
}

// apply returns true when the event introduced a new company.
func (s *Store) apply(ev *model.Event) bool {
	sh := s.shardFor(ev.CompanyID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	isNew := false
	cs, ok := sh.companies[ev.CompanyID]
	if !ok {
		cs = &companyState{
			features:  make(map[string]*featureWindow),
			techSet:   make(map[string]struct{}),
			seenIDs:   make(map[string]struct{}),
			firstSeen: ev.TS,
			lastSeen:  ev.TS,
		}
		sh.companies[ev.CompanyID] = cs
		isNew = true
	}

	if _, dup := cs.seenIDs[ev.DeliveryID]; dup {
		return isNew
	}
	cs.seenIDs[ev.DeliveryID] = struct{}{}
	cs.seenOrder = append(cs.seenOrder, ev.DeliveryID)
	if len(cs.seenOrder) > seenIDsCap {
		evicted := cs.seenOrder[0]
		cs.seenOrder = cs.seenOrder[1:]
		delete(cs.seenIDs, evicted)
	}

	if ev.TS.Before(cs.firstSeen) {
		cs.firstSeen = ev.TS
	}
	if ev.TS.After(cs.lastSeen) {
		cs.lastSeen = ev.TS
	}

	for _, key := range Keys(ev) {
		s.bump(cs, key, ev.TS)
	}
	s.enrichProfile(cs, ev)
	return isNew
}

func (s *Store) bump(cs *companyState, key string, ts time.Time) {
	fw, ok := cs.features[key]
	if !ok {
		fw = &featureWindow{
			buckets:   make([]int, s.shortDays+s.baselineDays),
			headDay:   dayIndex(ts),
			firstSeen: ts,
			lastSeen:  ts,
		}
		cs.features[key] = fw
	}
	fw.rotate(dayIndex(ts))
	// Events may arrive slightly out of order per entity; anything older
	// than the ring simply falls off the back.
	offset := fw.headDay - dayIndex(ts)
	if offset >= 0 && offset < int64(len(fw.buckets)) {
		fw.buckets[offset]++
	}
	fw.total++
	if ts.Before(fw.firstSeen) {
		fw.firstSeen = ts
	}
	if ts.After(fw.lastSeen) {
		fw.lastSeen = ts
	}
}

// rotate advances the ring head to newHead, dropping buckets that age out.
func (fw *featureWindow) rotate(newHead int64) {
	if newHead <= fw.headDay {
		return
	}
	shift := newHead - fw.headDay
	n := int64(len(fw.buckets))
	if shift >= n {
		for i := range fw.buckets {
			fw.buckets[i] = 0
		}
	} else {
		copy(fw.buckets[shift:], fw.buckets[:n-shift])
		for i := int64(0); i < shift; i++ {
			fw.buckets[i] = 0
		}
	}
	fw.headDay = newHead
}

func (s *Store) enrichProfile(cs *companyState, ev *model.Event) {
	if v := ev.Feature(model.FeatureIndustry); v != "" {
		cs.profile.Industry = strings.ToLower(v)
	}
	if v := ev.Feature(model.FeatureEmployeeCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cs.profile.EmployeeCount = n
		}
	}
	if ev.Type == model.EventTechFingerprint {
		if tech := strings.ToLower(ev.Feature(model.FeatureTechnology)); tech != "" {
			if _, ok := cs.techSet[tech]; !ok {
				cs.techSet[tech] = struct{}{}
				cs.profile.Technologies = append(cs.profile.Technologies, tech)
			}
		}
	}
	if ev.Type == model.EventFundingAnnounced {
		cs.profile.FundingSeen = true
	}
}

// Read returns the window snapshot for one (company, feature) pair using
// the store's default spans. It returns ErrInsufficientData until the
// company has the minimum observed history, so cold or freshly re-arrived
// companies never look like spikes. The asOf time anchors the
// short/baseline split; pass the triggering event's timestamp.
func (s *Store) Read(companyID, featureKey string, asOf time.Time) (Snapshot, error) {
	return s.readWindow(companyID, featureKey, asOf, s.shortDays, s.baselineDays)
}

// ReadWindow is Read with caller-supplied short and baseline spans, so the
// active calibration can reshape the split without a restart. Spans at or
// below zero fall back to the store defaults; spans beyond the ring
// capacity fixed at construction are clamped to it.
func (s *Store) ReadWindow(companyID, featureKey string, asOf time.Time, short, baseline time.Duration) (Snapshot, error) {
	shortDays, baselineDays := s.spanDays(short, baseline)
	return s.readWindow(companyID, featureKey, asOf, shortDays, baselineDays)
}

func (s *Store) spanDays(short, baseline time.Duration) (int, int) {
	shortDays := int(short / day)
	if shortDays <= 0 {
		shortDays = s.shortDays
	}
	baselineDays := int(baseline / day)
	if baselineDays <= 0 {
		baselineDays = s.baselineDays
	}
	ring := s.shortDays + s.baselineDays
	if shortDays >= ring {
		shortDays = ring - 1
	}
	if baselineDays > ring-shortDays {
		baselineDays = ring - shortDays
	}
	return shortDays, baselineDays
}

func (s *Store) readWindow(companyID, featureKey string, asOf time.Time, shortDays, baselineDays int) (Snapshot, error) {
	sh := s.shardFor(companyID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	cs, ok := sh.companies[companyID]
	if !ok {
		return Snapshot{}, ErrInsufficientData
	}
	if asOf.Sub(cs.firstSeen) < s.minHistory {
		return Snapshot{}, ErrInsufficientData
	}
	fw, ok := cs.features[featureKey]
	if !ok {
		return Snapshot{FeatureKey: featureKey}, nil
	}

	short, prior := fw.split(dayIndex(asOf), shortDays, baselineDays)
	return Snapshot{
		FeatureKey: featureKey,
		ShortCount: short,
		Baseline:   float64(prior) * float64(shortDays) / float64(baselineDays),
		TotalCount: fw.total,
		FirstSeen:  fw.firstSeen,
		LastSeen:   fw.lastSeen,
	}, nil
}

// split counts events inside the short window and in the trailing baseline
// span behind it, both relative to asOfDay. Buckets older than the combined
// span contribute to neither side; rotation happens on writes, so a read on
// a long-quiet key must age them out itself.
func (fw *featureWindow) split(asOfDay int64, shortDays, baselineDays int) (short, prior int) {
	base := asOfDay - fw.headDay // 0 when asOf is the newest day seen
	for i, c := range fw.buckets {
		if c == 0 {
			continue
		}
		age := base + int64(i)
		if age < 0 {
			continue
		}
		switch {
		case age < int64(shortDays):
			short += c
		case age < int64(shortDays+baselineDays):
			prior += c
		}
	}
	return short, prior
}

// Profile returns the accumulated firmographic profile for a company.
func (s *Store) Profile(companyID string) Profile {
	sh := s.shardFor(companyID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if cs, ok := sh.companies[companyID]; ok {
		return cs.profile
	}
	return Profile{}
}

// EvictIdle removes companies with no activity since now-ttl and returns
// how many were evicted. A ttl at or below zero falls back to the store
// default, so the maintenance sweep can pass the active calibration's TTL.
// Re-arrival after eviction starts a cold window.
func (s *Store) EvictIdle(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		ttl = s.idleTTL
	}
	evicted := 0
	cutoff := now.Add(-ttl)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, cs := range sh.companies {
			if cs.lastSeen.Before(cutoff) {
				delete(sh.companies, id)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	if evicted > 0 {
		metrics.RecordWindowEvictions(evicted)
		metrics.UpdateCompaniesTracked(s.Companies())
	}
	return evicted
}

// Companies returns the number of companies currently tracked.
func (s *Store) Companies() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.companies)
		sh.mu.RUnlock()
	}
	return total
}

func dayIndex(ts time.Time) int64 {
	return ts.Unix() / int64(day/time.Second)
}
