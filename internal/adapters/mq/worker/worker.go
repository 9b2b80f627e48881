// Package worker runs the per-event processing pipeline on a pool of shard
// workers. Events are routed by company id, so every event for a company is
// handled by exactly one goroutine and the stateful detectors and occurrence
// assemblers need no locks of their own.
package worker

import (
	"context"
	"hash/fnv"
	"runtime"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/adapters/emitter"
	"github.com/komparedocers/autonomous-lead-qualification/internal/adapters/repository"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/detect"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/occurrence"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/scoring"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/window"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultShardBuffer         = 1024
	defaultMaintenanceInterval = 1 * time.Minute
	shardShutdownTimeout       = 5 * time.Second
)

// Event abstracts what workers read off the queue.
// Using the model.Event type for consistency.
type Event = model.Event

// Queue defines how the pool receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// shardWorker owns the stateful half of the pipeline for its slice of the
// company-id space.
type shardWorker struct {
	id        int
	events    chan Event
	detectors *detect.Set
	assembler *occurrence.Assembler
	done      chan struct{}
}

// Pool routes events to shard workers and runs the maintenance loop.
type Pool struct {
	queue  Queue
	win    *window.Store
	cal    *calibration.Store
	scorer scoring.Scorer
	emit   emitter.Emitter
	log    repository.SignalLog

	shards              []*shardWorker
	shardBuffer         int
	maintenanceInterval time.Duration

	shutdown chan struct{}
	logger   logger.Logger
}

// NewPool creates a worker pool. A shardCount below one defaults to the CPU
// count.
func NewPool(shardCount int, queue Queue, win *window.Store, cal *calibration.Store, scorer scoring.Scorer, emit emitter.Emitter, log repository.SignalLog, opts ...Option) *Pool {
	if shardCount < 1 {
		shardCount = runtime.NumCPU()
	}

	p := &Pool{
		queue:               queue,
		win:                 win,
		cal:                 cal,
		scorer:              scorer,
		emit:                emit,
		log:                 log,
		shards:              make([]*shardWorker, shardCount),
		shardBuffer:         defaultShardBuffer,
		maintenanceInterval: defaultMaintenanceInterval,
		shutdown:            make(chan struct{}),
		logger:              logger.Get().Named("worker-pool"),
	}

	for _, opt := range opts {
		opt(p)
	}

	for i := range p.shards {
		p.shards[i] = &shardWorker{
			id:        i,
			events:    make(chan Event, p.shardBuffer),
			detectors: detect.DefaultSet(p.logger),
			assembler: occurrence.New(),
			done:      make(chan struct{}),
		}
	}

	metrics.UpdateWorkerCount(shardCount)

	return p
}

// Start launches the dispatcher and all shard workers.
func (p *Pool) Start(ctx context.Context) {
	for _, sw := range p.shards {
		go p.runShard(ctx, sw)
	}
	go p.dispatch(ctx)
}

// dispatch routes incoming events to their owning shard. Routing by company
// id keeps per-company event order and gives each company a single owner.
func (p *Pool) dispatch(ctx context.Context) {
	defer func() {
		for _, sw := range p.shards {
			close(sw.events)
		}
	}()

	eventChan := p.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case ev, ok := <-eventChan:
			if !ok {
				return
			}
			sw := p.shards[shardIndex(ev.CompanyID, len(p.shards))]
			select {
			case sw.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func shardIndex(companyID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(companyID))
	return int(h.Sum32() % uint32(n))
}

// runShard is the shard worker loop: events interleaved with maintenance
// ticks, all on one goroutine so the shard's detector and assembler state is
// single-owner.
func (p *Pool) runShard(ctx context.Context, sw *shardWorker) {
	defer close(sw.done)

	ticker := time.NewTicker(p.maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sw.events:
			if !ok {
				return
			}
			p.processEvent(ctx, sw, ev)
		case now := <-ticker.C:
			p.maintain(ctx, sw, now)
		}
	}
}

// processEvent runs one event through the full pipeline: window update,
// detection, occurrence assembly, then scoring and emission of whatever
// closed.
func (p *Pool) processEvent(ctx context.Context, sw *shardWorker, ev Event) { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	cal := p.cal.Active()

	p.win.Apply(&ev)

	for _, f := range sw.detectors.Evaluate(ctx, &ev, p.win, cal) {
		for _, occ := range sw.assembler.Observe(ev.CompanyID, f, cal) {
			// Score against event time so replays stay deterministic.
			p.emitOccurrence(ctx, occ, ev.TS)
		}
	}

	metrics.RecordEventProcessed()
}

// maintain runs the shard's periodic work: cool-down closure of idle
// occurrences and expiry of pending detector join state. Shard zero also
// evicts idle companies from the shared window store.
func (p *Pool) maintain(ctx context.Context, sw *shardWorker, now time.Time) {
	cal := p.cal.Active()
	for _, occ := range sw.assembler.CloseExpired(now, cal) {
		p.emitOccurrence(ctx, occ, now)
	}
	sw.detectors.Sweep(now)

	if sw.id == 0 {
		if evicted := p.win.EvictIdle(now, cal.IdleTTL()); evicted > 0 {
			p.logger.Info(ctx, "evicted idle companies", logger.Int("count", evicted))
		}
	}
}

// emitOccurrence scores a closed occurrence and hands the signal to the
// emitter and the query log. Emission failure is logged and counted but does
// not fail the pipeline; the signal remains queryable locally.
func (p *Pool) emitOccurrence(ctx context.Context, occ *model.SignalOccurrence, now time.Time) {
	scoreStart := time.Now()
	sig, err := p.scorer.Score(ctx, scoring.Input{
		Occurrence: occ,
		Profile:    p.win.Profile(occ.CompanyID),
		Now:        now,
	})
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Milliseconds()))
	if err != nil {
		metrics.RecordScoringError()
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "scoring_error")
		p.logger.Error(ctx, "scoring failed",
			logger.String("company_id", occ.CompanyID),
			logger.String("kind", string(occ.Kind)),
			logger.Error(err),
		)
		return
	}

	if err := p.log.Upsert(ctx, &sig); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "log_error")
		p.logger.Error(ctx, "signal log upsert failed",
			logger.String("signal_id", sig.ID),
			logger.Error(err),
		)
	}

	if err := p.emit.Publish(ctx, &sig); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "emit_error")
		p.logger.Error(ctx, "signal publish failed",
			logger.String("signal_id", sig.ID),
			logger.Error(err),
		)
	}
}

// OpenOccurrences sums in-flight occurrences across shards. Stats surface.
func (p *Pool) OpenOccurrences() int {
	total := 0
	for _, sw := range p.shards {
		total += sw.assembler.OpenCount()
	}
	return total
}

// Shutdown stops the dispatcher and waits for shard workers to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	for i, sw := range p.shards {
		select {
		case <-sw.done:
		case <-time.After(shardShutdownTimeout):
			p.logger.Warn(ctx, "shard shutdown timed out", logger.Int("shard", i))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
