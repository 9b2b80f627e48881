// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/adapters/emitter"
	eventqueue "github.com/komparedocers/autonomous-lead-qualification/internal/adapters/mq/queue"
	workerpool "github.com/komparedocers/autonomous-lead-qualification/internal/adapters/mq/worker"
	"github.com/komparedocers/autonomous-lead-qualification/internal/adapters/repository"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/dedupe"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/scoring"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/types"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/window"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/metrics"
)

// Service implements the API dependencies for the signal detection engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	windows     *window.Store
	calibration *calibration.Store
	signalLog   repository.SignalLog
	deduper     dedupe.Deduper
	eventQueue  eventqueue.Queue
	scorer      scoring.Scorer
	emitter     emitter.Emitter
	workerPool  *workerpool.Pool

	// Configuration
	workerCount         int
	queueSize           int
	dedupeSize          int
	windowShards        int
	shortWindowDays     int
	baselineDays        int
	idleTTL             time.Duration
	maintenanceInterval time.Duration
	natsURL             string
	subjectPrefix       string
	emitMaxAttempts     int

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of shard workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithWindowShards sets the shard count of the window store.
func WithWindowShards(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.windowShards = n
		}
	}
}

// WithWindowDays sets the short window and baseline spans in days.
func WithWindowDays(short, baseline int) Option {
	return func(s *Service) {
		if short > 0 {
			s.shortWindowDays = short
		}
		if baseline > 0 {
			s.baselineDays = baseline
		}
	}
}

// WithIdleTTL sets how long an inactive company keeps window state.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

// WithMaintenanceInterval sets the shard maintenance tick.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maintenanceInterval = d
		}
	}
}

// WithNATS enables broker emission to the given URL and subject prefix.
func WithNATS(url, subjectPrefix string) Option {
	return func(s *Service) {
		s.natsURL = url
		if subjectPrefix != "" {
			s.subjectPrefix = subjectPrefix
		}
	}
}

// WithEmitMaxAttempts bounds the emission retry loop.
func WithEmitMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.emitMaxAttempts = n
		}
	}
}

// WithEmitter injects a pre-built emitter. Used by tests and by callers
// that need a custom downstream transport.
func WithEmitter(e emitter.Emitter) Option {
	return func(s *Service) {
		if e != nil {
			s.emitter = e
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:         runtime.NumCPU(),
		queueSize:           100000,
		dedupeSize:          50000,
		windowShards:        16,
		shortWindowDays:     calibration.DefaultShortWindowDays,
		baselineDays:        calibration.DefaultBaselineDays,
		idleTTL:             calibration.DefaultIdleTTLDays * 24 * time.Hour,
		maintenanceInterval: time.Minute,
		subjectPrefix:       "signals.detected",
		emitMaxAttempts:     3,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting signal detection service...")

	s.calibration = calibration.NewStore()
	s.windows = window.New(
		window.WithShardCount(s.windowShards),
		window.WithWindowDays(s.shortWindowDays, s.baselineDays),
		window.WithIdleTTL(s.idleTTL),
	)
	s.signalLog = repository.NewInMemoryLog()
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	s.scorer = scoring.NewLeadScorer(s.calibration)

	if s.emitter == nil {
		if s.natsURL != "" {
			natsEmitter, err := emitter.NewNATSEmitter(s.natsURL, s.logger.Named("emitter"),
				emitter.WithSubjectPrefix(s.subjectPrefix),
			)
			if err != nil {
				return err
			}
			s.emitter = emitter.NewRetryingEmitter(natsEmitter, s.logger.Named("emitter"),
				emitter.WithMaxAttempts(s.emitMaxAttempts),
			)
			s.logger.Info(ctx, "emitting signals to broker", logger.String("subject_prefix", s.subjectPrefix))
		} else {
			s.emitter = emitter.NewInMemoryEmitter()
			s.logger.Info(ctx, "no broker configured; signals stay in the local log")
		}
	}

	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workerPool = workerpool.NewPool(
		s.workerCount,
		s.eventQueue,
		s.windows,
		s.calibration,
		s.scorer,
		s.emitter,
		s.signalLog,
		workerpool.WithMaintenanceInterval(s.maintenanceInterval),
	)
	s.workerPool.Start(poolCtx)

	s.started = true
	s.logger.Info(ctx, "signal detection service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("shortWindowDays", s.shortWindowDays),
		logger.Int("baselineDays", s.baselineDays),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping signal detection service...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.emitter != nil {
		_ = s.emitter.Close()
	}

	s.started = false
	s.logger.Info(ctx, "signal detection service stopped")
}

// SeenAndRecord atomically checks if a delivery id was seen and records it
// if not. Returns true if the id was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes a delivery ID from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits an event for asynchronous processing.
func (s *Service) Enqueue(ctx context.Context, e model.Event) bool {
	ok := s.eventQueue.Enqueue(ctx, e)
	if ok {
		metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	}
	return ok
}

// Search returns emitted signals matching the filter.
func (s *Service) Search(ctx context.Context, filter types.SearchFilter) ([]*model.Signal, error) {
	return s.signalLog.Search(ctx, filter)
}

// GetSignal returns one emitted signal by id.
func (s *Service) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	return s.signalLog.Get(ctx, id)
}

// Calibration returns the active calibration snapshot.
func (s *Service) Calibration(_ context.Context) *calibration.Set {
	return s.calibration.Active()
}

// ApplyCalibration validates and installs a full calibration replacement.
func (s *Service) ApplyCalibration(_ context.Context, set *calibration.Set) error {
	return s.calibration.Apply(set)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		companies := s.windows.Companies()
		signals := s.signalLog.Count(ctx)

		stats["queueLength"] = queueLen
		stats["companiesTracked"] = companies
		stats["signalsEmitted"] = signals
		stats["openOccurrences"] = s.workerPool.OpenOccurrences()
		stats["calibrationVersion"] = s.calibration.Active().Version

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateCompaniesTracked(companies)
	}

	return stats
}
