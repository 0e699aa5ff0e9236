// Package service wires the matching engine, the team request workflow and
// the notification pipeline into the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/maison/internal/adapters/mq/dispatch"
	"github.com/okian/maison/internal/adapters/mq/queue"
	"github.com/okian/maison/internal/adapters/mq/worker"
	"github.com/okian/maison/internal/adapters/notify/lognotify"
	"github.com/okian/maison/internal/adapters/notify/redisnotify"
	repository "github.com/okian/maison/internal/adapters/repository"
	"github.com/okian/maison/internal/adapters/repository/postgres"
	"github.com/okian/maison/internal/adapters/repository/sqlite"
	"github.com/okian/maison/internal/adapters/scheduler"
	"github.com/okian/maison/internal/config"
	"github.com/okian/maison/internal/domain/dedupe"
	"github.com/okian/maison/internal/domain/errs"
	"github.com/okian/maison/internal/domain/matching"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/normalize"
	"github.com/okian/maison/internal/domain/notify"
	"github.com/okian/maison/internal/domain/teamrequest"
	"github.com/okian/maison/pkg/logger"
	"github.com/okian/maison/pkg/metrics"
)

const opRank = "service.rank"

// Service implements the API dependencies for the maison platform.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	now    func() time.Time
	logger logger.Logger

	// Core components
	store      teamrequest.SeedStore
	engine     *matching.Engine
	normalizer *normalize.Normalizer
	projector  *notify.Projector
	requests   *teamrequest.Service

	// Notification pipeline
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	publisher worker.Publisher
	closers   []func() error
	pool      *worker.Pool
	sink      *dispatch.Sink
	sweeper   *scheduler.Scheduler

	// State
	started bool
	cancel  context.CancelFunc
}

// New constructs a new Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds every component and starts the worker pool and the expiry
// sweep.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting maison service...")

	engine, err := matching.New(s.cfg.EngineOptions()...)
	if err != nil {
		return fmt.Errorf("matching engine: %w", err)
	}
	s.engine = engine
	s.normalizer = normalize.New()
	s.projector = notify.NewProjector(
		notify.WithClock(s.now),
		notify.WithAlertThreshold(s.cfg.AlertThreshold),
	)

	if s.store == nil {
		store, err := openStore(ctx, s.cfg)
		if err != nil {
			return err
		}
		s.store = store
	}
	s.closers = append(s.closers, s.store.Close)
	if s.cfg.SeedFile != "" {
		seed, err := ReadSeed(s.cfg.SeedFile)
		if err != nil {
			s.closeAll()
			return err
		}
		if err := seed.Apply(ctx, s.store, s.now()); err != nil {
			s.closeAll()
			return err
		}
		s.logger.Info(ctx, "seed loaded",
			logger.String("file", s.cfg.SeedFile),
			logger.Int("brands", len(seed.Brands)),
			logger.Int("groups", len(seed.Groups)),
		)
	}

	if s.publisher == nil {
		publisher, err := s.openPublisher(ctx)
		if err != nil {
			s.closeAll()
			return err
		}
		s.publisher = publisher
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.queue, s.publisher, s.deduper, worker.WithLogger(s.logger))
	s.pool.Start(runCtx)
	s.sink = dispatch.NewSink(s.queue, s.logger)

	s.requests = teamrequest.New(s.store,
		teamrequest.WithClock(s.now),
		teamrequest.WithSink(s.sink),
		teamrequest.WithProjector(s.projector),
		teamrequest.WithLogger(s.logger),
	)

	s.sweeper = scheduler.New(s.requests,
		scheduler.WithSpec(s.cfg.SweepSchedule),
		scheduler.WithLogger(s.logger),
	)
	if err := s.sweeper.Start(runCtx); err != nil {
		cancel()
		_ = s.pool.Shutdown(ctx)
		s.closeAll()
		return fmt.Errorf("expiry sweep: %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "maison service started",
		logger.String("store_driver", s.cfg.StoreDriver),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.Int("dedupeSize", s.cfg.DedupeSize),
	)
	return nil
}

// openStore opens the store selected by the configured driver.
func openStore(ctx context.Context, cfg *config.Config) (teamrequest.SeedStore, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.StoreDriver)
}

// openPublisher publishes to redis when redis_url is set and to the log
// otherwise.
func (s *Service) openPublisher(ctx context.Context) (worker.Publisher, error) {
	if s.cfg.RedisURL == "" {
		return lognotify.New(s.logger), nil
	}
	rdb, err := redisnotify.NewClient(ctx, s.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	publisher := redisnotify.New(rdb, redisnotify.WithChannel(s.cfg.NotifyChannel))
	s.closers = append(s.closers, publisher.Close)
	return publisher, nil
}

func (s *Service) closeAll() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error(context.Background(), "error closing component", logger.Error(err))
		}
	}
	s.closers = nil
}

// Stop gracefully shuts down the service: the sweep first, then the
// notification pipeline, then the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping maison service...")

	s.sweeper.Stop()
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}
	s.cancel()
	s.closeAll()

	s.started = false
	s.logger.Info(ctx, "maison service stopped")
}

// Match normalizes both records and scores them. A qualifying dream brand
// match is announced to the talent.
func (s *Service) Match(ctx context.Context, rawTalent normalize.RawTalent, rawOpportunity normalize.RawOpportunity) (model.MatchResult, error) {
	if err := s.ready(); err != nil {
		return model.MatchResult{}, err
	}
	talent, err := s.normalizer.Talent(rawTalent)
	if err != nil {
		return model.MatchResult{}, err
	}
	opportunity, err := s.normalizer.Opportunity(rawOpportunity)
	if err != nil {
		return model.MatchResult{}, err
	}

	res := s.engine.Calculate(talent, opportunity)
	metrics.RecordMatch(res.OverallScore)
	if res.DreamBrandRank > 0 {
		metrics.RecordDreamBrandBoost(strconv.Itoa(res.DreamBrandRank), s.engine.BoostCapped(res))
	}
	if alert, ok := s.projector.DreamBrandAlert(talent, opportunity, res); ok {
		if err := s.sink.Emit(ctx, alert); err != nil {
			s.logger.Warn(ctx, "dream brand alert not dispatched",
				logger.String("talent_id", talent.ID),
				logger.Error(err),
			)
		}
	}
	return res, nil
}

// Rank normalizes a candidate pool and orders it against the opportunity.
// The brand receives an aggregate summary of the pool.
func (s *Service) Rank(ctx context.Context, rawOpportunity normalize.RawOpportunity, rawTalents []normalize.RawTalent) ([]matching.RankedMatch, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	opportunity, err := s.normalizer.Opportunity(rawOpportunity)
	if err != nil {
		return nil, err
	}
	talents := make([]model.TalentProfile, 0, len(rawTalents))
	for i, raw := range rawTalents {
		t, err := s.normalizer.Talent(raw)
		if err != nil {
			return nil, errs.WrapKind(opRank, errs.ErrValidation, fmt.Errorf("talents[%d]: %s", i, errs.Message(err)))
		}
		talents = append(talents, t)
	}

	ranked := s.engine.Rank(opportunity, talents)
	metrics.RecordRankingBatch(len(ranked))
	if opportunity.BrandID != "" && len(talents) > 0 {
		summary := s.projector.TalentPoolSummary(opportunity.BrandID, talents)
		if err := s.sink.Emit(ctx, summary); err != nil {
			s.logger.Warn(ctx, "talent pool summary not dispatched",
				logger.String("brand_id", opportunity.BrandID),
				logger.Error(err),
			)
		}
	}
	return ranked, nil
}

// Create files a join request.
func (s *Service) Create(ctx context.Context, p teamrequest.CreateParams) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	return s.requests.Create(ctx, p)
}

// Approve records a brand-level approval.
func (s *Service) Approve(ctx context.Context, p teamrequest.ApproveParams) (model.TeamRequest, error) {
	if err := s.ready(); err != nil {
		return model.TeamRequest{}, err
	}
	return s.requests.Approve(ctx, p)
}

// GroupApprove records a group-level approval.
func (s *Service) GroupApprove(ctx context.Context, p teamrequest.ApproveParams) (model.TeamRequest, error) {
	if err := s.ready(); err != nil {
		return model.TeamRequest{}, err
	}
	return s.requests.GroupApprove(ctx, p)
}

// Reject records a rejection.
func (s *Service) Reject(ctx context.Context, p teamrequest.RejectParams) (model.TeamRequest, error) {
	if err := s.ready(); err != nil {
		return model.TeamRequest{}, err
	}
	return s.requests.Reject(ctx, p)
}

// ListPending lists requests visible to the actor.
func (s *Service) ListPending(ctx context.Context, p teamrequest.ListParams) ([]model.TeamRequest, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.requests.ListPending(ctx, p)
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, actorID, requestID string) (model.TeamRequest, error) {
	if err := s.ready(); err != nil {
		return model.TeamRequest{}, err
	}
	return s.requests.Get(ctx, actorID, requestID)
}

// PendingRequestID returns the profile's live pending request id.
func (s *Service) PendingRequestID(ctx context.Context, profileID string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	return s.requests.PendingRequestID(ctx, profileID)
}

// ExpireOverdue runs one expiry pass outside the schedule.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.requests.ExpireOverdue(ctx)
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"storeDriver": s.cfg.StoreDriver,
		"queueSize":   s.cfg.QueueSize,
		"dedupeSize":  s.cfg.DedupeSize,
	}
	if !s.started {
		return stats
	}

	queueLen := s.queue.Len()
	stats["workerCount"] = s.pool.Size()
	stats["queueLength"] = queueLen
	stats["published"] = s.pool.Processed()
	stats["duplicatesSkipped"] = s.pool.Skipped()
	stats["dedupeEntries"] = s.deduper.Size()
	metrics.UpdateQueueSize(queueLen, s.cfg.QueueSize)
	metrics.UpdateWorkerCount(s.pool.Size())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	counts, err := s.store.CountRequests(ctx)
	if err != nil {
		s.logger.Warn(ctx, "count team requests failed", logger.Error(err))
	} else {
		byStatus := make(map[string]int, len(counts))
		for _, st := range []model.Status{model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusExpired} {
			byStatus[string(st)] = counts[st]
			metrics.UpdateTeamRequestCount(string(st), counts[st])
		}
		stats["teamRequests"] = byStatus
	}
	return stats
}
