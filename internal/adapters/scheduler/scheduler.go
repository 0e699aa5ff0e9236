// Package scheduler runs the periodic team request expiry sweep on cron.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/okian/maison/pkg/logger"
)

const defaultSpec = "@every 1m"

// Sweeper expires overdue requests and reports how many it touched.
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Scheduler wraps robfig/cron and drives the sweep.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	log     logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithSpec sets the cron spec, e.g. "@every 5m" or "*/10 * * * *".
func WithSpec(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.spec = spec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Scheduler. Overlapping runs are skipped.
func New(sweeper Sweeper, opts ...Option) *Scheduler {
	s := &Scheduler{
		sweeper: sweeper,
		spec:    defaultSpec,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("scheduler")
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return s
}

// Start registers the sweep, runs it once and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if _, err := s.cron.AddFunc(s.spec, func() { s.Sweep(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info(ctx, "expiry sweep scheduled", logger.String("spec", s.spec))
	go s.Sweep(runCtx)
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.log.Info(context.Background(), "expiry sweep stopped")
}

// Sweep runs one expiry pass.
func (s *Scheduler) Sweep(ctx context.Context) {
	n, err := s.sweeper.ExpireOverdue(ctx)
	if err != nil {
		s.log.Error(ctx, "expiry sweep failed", logger.Error(err))
		return
	}
	if n > 0 {
		s.log.Info(ctx, "expiry sweep complete", logger.Int("expired", n))
	}
}
