// Package worker delivers queued notification payloads to a Publisher.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/maison/internal/domain/dedupe"
	"github.com/okian/maison/internal/domain/notify"
	"github.com/okian/maison/pkg/logger"
	"github.com/okian/maison/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	poolShutdownTimeout     = 30 * time.Second
	publishTimeout          = 5 * time.Second
)

// Publisher hands a payload to the outside world.
type Publisher interface {
	Publish(ctx context.Context, p notify.Payload) error
}

// Queue defines how workers receive payloads.
type Queue interface {
	Dequeue(ctx context.Context) <-chan notify.Payload
}

// Worker publishes payloads until its queue closes or it is shut down.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	publisher Publisher
	deduper   dedupe.Deduper
	name      string
	processed *atomic.Int64
	skipped   *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker. A nil deduper publishes every payload.
func NewInMemoryWorker(q Queue, publisher Publisher, deduper dedupe.Deduper, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		publisher: publisher,
		deduper:   deduper,
		name:      "worker",
		processed: new(atomic.Int64),
		skipped:   new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case p, ok := <-items:
			if !ok {
				return
			}
			if err := w.deliver(ctx, p); err != nil {
				w.logger.Error(ctx, "delivery failed", logger.String("payload_id", p.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the current delivery to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) deliver(ctx context.Context, p notify.Payload) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if w.deduper != nil && w.deduper.SeenAndRecord(ctx, p.ID) {
		w.skipped.Add(1)
		metrics.RecordNotificationDuplicate()
		w.logger.Debug(ctx, "duplicate payload skipped", logger.String("payload_id", p.ID))
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := w.publisher.Publish(pctx, p); err != nil {
		if w.deduper != nil {
			w.deduper.Unrecord(ctx, p.ID)
		}
		metrics.RecordNotificationFailed(string(p.Type))
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "publish_error")
		return fmt.Errorf("publish payload %s: %w", p.ID, err)
	}

	w.processed.Add(1)
	metrics.RecordNotificationPublished(string(p.Type), string(p.Audience.Kind), float64(time.Since(start).Microseconds())/1000)
	return nil
}

// Pool runs several workers over one queue.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed atomic.Int64
	skipped   atomic.Int64
	logger    logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count uses a
// multiple of the CPU count.
func NewPool(workerCount int, q Queue, publisher Publisher, deduper dedupe.Deduper, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	base := &InMemoryWorker{logger: p.logger}
	for _, opt := range opts {
		opt(base)
	}
	p.logger = base.logger.Named("worker-pool")

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{}, opts...)
		workerOpts = append(workerOpts, WithName("worker-"+strconv.Itoa(i)))
		w := NewInMemoryWorker(q, publisher, deduper, workerOpts...)
		w.processed = &p.processed
		w.skipped = &p.skipped
		p.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many payloads the pool has published.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Skipped returns how many duplicate payloads the pool dropped.
func (p *Pool) Skipped() int64 { return p.skipped.Load() }

// Shutdown closes the queue, lets the workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
