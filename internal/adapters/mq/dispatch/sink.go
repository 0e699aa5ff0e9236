// Package dispatch connects the domain's notify.Sink to the delivery queue.
package dispatch

import (
	"context"
	"errors"

	"github.com/okian/maison/internal/domain/notify"
	"github.com/okian/maison/pkg/logger"
	"github.com/okian/maison/pkg/metrics"
)

// ErrBackpressure is returned when the queue refuses a payload.
var ErrBackpressure = errors.New("notification queue is full or closed")

// Enqueuer is the part of the queue the sink needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, p notify.Payload) bool
}

// Sink enqueues payloads for the worker pool. It never blocks.
type Sink struct {
	queue Enqueuer
	log   logger.Logger
}

var _ notify.Sink = (*Sink)(nil)

// NewSink creates a Sink over q.
func NewSink(q Enqueuer, log logger.Logger) *Sink {
	if log == nil {
		log = logger.Nop()
	}
	return &Sink{queue: q, log: log}
}

// Emit checks the payload's privacy contract and enqueues it.
func (s *Sink) Emit(ctx context.Context, p notify.Payload) error {
	if err := notify.CheckPrivacy(p); err != nil {
		metrics.RecordErrorByComponent("dispatch", "privacy")
		return err
	}
	// Delivery must not be cut short by the caller's request context.
	if !s.queue.Enqueue(context.WithoutCancel(ctx), p) {
		metrics.RecordNotificationDropped()
		s.log.Warn(ctx, "notification dropped",
			logger.String("payload_id", p.ID),
			logger.String("type", string(p.Type)),
		)
		return ErrBackpressure
	}
	return nil
}
