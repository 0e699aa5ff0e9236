// Package lognotify publishes notification payloads to the structured log.
// It stands in for a broker in development setups.
package lognotify

import (
	"context"

	"github.com/okian/maison/internal/domain/notify"
	"github.com/okian/maison/pkg/logger"
)

// Publisher writes one log line per payload.
type Publisher struct {
	log logger.Logger
}

// New creates a Publisher.
func New(log logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{log: log.Named("notifications")}
}

// Publish logs the payload envelope and its data.
func (p *Publisher) Publish(ctx context.Context, payload notify.Payload) error {
	p.log.Info(ctx, "notification",
		logger.String("payload_id", payload.ID),
		logger.String("type", string(payload.Type)),
		logger.String("audience_kind", string(payload.Audience.Kind)),
		logger.String("audience_id", payload.Audience.ID),
		logger.Time("occurred_at", payload.OccurredAt),
		logger.Any("data", payload.Data),
	)
	return nil
}
