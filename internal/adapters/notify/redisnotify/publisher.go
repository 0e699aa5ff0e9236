// Package redisnotify publishes notification payloads on Redis pub/sub.
//
// Each audience kind gets its own channel, "<prefix>:<kind>", so brand-side
// subscribers never receive talent-facing payloads.
package redisnotify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/maison/internal/domain/notify"
)

const defaultChannel = "maison.notifications"

// Publisher implements worker.Publisher on a Redis client.
type Publisher struct {
	rdb     redis.UniversalClient
	channel string
}

// Option applies a configuration option to the Publisher.
type Option func(*Publisher)

// WithChannel sets the channel prefix.
func WithChannel(channel string) Option {
	return func(p *Publisher) {
		if channel != "" {
			p.channel = channel
		}
	}
}

// NewClient creates and verifies a Redis client connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// New creates a Publisher over rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Publisher {
	p := &Publisher{rdb: rdb, channel: defaultChannel}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Channel returns the channel payloads for kind are published on.
func (p *Publisher) Channel(kind notify.AudienceKind) string {
	return p.channel + ":" + string(kind)
}

// Publish sends the payload as JSON.
func (p *Publisher) Publish(ctx context.Context, payload notify.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload %s: %w", payload.ID, err)
	}
	if err := p.rdb.Publish(ctx, p.Channel(payload.Audience.Kind), body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
