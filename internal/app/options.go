package service

import (
	"time"

	"github.com/okian/maison/internal/adapters/mq/worker"
	"github.com/okian/maison/internal/config"
	"github.com/okian/maison/internal/domain/teamrequest"
	"github.com/okian/maison/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects a store instead of opening one from the configured
// driver. The service still closes it on Stop.
func WithStore(store teamrequest.SeedStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithPublisher injects the notification transport instead of building one
// from redis_url.
func WithPublisher(p worker.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock sets the time source of the workflow and the projector.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
