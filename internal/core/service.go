// Package core hosts the plant Service: the perturbation actions that mutate
// the station store and the read paths that route between seed data and the
// rollup engine.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantcore/internal/infra/persistence/memory"
	"plantcore/internal/rollup"
	"plantcore/internal/seed"
	"plantcore/pkg/domain"
)

// Service exposes the plant simulation to adapters.
type Service struct {
	store        PersistentStore
	seeds        *seed.Store
	clock        Clock
	logger       Logger
	metrics      MetricsRecorder
	tracer       Tracer
	publisher    EventPublisher
	orders       rollup.OrderSource
	policy       domain.Policy
	siteID       string
	defaultLimit int
	maxLimit     int
	staleAfter   time.Duration
	startedAt    time.Time
}

// NewService constructs a service backed by store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	seeds := o.seeds
	if seeds == nil {
		seeds = seed.NewStore(seed.WithClock(o.clock.Now))
	}
	return &Service{
		store:        store,
		seeds:        seeds,
		clock:        o.clock,
		logger:       o.logger,
		metrics:      o.metrics,
		tracer:       o.tracer,
		publisher:    o.publisher,
		orders:       o.orders,
		policy:       o.policy,
		siteID:       o.siteID,
		defaultLimit: o.defaultLimit,
		maxLimit:     o.maxLimit,
		staleAfter:   o.staleAfter,
		startedAt:    o.clock.Now(),
	}
}

// NewInMemoryService creates a service over a fresh in-memory store seeded
// with the default baseline and the policy's bounds.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	store := memory.NewStore(engine, memory.WithBounds(o.policy.Bounds), memory.WithClock(o.clock.Now))
	return NewService(store, opts...)
}

// Store returns the underlying station store.
func (s *Service) Store() PersistentStore { return s.store }

// Seeds returns the seed override store.
func (s *Service) Seeds() *seed.Store { return s.seeds }

// SiteID returns the site identifier stamped on views.
func (s *Service) SiteID() string { return s.siteID }

// run wraps an operation with tracing, metrics and logging. Panics and
// errors outside the documented kinds surface as domain.ErrInternal.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) (err error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	s.logger.Debug("operation started", "operation", op)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("operation panicked", "operation", op, "panic", fmt.Sprint(r))
			err = domain.ErrInternal
		}
		if err != nil && !expectedError(err) {
			s.logger.Error("operation failed", "operation", op, "error", err)
			err = fmt.Errorf("%s: %w", op, domain.ErrInternal)
		} else if err != nil {
			s.logger.Debug("operation rejected", "operation", op, "error", err)
		} else {
			s.logger.Debug("operation finished", "operation", op, "duration", time.Since(started))
		}
		s.metrics.Observe(ctx, op, err == nil, time.Since(started))
		span.End(err)
	}()
	return fn(ctx)
}

func expectedError(err error) bool {
	var shape *seed.ShapeError
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNoStationsAvailable),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrInvalidMaintenance),
		errors.Is(err, domain.ErrInternal),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &shape):
		return true
	}
	return false
}

func (s *Service) publish(ctx context.Context, events ...Event) {
	for _, e := range events {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Warn("event publish failed", "event_id", e.ID, "event_type", e.Type, "error", err)
		}
	}
}
