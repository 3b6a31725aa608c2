package core

import (
	"time"

	"plantcore/internal/rollup"
	"plantcore/internal/seed"
	"plantcore/pkg/domain"
)

// Default read limits and site identifier.
const (
	DefaultSiteID     = "tolkar_aosb"
	DefaultEventLimit = 20
	MaxEventLimit     = 200
)

type serviceOptions struct {
	clock        Clock
	logger       Logger
	metrics      MetricsRecorder
	tracer       Tracer
	publisher    EventPublisher
	seeds        *seed.Store
	orders       rollup.OrderSource
	policy       domain.Policy
	siteID       string
	defaultLimit int
	maxLimit     int
	staleAfter   time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:        ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:       noopLogger{},
		metrics:      noopMetrics{},
		tracer:       noopTracer{},
		publisher:    noopPublisher{},
		orders:       rollup.DemoCatalog{},
		policy:       domain.DefaultPolicy(),
		siteID:       DefaultSiteID,
		defaultLimit: DefaultEventLimit,
		maxLimit:     MaxEventLimit,
		staleAfter:   rollup.DefaultStaleAfter,
	}
}

// WithClock overrides the clock used for read timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithEventPublisher forwards committed events to p.
func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(o *serviceOptions) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithSeedStore shares a seed store with the service. A private empty store
// is used otherwise.
func WithSeedStore(s *seed.Store) ServiceOption {
	return func(o *serviceOptions) { o.seeds = s }
}

// WithOrderSource replaces the scripted order catalog.
func WithOrderSource(src rollup.OrderSource) ServiceOption {
	return func(o *serviceOptions) {
		if src != nil {
			o.orders = src
		}
	}
}

// WithPolicy sets the shock and kaizen scripts.
func WithPolicy(p domain.Policy) ServiceOption {
	return func(o *serviceOptions) { o.policy = p }
}

// WithSiteID sets the site identifier stamped on views.
func WithSiteID(id string) ServiceOption {
	return func(o *serviceOptions) {
		if id != "" {
			o.siteID = id
		}
	}
}

// WithEventLimits sets the default and maximum event query sizes.
func WithEventLimits(def, maxLimit int) ServiceOption {
	return func(o *serviceOptions) {
		if def > 0 {
			o.defaultLimit = def
		}
		if maxLimit > 0 {
			o.maxLimit = maxLimit
		}
	}
}

// WithStaleAfter sets the seed age after which status degrades.
func WithStaleAfter(d time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}
