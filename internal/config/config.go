// Package config loads process configuration from PLANTCORE_* environment
// variables and the optional YAML plant layout.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"plantcore/internal/blob"
	"plantcore/internal/core"
)

// EnvPrefix prefixes every variable name.
const EnvPrefix = "PLANTCORE_"

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
)

// Config is the process configuration.
type Config struct {
	HTTPAddr         string             `env:"HTTP_ADDR" envDefault:":8080"`
	SiteID           string             `env:"SITE_ID" envDefault:"tolkar_aosb"`
	LogLevel         string             `env:"LOG_LEVEL" envDefault:"info"`
	Storage          core.StorageConfig `envPrefix:"STORAGE_"`
	Blob             blob.Config        `envPrefix:"BLOB_"`
	NATSURL          string             `env:"NATS_URL"`
	SeedArchive      bool               `env:"SEED_ARCHIVE" envDefault:"true"`
	SeedArchiveKeep  int                `env:"SEED_ARCHIVE_KEEP" envDefault:"50"`
	SeedRestore      bool               `env:"SEED_RESTORE" envDefault:"false"`
	SeedStaleAfter   time.Duration      `env:"SEED_STALE_AFTER" envDefault:"2h"`
	EventLimit       int                `env:"EVENT_LIMIT" envDefault:"20"`
	EventLimitMax    int                `env:"EVENT_LIMIT_MAX" envDefault:"200"`
	MetricsBackend   string             `env:"METRICS_BACKEND" envDefault:"prometheus"`
	MetricsNamespace string             `env:"METRICS_NAMESPACE" envDefault:"plantcore"`
	LayoutFile       string             `env:"LAYOUT_FILE"`
	ShutdownTimeout  time.Duration      `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%sSTORAGE_POSTGRES_DSN required for postgres storage", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case blob.DriverMemory, blob.DriverFilesystem:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("%sBLOB_S3_BUCKET required for s3 blob driver", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.EventLimit <= 0 || c.EventLimitMax < c.EventLimit {
		return fmt.Errorf("event limits must satisfy 0 < limit <= max, got %d/%d", c.EventLimit, c.EventLimitMax)
	}
	if c.SeedStaleAfter <= 0 {
		return fmt.Errorf("seed stale threshold must be positive")
	}
	if c.SeedArchiveKeep < 0 {
		return fmt.Errorf("seed archive retention must not be negative, got %d", c.SeedArchiveKeep)
	}
	switch c.MetricsBackend {
	case MetricsPrometheus, MetricsExpvar:
	default:
		return fmt.Errorf("unknown metrics backend %q", c.MetricsBackend)
	}
	return nil
}
