package core

import (
	"context"
	"fmt"

	"plantcore/internal/infra/persistence/memory"
	"plantcore/internal/infra/persistence/postgres"
	"plantcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects the station and event store backend.
type StorageConfig struct {
	Driver      StorageDriver `env:"DRIVER" envDefault:"memory"`
	SQLitePath  string        `env:"SQLITE_PATH" envDefault:"./plantcore.db"`
	PostgresDSN string        `env:"POSTGRES_DSN"`
}

// OpenPersistentStore builds the configured backend. Durable backends also
// implement io.Closer.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine, opts ...memory.Option) (PersistentStore, error) {
	switch cfg.Driver {
	case "", StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
