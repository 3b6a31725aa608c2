// Package sqlite provides a SQLite-backed persistent store that writes a
// snapshot of the in-memory plant state for every committing transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"plantcore/internal/infra/persistence/memory"
	"plantcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
// Every committing transaction writes its snapshot before the memory state
// is swapped, so a failed write leaves both sides at the previous state.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

type meta struct {
	NextEventID int64  `json:"next_event_id"`
	Version     uint64 `json:"version"`
}

var sqliteBuckets = []string{"stations", "events", "maintenance", "meta"}

// NewStore constructs a snapshotting SQLite-backed persistent store. An
// existing snapshot replaces the baseline; otherwise the baseline state is
// written immediately.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = "plantcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{db: db, path: path}
	opts = append(append([]memory.Option(nil), opts...), memory.WithCommitHook(s.persist))
	s.Store = memory.NewStore(engine, opts...)
	loaded, err := s.load()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if !loaded {
		if err := s.persist(context.Background(), s.ExportState()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() (bool, error) {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snapshot memory.Snapshot
	var m meta
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return false, fmt.Errorf("scan: %w", err)
		}
		found = true
		switch bucket {
		case "stations":
			if err := json.Unmarshal(payload, &snapshot.Stations); err != nil {
				return false, fmt.Errorf("decode stations: %w", err)
			}
		case "events":
			if err := json.Unmarshal(payload, &snapshot.Events); err != nil {
				return false, fmt.Errorf("decode events: %w", err)
			}
		case "maintenance":
			if err := json.Unmarshal(payload, &snapshot.Maintenance); err != nil {
				return false, fmt.Errorf("decode maintenance: %w", err)
			}
		case "meta":
			if err := json.Unmarshal(payload, &m); err != nil {
				return false, fmt.Errorf("decode meta: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate state: %w", err)
	}
	if !found {
		return false, nil
	}
	snapshot.NextEventID = m.NextEventID
	snapshot.Version = m.Version
	s.ImportState(snapshot)
	return true, nil
}

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case "stations":
			data, err = json.Marshal(snapshot.Stations)
		case "events":
			data, err = json.Marshal(snapshot.Events)
		case "maintenance":
			data, err = json.Marshal(snapshot.Maintenance)
		case "meta":
			data, err = json.Marshal(meta{NextEventID: snapshot.NextEventID, Version: snapshot.Version})
		}
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
