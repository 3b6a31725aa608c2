package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"plantcore/internal/infra/persistence/memory"
	"plantcore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.ApplyMutation(3, domain.Mutation{Apply: func(s *domain.Station) { s.WIP = 8 }}); err != nil {
			return err
		}
		if _, err := tx.AppendMaintenance(domain.MaintenanceRecord{ID: "m-1", StationID: 3, MaintenanceType: "corrective", Description: "jammed feeder"}); err != nil {
			return err
		}
		_, err := tx.AppendEvent(domain.Event{Type: domain.EventShock, StationID: domain.IntPtr(3)})
		return err
	}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if st, ok := reloaded.GetStation(3); !ok || st.WIP != 8 {
		t.Fatalf("expected persisted wip, got %+v", st)
	}
	events := reloaded.QueryEvents(domain.EventQuery{})
	if len(events) != 2 || events[0].Type != domain.EventShock {
		t.Fatalf("expected startup and shock events, got %+v", events)
	}
	var logs []domain.MaintenanceRecord
	_ = reloaded.View(context.Background(), func(v domain.TransactionView) error {
		logs = v.ListMaintenance(3)
		return nil
	})
	if len(logs) != 1 || logs[0].Description != "jammed feeder" {
		t.Fatalf("expected persisted maintenance record, got %+v", logs)
	}
	if reloaded.Version() != 1 {
		t.Fatalf("expected version 1 after reload, got %d", reloaded.Version())
	}
	var next domain.Event
	if _, err := reloaded.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		next, err = tx.AppendEvent(domain.Event{Type: domain.EventInfo})
		return err
	}); err != nil {
		t.Fatalf("append after reload: %v", err)
	}
	if next.ID != 3 {
		t.Fatalf("expected event id to continue at 3, got %d", next.ID)
	}
}

func TestSQLiteStoreWritesBaselineOnFirstOpen(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	if count != len(sqliteBuckets) {
		t.Fatalf("expected %d buckets, got %d", len(sqliteBuckets), count)
	}
	if filepath.Base(store.Path()) != "state.db" {
		t.Fatalf("unexpected path %s", store.Path())
	}
}

func TestSQLiteStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "load.db")
	store, err := NewStore(path, nil, memory.WithBaseline(nil))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`UPDATE state SET payload = ? WHERE bucket = 'stations'`, []byte("{not json")); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path, nil); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSQLiteStoreRollbackSkipsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.ApplyMutation(42, domain.Mutation{Apply: func(*domain.Station) {}})
		return err
	})
	if err == nil {
		t.Fatalf("expected missing station error")
	}
	if store.Version() != 0 {
		t.Fatalf("failed transaction should not bump version")
	}
}

func TestSQLiteStoreWriteFailureLeavesStateUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	_ = store.DB().Close()
	before, _ := store.GetStation(1)
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.ApplyMutation(1, domain.Mutation{Apply: func(s *domain.Station) { s.WIP = before.WIP + 5 }})
		return err
	})
	if err == nil {
		t.Fatalf("expected write failure on closed database")
	}
	if store.Version() != 0 {
		t.Fatalf("failed write must not advance version, got %d", store.Version())
	}
	if after, _ := store.GetStation(1); after.WIP != before.WIP {
		t.Fatalf("failed write applied wip %d", after.WIP)
	}
	if len(store.QueryEvents(domain.EventQuery{})) != 1 {
		t.Fatalf("expected only the startup event")
	}
}
