package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"plantcore/internal/infra/persistence/memory"
	"plantcore/internal/infra/persistence/postgres/testutil"
	"plantcore/pkg/domain"
)

func openStub(t *testing.T) *testutil.StubConn {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	return conn
}

func bucketPayload(t *testing.T, conn *testutil.StubConn, bucket string) []byte {
	t.Helper()
	for _, row := range conn.Tables["state"] {
		if row["bucket"] == bucket {
			return row["payload"].([]byte)
		}
	}
	t.Fatalf("bucket %s not persisted", bucket)
	return nil
}

func TestNewStoreWritesBaselineWhenEmpty(t *testing.T) {
	conn := openStub(t)
	store, err := NewStore(context.Background(), "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(store.ListStations()) != 5 {
		t.Fatalf("expected baseline stations")
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS STATE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table ddl, got %v", conn.Execs)
	}
	var stations []domain.Station
	if err := json.Unmarshal(bucketPayload(t, conn, "stations"), &stations); err != nil {
		t.Fatalf("decode stations: %v", err)
	}
	if len(stations) != 5 {
		t.Fatalf("expected 5 persisted stations, got %d", len(stations))
	}
}

func TestNewStoreLoadsExistingSnapshot(t *testing.T) {
	conn := openStub(t)
	stations, _ := json.Marshal([]domain.Station{{ID: 9, Name: "Assembly", WIP: 4, CycleTimeSec: 60, FPY: 95, OEE: 88, Status: domain.StationOK}})
	events, _ := json.Marshal([]domain.Event{{ID: 4, Type: domain.EventInfo, Label: "restored"}})
	meta, _ := json.Marshal(map[string]any{"next_event_id": 7, "version": 3})
	conn.Put("state", map[string]any{"bucket": "stations", "payload": stations})
	conn.Put("state", map[string]any{"bucket": "events", "payload": events})
	conn.Put("state", map[string]any{"bucket": "meta", "payload": meta})

	store, err := NewStore(context.Background(), "ignored", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := store.ListStations(); len(got) != 1 || got[0].ID != 9 {
		t.Fatalf("expected restored station, got %+v", got)
	}
	if store.Version() != 3 {
		t.Fatalf("expected restored version 3, got %d", store.Version())
	}
	var appended domain.Event
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		appended, err = tx.AppendEvent(domain.Event{Type: domain.EventInfo})
		return err
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if appended.ID != 7 {
		t.Fatalf("expected next event id 7, got %d", appended.ID)
	}
}

func TestRunInTransactionPersistsState(t *testing.T) {
	conn := openStub(t)
	store, err := NewStore(context.Background(), "ignored", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.ApplyMutation(1, domain.Mutation{Apply: func(s *domain.Station) { s.WIP = 6 }})
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	var stations []domain.Station
	if err := json.Unmarshal(bucketPayload(t, conn, "stations"), &stations); err != nil {
		t.Fatalf("decode stations: %v", err)
	}
	if stations[0].WIP != 6 {
		t.Fatalf("expected persisted wip 6, got %d", stations[0].WIP)
	}
	if len(conn.Tables["state"]) != len(postgresBuckets) {
		t.Fatalf("expected one row per bucket, got %d", len(conn.Tables["state"]))
	}
}

func TestNewStorePingFailure(t *testing.T) {
	conn := openStub(t)
	conn.FailPing = true
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("no driver") })
	defer restore()
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestNewStoreDecodeFailure(t *testing.T) {
	conn := openStub(t)
	conn.Put("state", map[string]any{"bucket": "stations", "payload": []byte("{broken")})
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "decode stations") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewStoreRowsError(t *testing.T) {
	conn := openStub(t)
	conn.RowsErr = errors.New("cursor lost")
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "iterate state") {
		t.Fatalf("expected iterate error, got %v", err)
	}
}

func TestRunInTransactionCommitFailure(t *testing.T) {
	conn := openStub(t)
	store, err := NewStore(context.Background(), "", nil, memory.WithBaseline(domain.DefaultBaseline()[:1]))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.FailCommit = true
	before := len(store.QueryEvents(domain.EventQuery{}))
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AppendEvent(domain.Event{Type: domain.EventInfo})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
	assertUnchanged(t, store, before)
}

func assertUnchanged(t *testing.T, store *Store, events int) {
	t.Helper()
	if store.Version() != 0 {
		t.Fatalf("failed persist must not advance version, got %d", store.Version())
	}
	if got := len(store.QueryEvents(domain.EventQuery{})); got != events {
		t.Fatalf("failed persist applied events: %d -> %d", events, got)
	}
}

func TestRunInTransactionBeginFailure(t *testing.T) {
	conn := openStub(t)
	store, err := NewStore(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.FailBegin = true
	before := len(store.QueryEvents(domain.EventQuery{}))
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AppendEvent(domain.Event{Type: domain.EventInfo})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin error, got %v", err)
	}
	assertUnchanged(t, store, before)

	conn.FailBegin = false
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AppendEvent(domain.Event{Type: domain.EventInfo})
		return err
	}); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if store.Version() != 1 {
		t.Fatalf("expected version 1 after retry, got %d", store.Version())
	}
}
