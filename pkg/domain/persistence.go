package domain

import (
	"context"
	"time"
)

// Mutation is a named change applied to a single station inside a
// transaction. The store clamps the result and preserves identity.
type Mutation struct {
	Name  string
	Apply func(*Station)
}

// EventQuery filters the event log. Since is inclusive, Until exclusive.
// A zero Limit means no limit.
type EventQuery struct {
	Limit int
	Since *time.Time
	Until *time.Time
}

// Transaction exposes the plant operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	ListStations() []Station
	FindStation(id int) (Station, bool)
	ApplyMutation(id int, m Mutation) (Station, error)
	AppendEvent(Event) (Event, error)
	AppendMaintenance(MaintenanceRecord) (MaintenanceRecord, error)
	Baseline() []BaselineStation
	Bounds() Bounds
	Now() time.Time
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListStations() []Station
	FindStation(id int) (Station, bool)
	ListEvents(q EventQuery) []Event
	// ListMaintenance returns a station's maintenance records, newest first.
	ListMaintenance(stationID int) []MaintenanceRecord
	Bounds() Bounds
	Version() uint64
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetStation(id int) (Station, bool)
	ListStations() []Station
	QueryEvents(q EventQuery) []Event
	Version() uint64
}
