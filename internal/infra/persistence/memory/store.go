// Package memory provides an in-memory implementation of the plant
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"plantcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Station aliases domain.Station for in-memory persistence operations.
	Station = domain.Station
	// Event aliases domain.Event.
	Event = domain.Event
	// MaintenanceRecord aliases domain.MaintenanceRecord.
	MaintenanceRecord = domain.MaintenanceRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	stations    []Station
	index       map[int]int
	events      []Event
	maintenance []MaintenanceRecord
	nextEventID int64
	version     uint64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Stations    []Station           `json:"stations"`
	Events      []Event             `json:"events"`
	Maintenance []MaintenanceRecord `json:"maintenance"`
	NextEventID int64               `json:"next_event_id"`
	Version     uint64              `json:"version"`
}

func newMemoryState() memoryState {
	return memoryState{index: make(map[int]int), nextEventID: 1}
}

func (s *memoryState) reindex() {
	sort.SliceStable(s.stations, func(i, j int) bool { return s.stations[i].ID < s.stations[j].ID })
	s.index = make(map[int]int, len(s.stations))
	for i, st := range s.stations {
		s.index[st.ID] = i
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		stations:    append([]Station(nil), s.stations...),
		index:       make(map[int]int, len(s.index)),
		events:      make([]Event, len(s.events)),
		maintenance: make([]MaintenanceRecord, len(s.maintenance)),
		nextEventID: s.nextEventID,
		version:     s.version,
	}
	for k, v := range s.index {
		out.index[k] = v
	}
	for i, ev := range s.events {
		out.events[i] = cloneEvent(ev)
	}
	for i, rec := range s.maintenance {
		out.maintenance[i] = cloneMaintenance(rec)
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	clone := state.clone()
	return Snapshot{
		Stations:    clone.stations,
		Events:      clone.events,
		Maintenance: clone.maintenance,
		NextEventID: clone.nextEventID,
		Version:     clone.version,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	seen := make(map[int]struct{}, len(s.Stations))
	for _, st := range s.Stations {
		if _, dup := seen[st.ID]; dup {
			continue
		}
		seen[st.ID] = struct{}{}
		state.stations = append(state.stations, st)
	}
	state.reindex()
	for _, ev := range s.Events {
		state.events = append(state.events, cloneEvent(ev))
		if ev.ID >= state.nextEventID {
			state.nextEventID = ev.ID + 1
		}
	}
	for _, rec := range s.Maintenance {
		if _, ok := state.index[rec.StationID]; ok {
			state.maintenance = append(state.maintenance, cloneMaintenance(rec))
		}
	}
	if s.NextEventID > state.nextEventID {
		state.nextEventID = s.NextEventID
	}
	state.version = s.Version
	return state
}

func cloneEvent(e Event) Event {
	if e.StationID != nil {
		id := *e.StationID
		e.StationID = &id
	}
	if e.Payload != nil {
		payload := make(map[string]string, len(e.Payload))
		for k, v := range e.Payload {
			payload[k] = v
		}
		e.Payload = payload
	}
	return e
}

func cloneMaintenance(m MaintenanceRecord) MaintenanceRecord {
	if m.PartsReplaced != nil {
		parts := *m.PartsReplaced
		m.PartsReplaced = &parts
	}
	if m.CostEUR != nil {
		cost := *m.CostEUR
		m.CostEUR = &cost
	}
	return m
}

// CommitHook runs under the store lock with the state a transaction is about
// to commit. An error aborts the commit and leaves the store unchanged.
type CommitHook func(ctx context.Context, next Snapshot) error

// Option configures a Store.
type Option func(*Store)

// WithBaseline replaces the baseline table stations are created from and
// reset to. An empty table yields an empty store.
func WithBaseline(rows []domain.BaselineStation) Option {
	return func(s *Store) {
		s.baseline = append([]domain.BaselineStation(nil), rows...)
	}
}

// WithBounds overrides the clamp limits applied to every station mutation.
func WithBounds(b domain.Bounds) Option {
	return func(s *Store) { s.bounds = b }
}

// WithClock overrides the store time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithCommitHook installs h. Transactions without changes skip the hook.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.commitHook = h }
}

// Store provides an in-memory transactional store for plant stations and
// the event log.
type Store struct {
	mu         sync.RWMutex
	state      memoryState
	engine     *RulesEngine
	nowFn      func() time.Time
	baseline   []domain.BaselineStation
	bounds     domain.Bounds
	commitHook CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules
// engine and seeded from the baseline table. A non-empty baseline records a
// startup info event.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:    newMemoryState(),
		engine:   engine,
		nowFn:    func() time.Time { return time.Now().UTC() },
		baseline: domain.DefaultBaseline(),
		bounds:   domain.DefaultBounds(),
	}
	for _, opt := range opts {
		opt(s)
	}
	seen := make(map[int]struct{}, len(s.baseline))
	for _, row := range s.baseline {
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}
		st := row.Station()
		s.bounds.Clamp(&st)
		s.state.stations = append(s.state.stations, st)
	}
	s.state.reindex()
	if len(s.state.stations) > 0 {
		s.state.events = append(s.state.events, Event{
			ID:        s.state.nextEventID,
			Type:      domain.EventInfo,
			Label:     fmt.Sprintf("Simulation started with %d stations", len(s.state.stations)),
			Severity:  domain.SeverityInfo,
			CreatedAt: s.nowFn(),
		})
		s.state.nextEventID++
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// Baseline returns a copy of the baseline table.
func (s *Store) Baseline() []domain.BaselineStation {
	return append([]domain.BaselineStation(nil), s.baseline...)
}

// Bounds returns the clamp limits.
func (s *Store) Bounds() domain.Bounds { return s.bounds }

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state  *memoryState
	bounds domain.Bounds
}

func newTransactionView(state *memoryState, bounds domain.Bounds) TransactionView {
	return transactionView{state: state, bounds: bounds}
}

// ListStations returns all stations ordered by id.
func (v transactionView) ListStations() []Station {
	return append([]Station(nil), v.state.stations...)
}

// FindStation returns the station with the given id.
func (v transactionView) FindStation(id int) (Station, bool) {
	i, ok := v.state.index[id]
	if !ok {
		return Station{}, false
	}
	return v.state.stations[i], true
}

// ListEvents returns events matching q, newest first.
func (v transactionView) ListEvents(q domain.EventQuery) []Event {
	return queryEvents(v.state.events, q)
}

// ListMaintenance returns the station's maintenance records, newest first.
func (v transactionView) ListMaintenance(stationID int) []MaintenanceRecord {
	return queryMaintenance(v.state.maintenance, stationID)
}

func (v transactionView) Bounds() domain.Bounds { return v.bounds }

func (v transactionView) Version() uint64 { return v.state.version }

func queryEvents(events []Event, q domain.EventQuery) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if q.Since != nil && ev.CreatedAt.Before(*q.Since) {
			continue
		}
		if q.Until != nil && !ev.CreatedAt.Before(*q.Until) {
			continue
		}
		out = append(out, cloneEvent(ev))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func queryMaintenance(records []MaintenanceRecord, stationID int) []MaintenanceRecord {
	out := make([]MaintenanceRecord, 0)
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].StationID == stationID {
			out = append(out, cloneMaintenance(records[i]))
		}
	}
	return out
}

// RunInTransaction executes fn within a transactional copy of the store
// state. Nothing is committed when fn or a blocking rule fails.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state, s.bounds)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(tx.changes) > 0 {
		tx.state.version++
		if s.commitHook != nil {
			if err := s.commitHook(ctx, snapshotFromMemoryState(tx.state)); err != nil {
				return result, fmt.Errorf("commit hook: %w", err)
			}
		}
	}
	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot, s.bounds)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state, tx.store.bounds)
}

func (tx *transaction) ListStations() []Station {
	return append([]Station(nil), tx.state.stations...)
}

func (tx *transaction) FindStation(id int) (Station, bool) {
	i, ok := tx.state.index[id]
	if !ok {
		return Station{}, false
	}
	return tx.state.stations[i], true
}

func (tx *transaction) Baseline() []domain.BaselineStation { return tx.store.Baseline() }

func (tx *transaction) Bounds() domain.Bounds { return tx.store.bounds }

func (tx *transaction) Now() time.Time { return tx.now }

// ApplyMutation runs m against the station, keeps its identity and clamps
// the result into bounds.
func (tx *transaction) ApplyMutation(id int, m domain.Mutation) (Station, error) {
	if m.Apply == nil {
		return Station{}, errors.New("mutation has no apply function")
	}
	i, ok := tx.state.index[id]
	if !ok {
		return Station{}, domain.StationNotFound(id)
	}
	before := tx.state.stations[i]
	current := before
	m.Apply(&current)
	current.ID = before.ID
	current.Name = before.Name
	if !current.Status.Valid() {
		current.Status = domain.StationOK
	}
	tx.store.bounds.Clamp(&current)
	tx.state.stations[i] = current
	tx.recordChange(Change{Entity: domain.EntityStation, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// AppendEvent assigns the next id and the transaction timestamp and appends
// the event to the log.
func (tx *transaction) AppendEvent(e Event) (Event, error) {
	if e.Type == "" {
		return Event{}, errors.New("event type required")
	}
	if e.StationID != nil {
		if _, ok := tx.state.index[*e.StationID]; !ok {
			return Event{}, domain.StationNotFound(*e.StationID)
		}
	}
	if e.Severity == "" {
		e.Severity = domain.SeverityInfo
	}
	e = cloneEvent(e)
	e.ID = tx.state.nextEventID
	e.CreatedAt = tx.now
	tx.state.nextEventID++
	tx.state.events = append(tx.state.events, e)
	tx.recordChange(Change{Entity: domain.EntityEvent, Action: domain.ActionAppend, After: cloneEvent(e)})
	return cloneEvent(e), nil
}

// AppendMaintenance validates rec, stamps it with the transaction time and
// appends it to the station's maintenance log. Callers assign the id.
func (tx *transaction) AppendMaintenance(rec MaintenanceRecord) (MaintenanceRecord, error) {
	if rec.ID == "" {
		return MaintenanceRecord{}, errors.New("maintenance id required")
	}
	if _, ok := tx.state.index[rec.StationID]; !ok {
		return MaintenanceRecord{}, domain.StationNotFound(rec.StationID)
	}
	if err := rec.Validate(); err != nil {
		return MaintenanceRecord{}, err
	}
	for _, existing := range tx.state.maintenance {
		if existing.ID == rec.ID {
			return MaintenanceRecord{}, fmt.Errorf("maintenance %s already exists", rec.ID)
		}
	}
	rec = cloneMaintenance(rec)
	rec.CreatedAt = tx.now
	tx.state.maintenance = append(tx.state.maintenance, rec)
	tx.recordChange(Change{Entity: domain.EntityMaintenance, Action: domain.ActionAppend, After: cloneMaintenance(rec)})
	return cloneMaintenance(rec), nil
}

// Read helpers ---------------------------------------------------------------

// GetStation retrieves a station by id from committed state.
func (s *Store) GetStation(id int) (Station, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.state.index[id]
	if !ok {
		return Station{}, false
	}
	return s.state.stations[i], true
}

// ListStations returns all stations from committed state ordered by id.
func (s *Store) ListStations() []Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Station(nil), s.state.stations...)
}

// QueryEvents returns committed events matching q, newest first.
func (s *Store) QueryEvents(q domain.EventQuery) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEvents(s.state.events, q)
}

// Version returns the number of committed transactions that changed state.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.version
}
