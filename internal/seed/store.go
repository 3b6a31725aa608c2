package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the seed record. Nil slices mean no
// override for that kind.
type Snapshot struct {
	Lines    []json.RawMessage
	Stations []json.RawMessage
	Events   []json.RawMessage
	Orders   []json.RawMessage
	LastSync *time.Time
}

// Data returns the stored array for kind and whether it overrides the
// simulation. Only non-empty arrays override.
func (s Snapshot) Data(kind Kind) ([]json.RawMessage, bool) {
	var items []json.RawMessage
	switch kind {
	case KindLines:
		items = s.Lines
	case KindStations:
		items = s.Stations
	case KindEvents:
		items = s.Events
	case KindOrders:
		items = s.Orders
	}
	return items, len(items) > 0
}

// Status summarizes the seed record.
type Status struct {
	HasSeed  bool       `json:"has_seed"`
	LastSync *time.Time `json:"last_sync"`
}

// Status reports whether any kind is overridden and the last sync time.
func (s Snapshot) Status() Status {
	st := Status{LastSync: s.LastSync}
	for _, k := range Kinds() {
		if _, ok := s.Data(k); ok {
			st.HasSeed = true
			break
		}
	}
	return st
}

// UploadResult describes an accepted upload.
type UploadResult struct {
	Kinds      []Kind    `json:"kinds"`
	LastSync   time.Time `json:"last_sync"`
	ArchiveKey string    `json:"archive_key,omitempty"`
}

// Store holds the current seed record. It is independent of the station
// store and guarded by its own lock.
type Store struct {
	// writeMu serializes uploads and restores so archive order matches apply
	// order. mu guards current only and is never held across archive I/O.
	writeMu sync.Mutex
	mu      sync.RWMutex
	current Snapshot
	archive Archive
	nowFn   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithArchive persists each accepted upload before applying it.
func WithArchive(a Archive) Option {
	return func(s *Store) { s.archive = a }
}

// WithClock overrides the upload timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewStore returns an empty seed store.
func NewStore(opts ...Option) *Store {
	s := &Store{nowFn: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasArchive reports whether uploads are archived.
func (s *Store) HasArchive() bool { return s.archive != nil }

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.current)
}

// Status reports the current seed status.
func (s *Store) Status() Status {
	return s.Snapshot().Status()
}

// Upload decodes raw and replaces every kind it names. Shape errors and
// payloads without recognized keys leave the record untouched. When an
// archive is configured the payload is archived first and an archive
// failure rejects the upload.
func (s *Store) Upload(ctx context.Context, raw []byte) (UploadResult, error) {
	payload, err := DecodePayload(raw)
	if err != nil {
		return UploadResult{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	now := s.nowFn()
	res := UploadResult{Kinds: payload.Kinds(), LastSync: now}
	if s.archive != nil {
		entry, err := s.archive.Save(ctx, Record{UploadedAt: now, Payload: json.RawMessage(raw)})
		if err != nil {
			return UploadResult{}, fmt.Errorf("archive seed: %w", err)
		}
		res.ArchiveKey = entry.Key
	}
	s.mu.Lock()
	s.apply(payload, now)
	s.mu.Unlock()
	return res, nil
}

// Restore applies the newest archived upload, keeping its original sync
// time. It reports false when there is no archive or it is empty.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	if s.archive == nil {
		return false, nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	rec, ok, err := s.archive.Latest(ctx)
	if err != nil || !ok {
		return false, err
	}
	payload, err := DecodePayload(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("restore seed: %w", err)
	}
	s.mu.Lock()
	s.apply(payload, rec.UploadedAt)
	s.mu.Unlock()
	return true, nil
}

// History lists archived uploads, newest first.
func (s *Store) History(ctx context.Context) ([]Entry, error) {
	if s.archive == nil {
		return []Entry{}, nil
	}
	return s.archive.List(ctx)
}

func (s *Store) apply(p Payload, at time.Time) {
	for kind, items := range p {
		if items == nil {
			continue
		}
		cp := append([]json.RawMessage(nil), (*items)...)
		switch kind {
		case KindLines:
			s.current.Lines = cp
		case KindStations:
			s.current.Stations = cp
		case KindEvents:
			s.current.Events = cp
		case KindOrders:
			s.current.Orders = cp
		}
	}
	ts := at
	s.current.LastSync = &ts
}

func cloneSnapshot(in Snapshot) Snapshot {
	out := Snapshot{
		Lines:    cloneItems(in.Lines),
		Stations: cloneItems(in.Stations),
		Events:   cloneItems(in.Events),
		Orders:   cloneItems(in.Orders),
	}
	if in.LastSync != nil {
		ts := *in.LastSync
		out.LastSync = &ts
	}
	return out
}

func cloneItems(in []json.RawMessage) []json.RawMessage {
	if in == nil {
		return nil
	}
	out := make([]json.RawMessage, len(in))
	for i, item := range in {
		out[i] = append(json.RawMessage(nil), item...)
	}
	return out
}
