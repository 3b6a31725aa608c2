package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"plantcore/internal/rollup"
	"plantcore/internal/seed"
	"plantcore/pkg/domain"
)

// Envelope wraps every v1 view.
type Envelope struct {
	TS       time.Time  `json:"ts"`
	SiteID   string     `json:"site_id"`
	LastSync *time.Time `json:"last_sync"`
}

// LinesView holds either computed lines or the seeded array verbatim.
type LinesView struct {
	Envelope
	Lines  any  `json:"lines"`
	Seeded bool `json:"-"`
}

// StationsView holds either computed station views or the seeded array.
type StationsView struct {
	Envelope
	Stations any  `json:"stations"`
	Seeded   bool `json:"-"`
}

// EventsView holds either computed event views or the seeded array.
type EventsView struct {
	Envelope
	Events any  `json:"events"`
	Seeded bool `json:"-"`
}

// OrdersView holds either synthesized orders or the seeded array.
type OrdersView struct {
	Envelope
	Orders any  `json:"orders"`
	Seeded bool `json:"-"`
}

// StatusView is the health summary.
type StatusView struct {
	Envelope
	Health string `json:"health"`
	Reason string `json:"reason"`
}

// EventsQuery selects event log entries. A non-positive Limit uses the
// default and larger limits are capped. Since is inclusive, Until exclusive.
type EventsQuery struct {
	Limit int
	Since *time.Time
	Until *time.Time
}

// StateView is the full simulated snapshot.
type StateView struct {
	Stations  []domain.Station `json:"stations"`
	Telemetry domain.Telemetry `json:"telemetry"`
	Timestamp time.Time        `json:"timestamp"`
	Version   uint64           `json:"version"`
}

// SeedUploadResult reports an upload. Ignored is set when the payload had no
// recognized keys.
type SeedUploadResult struct {
	Status     string      `json:"status"`
	Ignored    bool        `json:"ignored"`
	Kinds      []seed.Kind `json:"kinds"`
	LastSync   *time.Time  `json:"last_sync"`
	ArchiveKey string      `json:"archive_key,omitempty"`
}

// plantSnapshot is a consistent copy of stations and recent events.
type plantSnapshot struct {
	stations []Station
	events   []Event
	version  uint64
}

func (s *Service) snapshot(ctx context.Context, q domain.EventQuery) (plantSnapshot, error) {
	var snap plantSnapshot
	err := s.store.View(ctx, func(v TransactionView) error {
		snap.stations = v.ListStations()
		snap.events = v.ListEvents(q)
		snap.version = v.Version()
		return nil
	})
	return snap, err
}

func (s *Service) envelope(now time.Time, sd seed.Snapshot) Envelope {
	return Envelope{TS: now, SiteID: s.siteID, LastSync: sd.LastSync}
}

func (s *Service) eventQuery(q EventsQuery) domain.EventQuery {
	return domain.EventQuery{Limit: s.clampLimit(q.Limit), Since: q.Since, Until: q.Until}
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

// State returns the raw stations with the telemetry summary.
func (s *Service) State(ctx context.Context) (StateView, error) {
	var out StateView
	err := s.run(ctx, "get_state", func(ctx context.Context) error {
		snap, err := s.snapshot(ctx, domain.EventQuery{Limit: 1})
		if err != nil {
			return err
		}
		out = StateView{
			Stations:  snap.stations,
			Telemetry: rollup.DemoTelemetry(),
			Timestamp: s.clock.Now(),
			Version:   snap.version,
		}
		return nil
	})
	return out, err
}

// Station returns one station or a NotFoundError.
func (s *Service) Station(ctx context.Context, id int) (Station, error) {
	var out Station
	err := s.run(ctx, "get_station", func(context.Context) error {
		st, ok := s.store.GetStation(id)
		if !ok {
			return domain.StationNotFound(id)
		}
		out = st
		return nil
	})
	return out, err
}

// RecentEvents returns raw event log entries, newest first.
func (s *Service) RecentEvents(ctx context.Context, q EventsQuery) ([]Event, error) {
	var out []Event
	err := s.run(ctx, "get_event_log", func(context.Context) error {
		out = s.store.QueryEvents(s.eventQuery(q))
		return nil
	})
	return out, err
}

// Lines returns the line rollup or the seeded lines.
func (s *Service) Lines(ctx context.Context) (LinesView, error) {
	var out LinesView
	err := s.run(ctx, "get_lines", func(ctx context.Context) error {
		now := s.clock.Now()
		sd := s.seeds.Snapshot()
		out.Envelope = s.envelope(now, sd)
		if items, ok := sd.Data(seed.KindLines); ok {
			out.Lines, out.Seeded = items, true
			return nil
		}
		lines, err := s.computeLines(ctx, now)
		out.Lines = lines
		return err
	})
	return out, err
}

func (s *Service) computeLines(ctx context.Context, now time.Time) ([]domain.Line, error) {
	snap, err := s.snapshot(ctx, domain.EventQuery{Limit: 1})
	if err != nil {
		return nil, err
	}
	return rollup.BuildLines(snap.stations, rollup.Latest(snap.events), now), nil
}

// Stations returns the station views or the seeded stations.
func (s *Service) Stations(ctx context.Context) (StationsView, error) {
	var out StationsView
	err := s.run(ctx, "get_stations", func(ctx context.Context) error {
		now := s.clock.Now()
		sd := s.seeds.Snapshot()
		out.Envelope = s.envelope(now, sd)
		if items, ok := sd.Data(seed.KindStations); ok {
			out.Stations, out.Seeded = items, true
			return nil
		}
		snap, err := s.snapshot(ctx, domain.EventQuery{})
		if err != nil {
			return err
		}
		out.Stations = rollup.BuildStationViews(snap.stations, now)
		return nil
	})
	return out, err
}

// Events returns the event views q selects or the seeded events.
func (s *Service) Events(ctx context.Context, q EventsQuery) (EventsView, error) {
	var out EventsView
	err := s.run(ctx, "get_events", func(ctx context.Context) error {
		now := s.clock.Now()
		sd := s.seeds.Snapshot()
		out.Envelope = s.envelope(now, sd)
		if items, ok := sd.Data(seed.KindEvents); ok {
			out.Events, out.Seeded = items, true
			return nil
		}
		snap, err := s.snapshot(ctx, s.eventQuery(q))
		if err != nil {
			return err
		}
		out.Events = rollup.BuildEventViews(snap.events, snap.stations, s.siteID)
		return nil
	})
	return out, err
}

// Orders returns the synthesized orders or the seeded orders.
func (s *Service) Orders(ctx context.Context) (OrdersView, error) {
	var out OrdersView
	err := s.run(ctx, "get_orders", func(ctx context.Context) error {
		now := s.clock.Now()
		sd := s.seeds.Snapshot()
		out.Envelope = s.envelope(now, sd)
		if items, ok := sd.Data(seed.KindOrders); ok {
			out.Orders, out.Seeded = items, true
			return nil
		}
		lines, err := s.computeLines(ctx, now)
		if err != nil {
			return err
		}
		orders := s.orders.Orders(lines, s.startedAt, now)
		if len(orders) > rollup.MaxOrders {
			orders = orders[:rollup.MaxOrders]
		}
		out.Orders = orders
		return nil
	})
	return out, err
}

// Status summarizes health from the same sources the line and event views
// use.
func (s *Service) Status(ctx context.Context) (StatusView, error) {
	var out StatusView
	err := s.run(ctx, "get_status", func(ctx context.Context) error {
		now := s.clock.Now()
		sd := s.seeds.Snapshot()
		out.Envelope = s.envelope(now, sd)
		snap, err := s.snapshot(ctx, domain.EventQuery{Limit: s.defaultLimit})
		if err != nil {
			return err
		}
		lineCount := len(rollup.LineDefinitions())
		if items, ok := sd.Data(seed.KindLines); ok {
			lineCount = len(items)
		}
		eventCount := len(snap.events)
		if items, ok := sd.Data(seed.KindEvents); ok {
			eventCount = len(items)
		}
		out.Health, out.Reason = rollup.Health(lineCount, eventCount, sd.LastSync, now, s.staleAfter)
		return nil
	})
	return out, err
}

// SeedStatus reports whether seed data is present.
func (s *Service) SeedStatus(ctx context.Context) (seed.Status, error) {
	var out seed.Status
	err := s.run(ctx, "seed_status", func(context.Context) error {
		out = s.seeds.Status()
		return nil
	})
	return out, err
}

// SeedUpload stores raw as seed data. A payload without recognized keys is
// logged and ignored; shape errors are returned.
func (s *Service) SeedUpload(ctx context.Context, raw json.RawMessage) (SeedUploadResult, error) {
	var out SeedUploadResult
	err := s.run(ctx, "seed_upload", func(ctx context.Context) error {
		res, err := s.seeds.Upload(ctx, raw)
		if errors.Is(err, domain.ErrInvalidPayload) {
			s.logger.Warn("seed payload ignored", "kind", "invalid_payload", "error", err)
			out = SeedUploadResult{Status: "ignored", Ignored: true, Kinds: []seed.Kind{}, LastSync: s.seeds.Status().LastSync}
			return nil
		}
		if err != nil {
			return err
		}
		ts := res.LastSync
		out = SeedUploadResult{Status: "success", Kinds: res.Kinds, LastSync: &ts, ArchiveKey: res.ArchiveKey}
		s.logger.Info("seed payload applied", "kinds", res.Kinds, "archive_key", res.ArchiveKey)
		return nil
	})
	return out, err
}

// SeedHistory lists archived uploads, newest first.
func (s *Service) SeedHistory(ctx context.Context) ([]seed.Entry, error) {
	var out []seed.Entry
	err := s.run(ctx, "seed_history", func(ctx context.Context) error {
		var err error
		out, err = s.seeds.History(ctx)
		return err
	})
	return out, err
}

// RestoreSeed applies the newest archived upload, if any.
func (s *Service) RestoreSeed(ctx context.Context) (bool, error) {
	var restored bool
	err := s.run(ctx, "seed_restore", func(ctx context.Context) error {
		var err error
		restored, err = s.seeds.Restore(ctx)
		return err
	})
	return restored, err
}
