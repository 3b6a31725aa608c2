package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"plantcore/internal/infra/persistence/memory"
	"plantcore/internal/rollup"
	"plantcore/internal/seed"
	"plantcore/pkg/domain"
)

func TestShockThenLines(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	if _, err := svc.Shock(ctx, ShockRequest{}); err != nil {
		t.Fatalf("shock: %v", err)
	}
	view, err := svc.Lines(ctx)
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if view.Seeded || view.SiteID != DefaultSiteID || view.LastSync != nil || !view.TS.Equal(testEpoch) {
		t.Fatalf("unexpected envelope %+v", view.Envelope)
	}
	lines := view.Lines.([]domain.Line)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	var found bool
	for _, line := range lines {
		if line.LineID != rollup.ClassifyLine("Finishing") {
			continue
		}
		found = true
		if line.Status != domain.LineBlocked || line.BottleneckStation == nil || *line.BottleneckStation != "Finishing" {
			t.Fatalf("unexpected line %+v", line)
		}
		if line.LastEvent == nil || line.LastEvent.Type != domain.EventShock || line.LastEvent.ReasonCode != rollup.ReasonOperatorWait {
			t.Fatalf("unexpected last event %+v", line.LastEvent)
		}
	}
	if !found {
		t.Fatalf("line for Finishing missing")
	}
}

func TestLinesConserveWIP(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	for _, step := range []func() error{
		func() error { _, err := svc.Shock(ctx, ShockRequest{StationID: domain.IntPtr(5)}); return err },
		func() error { _, err := svc.Kaizen(ctx, KaizenRequest{}); return err },
		func() error { _, err := svc.Shock(ctx, ShockRequest{}); return err },
	} {
		if err := step(); err != nil {
			t.Fatalf("step: %v", err)
		}
		view, err := svc.Lines(ctx)
		if err != nil {
			t.Fatalf("lines: %v", err)
		}
		total := 0
		for _, st := range svc.Store().ListStations() {
			total += st.WIP
		}
		if got := rollup.WIPTotal(view.Lines.([]domain.Line)); got != total {
			t.Fatalf("line wip %d != station wip %d", got, total)
		}
	}
}

func TestSeedOverridesLines(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	payload := `{"lines":[{"line_id":7,"line_name":"Seeded","status":"Down"}]}`
	res, err := svc.SeedUpload(ctx, json.RawMessage(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Status != "success" || res.Ignored || len(res.Kinds) != 1 || res.LastSync == nil {
		t.Fatalf("unexpected upload result %+v", res)
	}
	if _, err := svc.Shock(ctx, ShockRequest{}); err != nil {
		t.Fatalf("shock: %v", err)
	}
	if _, err := svc.Kaizen(ctx, KaizenRequest{}); err != nil {
		t.Fatalf("kaizen: %v", err)
	}
	view, err := svc.Lines(ctx)
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if !view.Seeded || view.LastSync == nil || !view.LastSync.Equal(testEpoch) {
		t.Fatalf("expected seeded view, got %+v", view)
	}
	body, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Lines []json.RawMessage `json:"lines"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Lines) != 1 || string(decoded.Lines[0]) != `{"line_id":7,"line_name":"Seeded","status":"Down"}` {
		t.Fatalf("seeded lines not returned verbatim: %s", body)
	}

	stations, err := svc.Stations(ctx)
	if err != nil {
		t.Fatalf("stations: %v", err)
	}
	if stations.Seeded {
		t.Fatalf("lines seed must not override stations")
	}
	if got := stations.Stations.([]domain.StationView); len(got) != 5 {
		t.Fatalf("expected 5 computed stations, got %d", len(got))
	}
	if stations.LastSync == nil {
		t.Fatalf("wrapper last_sync should reflect the seed upload")
	}
}

func TestSeedOverridesEachKind(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	payload := `{"stations":[{"station_id":1}],"events":[{"type":"info"}],"orders":[{"order_id":"WO-9"}]}`
	if _, err := svc.SeedUpload(ctx, json.RawMessage(payload)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	st, err := svc.Stations(ctx)
	if err != nil || !st.Seeded {
		t.Fatalf("stations not seeded: %+v %v", st, err)
	}
	ev, err := svc.Events(ctx, EventsQuery{Limit: 1})
	if err != nil || !ev.Seeded {
		t.Fatalf("events not seeded: %+v %v", ev, err)
	}
	or, err := svc.Orders(ctx)
	if err != nil || !or.Seeded {
		t.Fatalf("orders not seeded: %+v %v", or, err)
	}
	lines, err := svc.Lines(ctx)
	if err != nil || lines.Seeded {
		t.Fatalf("lines should stay computed: %+v %v", lines, err)
	}
	status, err := svc.SeedStatus(ctx)
	if err != nil || !status.HasSeed {
		t.Fatalf("unexpected seed status %+v %v", status, err)
	}
}

func TestSeedUploadIgnoredAndRejected(t *testing.T) {
	ctx := context.Background()
	log := &captureLogger{}
	svc := newTestService(WithLogger(log))
	res, err := svc.SeedUpload(ctx, json.RawMessage(`{"unrelated":1}`))
	if err != nil {
		t.Fatalf("ignored payload should not error: %v", err)
	}
	if !res.Ignored || res.Status != "ignored" || res.LastSync != nil {
		t.Fatalf("unexpected ignored result %+v", res)
	}
	if !log.has("w:seed payload ignored") {
		t.Fatalf("expected warn log, got %v", log.calls)
	}

	_, err = svc.SeedUpload(ctx, json.RawMessage(`{"lines":[{"name":"no id"}]}`))
	var shape *seed.ShapeError
	if !errors.As(err, &shape) || shape.Kind != seed.KindLines || shape.Index != 0 {
		t.Fatalf("expected shape error, got %v", err)
	}
	if st, _ := svc.SeedStatus(ctx); st.HasSeed || st.LastSync != nil {
		t.Fatalf("rejected uploads changed the seed: %+v", st)
	}
}

func TestStatusHealth(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Health != rollup.HealthOK || status.Reason != "" {
		t.Fatalf("expected ok, got %+v", status)
	}

	empty := newEmptyService()
	status, err = empty.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Health != rollup.HealthDegraded || status.Reason != rollup.ReasonEventsEmpty {
		t.Fatalf("expected events_empty, got %+v", status)
	}
}

func TestStatusStaleSeed(t *testing.T) {
	ctx := context.Background()
	past := testEpoch.Add(-3 * time.Hour)
	seeds := seed.NewStore(seed.WithClock(func() time.Time { return past }))
	if _, err := seeds.Upload(ctx, []byte(`{"lines":[{"line_id":1}],"events":[{"type":"shock"}]}`)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	svc := NewService(memory.NewStore(nil), WithClock(stubClock{t: testEpoch}), WithSeedStore(seeds))
	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Health != rollup.HealthDegraded || status.Reason != rollup.ReasonStaleSeed {
		t.Fatalf("expected stale_seed, got %+v", status)
	}
	if status.LastSync == nil || !status.LastSync.Equal(past) {
		t.Fatalf("unexpected last_sync %v", status.LastSync)
	}

	fresh := NewService(memory.NewStore(nil), WithClock(stubClock{t: testEpoch}), WithSeedStore(seeds), WithStaleAfter(4*time.Hour))
	if status, _ := fresh.Status(ctx); status.Health != rollup.HealthOK {
		t.Fatalf("expected ok with longer threshold, got %+v", status)
	}
}

func TestEventsLimitAndViews(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(WithEventLimits(2, 3))
	for i := 0; i < 4; i++ {
		if _, err := svc.Shock(ctx, ShockRequest{}); err != nil {
			t.Fatalf("shock: %v", err)
		}
	}
	cases := map[int]int{0: 2, -1: 2, 1: 1, 3: 3, 50: 3}
	for limit, want := range cases {
		view, err := svc.Events(ctx, EventsQuery{Limit: limit})
		if err != nil {
			t.Fatalf("events: %v", err)
		}
		if got := len(view.Events.([]domain.EventView)); got != want {
			t.Fatalf("limit %d: expected %d events, got %d", limit, want, got)
		}
	}
	view, _ := svc.Events(ctx, EventsQuery{Limit: 1})
	ev := view.Events.([]domain.EventView)[0]
	if ev.Type != domain.EventShock || ev.SiteID != DefaultSiteID || ev.StationID == nil || *ev.StationID != 3 || ev.Payload["message"] != "Bottleneck detected @ Finishing" {
		t.Fatalf("unexpected event view %+v", ev)
	}
	raw, err := svc.RecentEvents(ctx, EventsQuery{})
	if err != nil || len(raw) != 2 || raw[0].ID < raw[1].ID {
		t.Fatalf("unexpected raw events %+v %v", raw, err)
	}
}

func TestEventsTimeWindow(t *testing.T) {
	ctx := context.Background()
	tick := testEpoch
	store := memory.NewStore(NewDefaultRulesEngine(), memory.WithClock(func() time.Time {
		now := tick
		tick = tick.Add(time.Minute)
		return now
	}))
	svc := NewService(store, WithClock(stubClock{t: testEpoch}))
	for i := 0; i < 4; i++ {
		if _, err := svc.Shock(ctx, ShockRequest{}); err != nil {
			t.Fatalf("shock: %v", err)
		}
	}
	all, err := svc.RecentEvents(ctx, EventsQuery{Limit: 50})
	if err != nil || len(all) != 5 {
		t.Fatalf("expected startup and four shocks, got %d %v", len(all), err)
	}
	since, until := all[3].CreatedAt, all[1].CreatedAt
	window, err := svc.RecentEvents(ctx, EventsQuery{Since: &since, Until: &until})
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(window) != 2 || window[0].ID != all[2].ID || window[1].ID != all[3].ID {
		t.Fatalf("expected events %d and %d, got %+v", all[2].ID, all[3].ID, window)
	}
	view, err := svc.Events(ctx, EventsQuery{Since: &until})
	if err != nil {
		t.Fatalf("events view: %v", err)
	}
	if got := len(view.Events.([]domain.EventView)); got != 2 {
		t.Fatalf("expected 2 events since %s, got %d", until, got)
	}
}

func TestStatusAlwaysCarriesReason(t *testing.T) {
	svc := newTestService()
	status, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	body, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"reason":""`) {
		t.Fatalf("expected empty reason field, got %s", body)
	}
}

func TestOrdersAndState(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	orders, err := svc.Orders(ctx)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	list := orders.Orders.([]domain.Order)
	if len(list) == 0 || len(list) > rollup.MaxOrders {
		t.Fatalf("unexpected order count %d", len(list))
	}
	state, err := svc.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(state.Stations) != 5 || !state.Timestamp.Equal(testEpoch) || len(state.Telemetry.History.Power) == 0 {
		t.Fatalf("unexpected state %+v", state)
	}
}

type manyOrders struct{}

func (manyOrders) Orders(_ []domain.Line, start, _ time.Time) []domain.Order {
	out := make([]domain.Order, 12)
	for i := range out {
		out[i] = domain.Order{OrderID: "WO", StartTS: start}
	}
	return out
}

func TestOrdersCappedForCustomSource(t *testing.T) {
	svc := newTestService(WithOrderSource(manyOrders{}))
	view, err := svc.Orders(context.Background())
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if got := len(view.Orders.([]domain.Order)); got != rollup.MaxOrders {
		t.Fatalf("expected %d orders, got %d", rollup.MaxOrders, got)
	}
}

func TestStationLookup(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	st, err := svc.Station(ctx, 4)
	if err != nil || st.Name != "Inspection" {
		t.Fatalf("unexpected station %+v %v", st, err)
	}
	_, err = svc.Station(ctx, 404)
	var nf domain.NotFoundError
	if !errors.Is(err, domain.ErrNotFound) || !errors.As(err, &nf) || nf.ID != "404" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSeedHistoryAndRestore(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	history, err := svc.SeedHistory(ctx)
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history, got %v %v", history, err)
	}
	restored, err := svc.RestoreSeed(ctx)
	if err != nil || restored {
		t.Fatalf("expected no restore without archive, got %v %v", restored, err)
	}
}
