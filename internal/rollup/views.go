package rollup

import (
	"time"

	"plantcore/pkg/domain"
)

// BuildStationViews projects stations for the dashboard.
func BuildStationViews(stations []domain.Station, updated time.Time) []domain.StationView {
	out := make([]domain.StationView, 0, len(stations))
	for _, st := range stations {
		view := domain.StationView{
			StationID:   st.ID,
			StationName: st.Name,
			LineID:      ClassifyLine(st.Name),
			Status:      string(st.Status),
			WIP:         st.WIP,
			CTSec:       st.CycleTimeSec,
			UpdatedTS:   updated,
		}
		if st.Bottleneck {
			view.Status = string(domain.StationBottleneck)
			view.ReasonCode = ReasonOperatorWait
		}
		out = append(out, view)
	}
	return out
}

// BuildEventViews projects events, keeping their order. Station-scoped events
// inherit the line of their station; plant-wide events have no line.
func BuildEventViews(events []domain.Event, stations []domain.Station, siteID string) []domain.EventView {
	names := make(map[int]string, len(stations))
	for _, st := range stations {
		names[st.ID] = st.Name
	}
	out := make([]domain.EventView, 0, len(events))
	for _, ev := range events {
		payload := make(map[string]string, len(ev.Payload)+1)
		for k, v := range ev.Payload {
			payload[k] = v
		}
		payload["message"] = ev.Label
		view := domain.EventView{
			TS:         ev.CreatedAt,
			Type:       ev.Type,
			SiteID:     siteID,
			Status:     ev.Severity,
			ReasonCode: EventReasonCode(ev.Type),
			Payload:    payload,
		}
		if ev.StationID != nil {
			id := *ev.StationID
			view.StationID = &id
			if name, ok := names[id]; ok {
				line := ClassifyLine(name)
				view.LineID = &line
			}
		}
		out = append(out, view)
	}
	return out
}
