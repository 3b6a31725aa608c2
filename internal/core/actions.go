package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"plantcore/internal/rollup"
	"plantcore/pkg/domain"
)

// Shock and kaizen request defaults.
const (
	DefaultShockType       = "quality_issue"
	DefaultShockSeverity   = "medium"
	DefaultImprovementType = "cycle_time_reduction"
	DefaultImprovementPct  = 10.0
)

// ActionResult is shared by every perturbation result.
type ActionResult struct {
	ActionID  string       `json:"action_id"`
	Status    string       `json:"status"`
	Message   string       `json:"message"`
	Version   uint64       `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Event     domain.Event `json:"event"`
}

func newActionResult(message string, event Event, version uint64) ActionResult {
	return ActionResult{
		ActionID:  uuid.NewString(),
		Status:    "success",
		Message:   message,
		Version:   version,
		Timestamp: event.CreatedAt,
		Event:     event,
	}
}

// ResetResult reports a reset.
type ResetResult struct {
	ActionResult
	StationsReset int `json:"stations_reset"`
}

// ShockRequest selects the shock target. A nil or unknown StationID falls
// back to the marker match and then to the last station.
type ShockRequest struct {
	StationID *int   `json:"station_id,omitempty"`
	ShockType string `json:"shock_type,omitempty"`
	Severity  string `json:"severity,omitempty"`
}

// ShockResult reports a shock.
type ShockResult struct {
	ActionResult
	Station   domain.Station `json:"station"`
	ShockType string         `json:"shock_type"`
	Severity  string         `json:"severity"`
}

// KaizenRequest carries the improvement metadata. Kaizen always applies to
// every station; StationID is recorded on the event when it names one.
type KaizenRequest struct {
	StationID       *int     `json:"station_id,omitempty"`
	ImprovementType string   `json:"improvement_type,omitempty"`
	ImprovementPct  *float64 `json:"improvement_pct,omitempty"`
}

// Improvements reports which metric categories strictly changed.
type Improvements struct {
	WIPReduced  bool `json:"wip_reduced"`
	FPYImproved bool `json:"fpy_improved"`
	OEEImproved bool `json:"oee_improved"`
}

// KaizenResult reports a kaizen.
type KaizenResult struct {
	ActionResult
	Improvements    Improvements `json:"improvements"`
	ImprovementType string       `json:"improvement_type"`
	ImprovementPct  float64      `json:"improvement_pct"`
}

// Reset returns every station to its baseline row.
func (s *Service) Reset(ctx context.Context) (ResetResult, error) {
	var out ResetResult
	err := s.run(ctx, "reset", func(ctx context.Context) error {
		var event Event
		var version uint64
		count := 0
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			stations := tx.ListStations()
			if len(stations) == 0 {
				return domain.ErrNoStationsAvailable
			}
			baseline := baselineByID(tx.Baseline())
			for _, st := range stations {
				row, ok := baseline[st.ID]
				if _, err := tx.ApplyMutation(st.ID, domain.Mutation{Name: "reset", Apply: func(cur *Station) {
					if ok {
						*cur = row.Station()
					}
					cur.Status = domain.StationOK
					cur.Bottleneck = false
				}}); err != nil {
					return err
				}
				count++
			}
			var err error
			event, err = tx.AppendEvent(Event{
				Type:     domain.EventReset,
				Label:    "All stations reset to baseline",
				Severity: domain.SeverityInfo,
			})
			version = tx.Snapshot().Version() + 1
			return err
		})
		if err != nil {
			return err
		}
		out = ResetResult{
			ActionResult:  newActionResult(fmt.Sprintf("%d stations reset to baseline", count), event, version),
			StationsReset: count,
		}
		s.publish(ctx, event)
		return nil
	})
	return out, err
}

// Shock forces one station into a bottleneck.
func (s *Service) Shock(ctx context.Context, req ShockRequest) (ShockResult, error) {
	shockType := req.ShockType
	if shockType == "" {
		shockType = DefaultShockType
	}
	severity := req.Severity
	if severity == "" {
		severity = DefaultShockSeverity
	}
	policy := s.policy.Shock
	var out ShockResult
	err := s.run(ctx, "shock", func(ctx context.Context) error {
		var event Event
		var updated Station
		var version uint64
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			stations := tx.ListStations()
			if len(stations) == 0 {
				return domain.ErrNoStationsAvailable
			}
			target := shockTarget(stations, req.StationID, policy.Marker)
			// Deltas apply to the baseline row; stations without one use current values.
			from := domain.BaselineStation{CycleTimeSec: target.CycleTimeSec, FPY: target.FPY, OEE: target.OEE}
			if row, ok := baselineByID(tx.Baseline())[target.ID]; ok {
				from = row
			}
			var err error
			updated, err = tx.ApplyMutation(target.ID, domain.Mutation{Name: "shock", Apply: func(cur *Station) {
				cur.Status = domain.StationBottleneck
				cur.Bottleneck = true
				cur.WIP = policy.WIP
				cur.CycleTimeSec = from.CycleTimeSec + policy.CycleTimeDeltaSec
				cur.FPY = from.FPY - policy.FPYDelta
				cur.OEE = from.OEE - policy.OEEDelta
			}})
			if err != nil {
				return err
			}
			event, err = tx.AppendEvent(Event{
				Type:      domain.EventShock,
				StationID: domain.IntPtr(updated.ID),
				Label:     "Bottleneck detected @ " + updated.Name,
				Severity:  domain.SeverityCritical,
				Payload:   map[string]string{"shock_type": shockType, "severity": severity},
			})
			version = tx.Snapshot().Version() + 1
			return err
		})
		if err != nil {
			return err
		}
		out = ShockResult{
			ActionResult: newActionResult("Shock applied to "+updated.Name, event, version),
			Station:      updated,
			ShockType:    shockType,
			Severity:     severity,
		}
		s.publish(ctx, event)
		return nil
	})
	return out, err
}

// shockTarget picks the explicit station when valid, else the first station
// whose folded name contains marker, else the last station.
func shockTarget(stations []Station, id *int, marker string) Station {
	if id != nil {
		for _, st := range stations {
			if st.ID == *id {
				return st
			}
		}
	}
	if m := rollup.Fold(marker); m != "" {
		for _, st := range stations {
			if strings.Contains(rollup.Fold(st.Name), m) {
				return st
			}
		}
	}
	return stations[len(stations)-1]
}

// Kaizen improves every station and emits one plant-wide event.
func (s *Service) Kaizen(ctx context.Context, req KaizenRequest) (KaizenResult, error) {
	improvementType := req.ImprovementType
	if improvementType == "" {
		improvementType = DefaultImprovementType
	}
	pct := DefaultImprovementPct
	if req.ImprovementPct != nil {
		pct = *req.ImprovementPct
	}
	policy := s.policy.Kaizen
	var out KaizenResult
	err := s.run(ctx, "kaizen", func(ctx context.Context) error {
		var event Event
		var version uint64
		var improved Improvements
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			stations := tx.ListStations()
			if len(stations) == 0 {
				return domain.ErrNoStationsAvailable
			}
			baseline := baselineByID(tx.Baseline())
			for _, before := range stations {
				row, hasBaseline := baseline[before.ID]
				after, err := tx.ApplyMutation(before.ID, domain.Mutation{Name: "kaizen", Apply: func(cur *Station) {
					cur.WIP = max(policy.WIPFloor, cur.WIP-policy.WIPStep)
					cur.FPY += policy.FPYStep
					cur.OEE += policy.OEEStep
					if hasBaseline {
						cur.CycleTimeSec = row.CycleTimeSec
					}
					cur.Status = domain.StationOK
					cur.Bottleneck = false
				}})
				if err != nil {
					return err
				}
				improved.WIPReduced = improved.WIPReduced || after.WIP < before.WIP
				improved.FPYImproved = improved.FPYImproved || after.FPY > before.FPY
				improved.OEEImproved = improved.OEEImproved || after.OEE > before.OEE
			}
			payload := map[string]string{
				"improvement_type": improvementType,
				"improvement_pct":  strconv.FormatFloat(pct, 'f', -1, 64),
			}
			if req.StationID != nil {
				if _, ok := tx.FindStation(*req.StationID); ok {
					payload["station_id"] = strconv.Itoa(*req.StationID)
				}
			}
			var err error
			event, err = tx.AppendEvent(Event{
				Type:     domain.EventKaizen,
				Label:    "Kaizen improvement completed",
				Severity: domain.SeverityInfo,
				Payload:  payload,
			})
			version = tx.Snapshot().Version() + 1
			return err
		})
		if err != nil {
			return err
		}
		out = KaizenResult{
			ActionResult:    newActionResult("Kaizen improvement completed", event, version),
			Improvements:    improved,
			ImprovementType: improvementType,
			ImprovementPct:  pct,
		}
		s.publish(ctx, event)
		return nil
	})
	return out, err
}

func baselineByID(rows []domain.BaselineStation) map[int]domain.BaselineStation {
	out := make(map[int]domain.BaselineStation, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out
}
