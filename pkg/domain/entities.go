// Package domain defines the plant records shared by the simulation store,
// the rollup engine and the outer adapters.
package domain

import (
	"time"
)

// EntityType identifies the record kind a change or violation refers to.
type EntityType string

// Entity types captured in transaction change sets.
const (
	EntityStation     EntityType = "station"
	EntityEvent       EntityType = "event"
	EntityMaintenance EntityType = "maintenance"
)

// StationStatus is the operating state of a single station.
type StationStatus string

// Station statuses.
const (
	StationOK         StationStatus = "ok"
	StationBottleneck StationStatus = "bottleneck"
	StationCritical   StationStatus = "critical"
	StationDown       StationStatus = "down"
)

// Valid reports whether the status is one of the known station statuses.
func (s StationStatus) Valid() bool {
	switch s {
	case StationOK, StationBottleneck, StationCritical, StationDown:
		return true
	}
	return false
}

// Station is the canonical mutable record of one station's operating metrics.
type Station struct {
	ID           int           `json:"id"`
	Name         string        `json:"name"`
	WIP          int           `json:"wip"`
	CycleTimeSec int           `json:"cycle_time_sec"`
	FPY          float64       `json:"fpy"`
	OEE          float64       `json:"oee"`
	Status       StationStatus `json:"status"`
	Bottleneck   bool          `json:"bottleneck"`
}

// Flagged reports whether the station is critical or marked as a bottleneck.
func (s Station) Flagged() bool {
	return s.Status == StationCritical || s.Status == StationBottleneck || s.Bottleneck
}

// BaselineStation is one row of the fixed table stations are created from
// and reset to.
type BaselineStation struct {
	ID           int     `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	WIP          int     `json:"wip" yaml:"wip"`
	CycleTimeSec int     `json:"cycle_time_sec" yaml:"cycle_time_sec"`
	FPY          float64 `json:"fpy" yaml:"fpy"`
	OEE          float64 `json:"oee" yaml:"oee"`
}

// Station returns the baseline row as a healthy station.
func (b BaselineStation) Station() Station {
	return Station{
		ID:           b.ID,
		Name:         b.Name,
		WIP:          b.WIP,
		CycleTimeSec: b.CycleTimeSec,
		FPY:          b.FPY,
		OEE:          b.OEE,
		Status:       StationOK,
	}
}

// DefaultBaseline returns the demo plant's station table.
func DefaultBaseline() []BaselineStation {
	return []BaselineStation{
		{ID: 1, Name: "Washing", WIP: 3, CycleTimeSec: 45, FPY: 98.0, OEE: 94.0},
		{ID: 2, Name: "Pre-treatment", WIP: 3, CycleTimeSec: 45, FPY: 98.0, OEE: 94.0},
		{ID: 3, Name: "Finishing", WIP: 4, CycleTimeSec: 50, FPY: 96.0, OEE: 90.0},
		{ID: 4, Name: "Inspection", WIP: 2, CycleTimeSec: 25, FPY: 97.0, OEE: 92.0},
		{ID: 5, Name: "Packaging", WIP: 2, CycleTimeSec: 20, FPY: 99.0, OEE: 95.0},
	}
}

// EventType classifies an entry in the event log.
type EventType string

// Event types.
const (
	EventShock       EventType = "shock"
	EventKaizen      EventType = "kaizen"
	EventReset       EventType = "reset"
	EventInfo        EventType = "info"
	EventMaintenance EventType = "maintenance"
)

// EventSeverity grades an event for operators.
type EventSeverity string

// Event severities.
const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event is an append-only record of a notable occurrence. StationID is nil
// for plant-wide events.
type Event struct {
	ID        int64             `json:"id"`
	Type      EventType         `json:"event_type"`
	StationID *int              `json:"station_id"`
	Label     string            `json:"label"`
	Severity  EventSeverity     `json:"severity"`
	CreatedAt time.Time         `json:"created_at"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions. Stations are never created or deleted after store
// initialization, and events are append-only.
const (
	ActionAppend Action = "append"
	ActionUpdate Action = "update"
)

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
