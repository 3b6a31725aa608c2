package domain

import "time"

// LineStatus is the derived operating state of a production line.
type LineStatus string

// Line statuses.
const (
	LineRunning LineStatus = "Running"
	LineIdle    LineStatus = "Idle"
	LineBlocked LineStatus = "Blocked"
	LineDown    LineStatus = "Down"
)

// LastEvent is the reason-coded latest event attached to each line.
type LastEvent struct {
	TS          time.Time `json:"ts"`
	Type        EventType `json:"type"`
	ReasonCode  string    `json:"reason_code"`
	ReasonLabel string    `json:"reason_label"`
	SinceTS     time.Time `json:"since_ts"`
}

// Line is a derived aggregate over the stations classified onto it. It is
// never stored.
type Line struct {
	LineID            int        `json:"line_id"`
	LineName          string     `json:"line_name"`
	Status            LineStatus `json:"status"`
	WIP               int        `json:"wip"`
	ThroughputPH      int        `json:"throughput_ph"`
	CTMin             int        `json:"ct_min"`
	OEE               int        `json:"oee"`
	FPY               int        `json:"fpy"`
	BottleneckStation *string    `json:"bottleneck_station"`
	LastEvent         *LastEvent `json:"last_event"`
}

// StationView is the dashboard projection of a station.
type StationView struct {
	StationID   int       `json:"station_id"`
	StationName string    `json:"station_name"`
	LineID      int       `json:"line_id"`
	Status      string    `json:"status"`
	WIP         int       `json:"wip"`
	CTSec       int       `json:"ct_sec"`
	DowntimeSec int       `json:"downtime_sec"`
	ReasonCode  string    `json:"reason_code"`
	UpdatedTS   time.Time `json:"updated_ts"`
}

// EventView is the dashboard projection of an event.
type EventView struct {
	TS         time.Time         `json:"ts"`
	Type       EventType         `json:"type"`
	SiteID     string            `json:"site_id"`
	LineID     *int              `json:"line_id"`
	StationID  *int              `json:"station_id"`
	Status     EventSeverity     `json:"status"`
	ReasonCode string            `json:"reason_code"`
	Payload    map[string]string `json:"payload"`
}

// Order is a synthetic work order derived from line state.
type Order struct {
	OrderID     string            `json:"order_id"`
	LineID      int               `json:"line_id"`
	StationID   int               `json:"station_id"`
	State       string            `json:"state"`
	StartTS     time.Time         `json:"start_ts"`
	UpdatedTS   time.Time         `json:"updated_ts"`
	ElapsedMin  float64           `json:"elapsed_min"`
	EnergyKWh   float64           `json:"energy_kwh"`
	CO2eKg      float64           `json:"co2e_kg"`
	ScrapUnits  int               `json:"scrap_units"`
	ReworkUnits int               `json:"rework_units"`
	ETATS       time.Time         `json:"eta_ts"`
	Risk        string            `json:"risk"`
	ReasonCode  string            `json:"reason_code"`
	Payload     map[string]string `json:"payload"`
}

// TelemetryHistory holds short trailing series per signal.
type TelemetryHistory struct {
	Vibration   []float64 `json:"vibration"`
	Temperature []float64 `json:"temperature"`
	Pressure    []float64 `json:"pressure"`
	Power       []float64 `json:"power"`
}

// Telemetry is the plant-level sensor summary returned with the full state.
type Telemetry struct {
	Vibration   float64          `json:"vibration"`
	Temperature float64          `json:"temperature"`
	Pressure    float64          `json:"pressure"`
	Power       float64          `json:"power"`
	History     TelemetryHistory `json:"history"`
}
