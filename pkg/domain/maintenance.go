package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMaintenance is returned for maintenance records missing required
// fields or carrying negative amounts.
var ErrInvalidMaintenance = errors.New("invalid maintenance record")

// MaintenanceRecord is one logged maintenance job on a station.
type MaintenanceRecord struct {
	ID              string    `json:"id"`
	StationID       int       `json:"station_id"`
	MaintenanceType string    `json:"maintenance_type"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	PartsReplaced   *string   `json:"parts_replaced"`
	CostEUR         *float64  `json:"cost_eur"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks the operator-supplied fields.
func (m MaintenanceRecord) Validate() error {
	switch {
	case strings.TrimSpace(m.MaintenanceType) == "":
		return fmt.Errorf("%w: maintenance_type required", ErrInvalidMaintenance)
	case strings.TrimSpace(m.Description) == "":
		return fmt.Errorf("%w: description required", ErrInvalidMaintenance)
	case m.DurationMinutes < 0:
		return fmt.Errorf("%w: duration_minutes must not be negative", ErrInvalidMaintenance)
	case m.CostEUR != nil && *m.CostEUR < 0:
		return fmt.Errorf("%w: cost_eur must not be negative", ErrInvalidMaintenance)
	}
	return nil
}
