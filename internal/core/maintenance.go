package core

import (
	"context"

	"github.com/google/uuid"

	"plantcore/pkg/domain"
)

// MaintenanceRequest is the operator input for a maintenance job.
type MaintenanceRequest struct {
	MaintenanceType string   `json:"maintenance_type"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"duration_minutes"`
	PartsReplaced   *string  `json:"parts_replaced,omitempty"`
	CostEUR         *float64 `json:"cost_eur,omitempty"`
}

// LogMaintenance records a maintenance job on a station and appends a
// maintenance event in the same transaction.
func (s *Service) LogMaintenance(ctx context.Context, stationID int, req MaintenanceRequest) (domain.MaintenanceRecord, error) {
	var out domain.MaintenanceRecord
	err := s.run(ctx, "log_maintenance", func(ctx context.Context) error {
		var event Event
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			rec, err := tx.AppendMaintenance(domain.MaintenanceRecord{
				ID:              uuid.NewString(),
				StationID:       stationID,
				MaintenanceType: req.MaintenanceType,
				Description:     req.Description,
				DurationMinutes: req.DurationMinutes,
				PartsReplaced:   req.PartsReplaced,
				CostEUR:         req.CostEUR,
			})
			if err != nil {
				return err
			}
			out = rec
			event, err = tx.AppendEvent(Event{
				Type:      domain.EventMaintenance,
				StationID: domain.IntPtr(stationID),
				Label:     "Maintenance logged: " + rec.MaintenanceType,
				Severity:  domain.SeverityInfo,
			})
			return err
		})
		if err != nil {
			return err
		}
		s.publish(ctx, event)
		return nil
	})
	if err != nil {
		return domain.MaintenanceRecord{}, err
	}
	return out, nil
}

// MaintenanceLogs returns a station's maintenance history, newest first.
func (s *Service) MaintenanceLogs(ctx context.Context, stationID int) ([]domain.MaintenanceRecord, error) {
	var out []domain.MaintenanceRecord
	err := s.run(ctx, "get_maintenance", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			if _, ok := v.FindStation(stationID); !ok {
				return domain.StationNotFound(stationID)
			}
			out = v.ListMaintenance(stationID)
			return nil
		})
	})
	return out, err
}
