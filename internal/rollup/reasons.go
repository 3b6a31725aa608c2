package rollup

import (
	"time"

	"plantcore/pkg/domain"
)

// Reason codes attached to line events and orders.
const (
	ReasonMaterialWait    = "RC10"
	ReasonMachineFailure  = "RC11"
	ReasonOperatorWait    = "RC12"
	ReasonQualityHold     = "RC13"
	ReasonPlannedDowntime = "RC14"
)

var reasonLabels = map[string]string{
	ReasonMaterialWait:    "Malzeme bekliyor",
	ReasonMachineFailure:  "Makine arızası",
	ReasonOperatorWait:    "Operatör bekliyor",
	ReasonQualityHold:     "Kalite red bekliyor",
	ReasonPlannedDowntime: "Bakım planlı duruş",
}

// UnknownReasonLabel is returned for codes outside the table.
const UnknownReasonLabel = "Bilinmiyor"

// ReasonLabel returns the operator-facing label for a reason code.
func ReasonLabel(code string) string {
	if label, ok := reasonLabels[code]; ok {
		return label
	}
	return UnknownReasonLabel
}

// EventReasonCode codes any logged event. Every event type currently maps to
// RC12 because no per-type mapping has been agreed with operations.
func EventReasonCode(domain.EventType) string {
	return ReasonOperatorWait
}

// LastEventFor builds the plant-wide last event every line reports. With an
// empty log it falls back to an info event stamped now and coded RC10.
func LastEventFor(latest *domain.Event, now time.Time) domain.LastEvent {
	if latest == nil {
		return domain.LastEvent{
			TS:          now,
			Type:        domain.EventInfo,
			ReasonCode:  ReasonMaterialWait,
			ReasonLabel: ReasonLabel(ReasonMaterialWait),
			SinceTS:     now,
		}
	}
	code := EventReasonCode(latest.Type)
	return domain.LastEvent{
		TS:          latest.CreatedAt,
		Type:        latest.Type,
		ReasonCode:  code,
		ReasonLabel: ReasonLabel(code),
		SinceTS:     latest.CreatedAt,
	}
}

// Latest returns the newest event from a newest-first slice.
func Latest(events []domain.Event) *domain.Event {
	if len(events) == 0 {
		return nil
	}
	ev := events[0]
	return &ev
}
