package rollup

import (
	"time"

	"plantcore/pkg/domain"
)

// MaxOrders caps the synthetic order list.
const MaxOrders = 8

// OrderSource produces the order view from the current line rollup. start
// stamps order start times; now stamps updates and ETAs.
type OrderSource interface {
	Orders(lines []domain.Line, start, now time.Time) []domain.Order
}

type catalogEntry struct {
	id        string
	lineID    int
	stationID int
	state     string
	energyKWh float64
	co2eKg    float64
	risk      string
	reason    string
	note      string
}

var (
	baseCatalog = []catalogEntry{
		{"ORD-2026-0001", 3, 3, "moving", 4.0, 1.8, "ok", "", "Montaj akışta"},
		{"ORD-2026-0002", 3, 3, "processing", 4.5, 2.0, "ok", "", "Montaj istasyonda"},
		{"ORD-2026-0003", 5, 1, "waiting", 2.2, 1.0, "at_risk", ReasonMaterialWait, "Paketleme bekliyor"},
		{"ORD-2026-0004", 1, 1, "moving", 3.1, 1.4, "ok", "", "Metal & Şase akışta"},
	}
	paintFlowing = []catalogEntry{
		{"ORD-2026-0005", 2, 2, "moving", 2.3, 1.0, "ok", "", "Boya akışta"},
	}
	paintDown = []catalogEntry{
		{"ORD-2026-0005", 2, 2, "down", 2.9, 1.2, "late", ReasonMachineFailure, "Boya hattı arıza"},
		{"ORD-2026-0006", 2, 2, "blocked", 2.0, 0.9, "at_risk", ReasonMachineFailure, "Boya bekliyor"},
	}
)

// DemoCatalog is the scripted order catalog. The paint line entries switch
// to a degraded pair when the paint line is Down.
type DemoCatalog struct{}

// Orders implements OrderSource.
func (DemoCatalog) Orders(lines []domain.Line, start, now time.Time) []domain.Order {
	entries := append([]catalogEntry(nil), baseCatalog...)
	if paintLineDown(lines) {
		entries = append(entries, paintDown...)
	} else {
		entries = append(entries, paintFlowing...)
	}
	if len(entries) > MaxOrders {
		entries = entries[:MaxOrders]
	}
	out := make([]domain.Order, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.Order{
			OrderID:    e.id,
			LineID:     e.lineID,
			StationID:  e.stationID,
			State:      e.state,
			StartTS:    start,
			UpdatedTS:  now,
			ElapsedMin: 30.0,
			EnergyKWh:  e.energyKWh,
			CO2eKg:     e.co2eKg,
			ETATS:      now,
			Risk:       e.risk,
			ReasonCode: e.reason,
			Payload:    map[string]string{"note": e.note},
		})
	}
	return out
}

func paintLineDown(lines []domain.Line) bool {
	for _, l := range lines {
		if l.LineID == PaintLineID && l.Status == domain.LineDown {
			return true
		}
	}
	return false
}
