package rollup

import "plantcore/pkg/domain"

// DemoTelemetry returns the plant sensor summary shown with the full state.
func DemoTelemetry() domain.Telemetry {
	return domain.Telemetry{
		Vibration:   2.3,
		Temperature: 78,
		Pressure:    6.2,
		Power:       85,
		History: domain.TelemetryHistory{
			Vibration:   []float64{2.0, 2.1, 2.2, 2.3},
			Temperature: []float64{80, 79, 78, 78},
			Pressure:    []float64{5.9, 6.0, 6.1, 6.2},
			Power:       []float64{81, 82, 84, 85},
		},
	}
}
