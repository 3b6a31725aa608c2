package domain

import "math"

// Bounds are the floor/ceiling limits every station mutation is clamped to.
type Bounds struct {
	FPYFloor   float64 `json:"fpy_floor" yaml:"fpy_floor"`
	FPYCeiling float64 `json:"fpy_ceiling" yaml:"fpy_ceiling"`
	OEEFloor   float64 `json:"oee_floor" yaml:"oee_floor"`
	OEECeiling float64 `json:"oee_ceiling" yaml:"oee_ceiling"`
}

// DefaultBounds returns the demo plant clamp limits.
func DefaultBounds() Bounds {
	return Bounds{FPYFloor: 90.0, FPYCeiling: 99.5, OEEFloor: 70.0, OEECeiling: 98.0}
}

// Clamp forces the station's metrics into range. WIP never drops below zero
// and cycle time stays positive.
func (b Bounds) Clamp(s *Station) {
	s.FPY = clampFloat(s.FPY, b.FPYFloor, b.FPYCeiling)
	s.OEE = clampFloat(s.OEE, b.OEEFloor, b.OEECeiling)
	if s.WIP < 0 {
		s.WIP = 0
	}
	if s.CycleTimeSec < 1 {
		s.CycleTimeSec = 1
	}
}

// Contains reports whether the station's percentages are inside the bounds.
func (b Bounds) Contains(s Station) bool {
	return s.FPY >= b.FPYFloor && s.FPY <= b.FPYCeiling &&
		s.OEE >= b.OEEFloor && s.OEE <= b.OEECeiling
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// ShockPolicy holds the scripted disruption constants.
type ShockPolicy struct {
	// Marker is matched case-insensitively against station names to find the
	// bottleneck-prone station.
	Marker            string  `json:"marker" yaml:"marker"`
	WIP               int     `json:"wip" yaml:"wip"`
	CycleTimeDeltaSec int     `json:"cycle_time_delta_sec" yaml:"cycle_time_delta_sec"`
	FPYDelta          float64 `json:"fpy_delta" yaml:"fpy_delta"`
	OEEDelta          float64 `json:"oee_delta" yaml:"oee_delta"`
}

// KaizenPolicy holds the scripted improvement constants.
type KaizenPolicy struct {
	WIPStep  int     `json:"wip_step" yaml:"wip_step"`
	WIPFloor int     `json:"wip_floor" yaml:"wip_floor"`
	FPYStep  float64 `json:"fpy_step" yaml:"fpy_step"`
	OEEStep  float64 `json:"oee_step" yaml:"oee_step"`
}

// Policy bundles the clamp bounds with the shock and kaizen scripts.
type Policy struct {
	Bounds Bounds       `json:"bounds" yaml:"bounds"`
	Shock  ShockPolicy  `json:"shock" yaml:"shock"`
	Kaizen KaizenPolicy `json:"kaizen" yaml:"kaizen"`
}

// DefaultPolicy returns the demo plant scripts.
func DefaultPolicy() Policy {
	return Policy{
		Bounds: DefaultBounds(),
		Shock: ShockPolicy{
			Marker:            "finishing",
			WIP:               8,
			CycleTimeDeltaSec: 15,
			FPYDelta:          5.0,
			OEEDelta:          8.0,
		},
		Kaizen: KaizenPolicy{
			WIPStep:  2,
			WIPFloor: 1,
			FPYStep:  1.5,
			OEEStep:  2.0,
		},
	}
}
