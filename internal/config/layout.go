package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"plantcore/pkg/domain"
)

// Layout describes the plant: the baseline station table and the scripts
// used by the perturbation actions. Omitted sections keep their defaults.
type Layout struct {
	Stations []domain.BaselineStation `yaml:"stations"`
	Bounds   *domain.Bounds           `yaml:"bounds"`
	Shock    *domain.ShockPolicy      `yaml:"shock"`
	Kaizen   *domain.KaizenPolicy     `yaml:"kaizen"`
}

// DefaultLayout returns the demo plant.
func DefaultLayout() Layout {
	p := domain.DefaultPolicy()
	return Layout{Stations: domain.DefaultBaseline(), Bounds: &p.Bounds, Shock: &p.Shock, Kaizen: &p.Kaizen}
}

// LoadLayout reads a YAML layout from path. An empty path returns the
// default layout.
func LoadLayout(path string) (Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	// #nosec G304 -- operator-supplied configuration path
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes and validates a YAML layout.
func ParseLayout(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("decode layout: %w", err)
	}
	def := DefaultLayout()
	if l.Stations == nil {
		l.Stations = def.Stations
	}
	if l.Bounds == nil {
		l.Bounds = def.Bounds
	}
	if l.Shock == nil {
		l.Shock = def.Shock
	}
	if l.Kaizen == nil {
		l.Kaizen = def.Kaizen
	}
	if err := l.validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

func (l Layout) validate() error {
	seen := make(map[int]struct{}, len(l.Stations))
	for _, st := range l.Stations {
		switch {
		case st.ID <= 0:
			return fmt.Errorf("layout station %q: id must be positive", st.Name)
		case st.Name == "":
			return fmt.Errorf("layout station %d: name required", st.ID)
		case st.CycleTimeSec <= 0:
			return fmt.Errorf("layout station %d: cycle_time_sec must be positive", st.ID)
		case st.WIP < 0:
			return fmt.Errorf("layout station %d: wip must not be negative", st.ID)
		}
		if _, dup := seen[st.ID]; dup {
			return fmt.Errorf("layout station %d: duplicate id", st.ID)
		}
		seen[st.ID] = struct{}{}
	}
	b := l.Bounds
	if b.FPYFloor > b.FPYCeiling || b.OEEFloor > b.OEECeiling {
		return fmt.Errorf("layout bounds: floor above ceiling")
	}
	if l.Kaizen.WIPFloor < 0 || l.Kaizen.WIPStep < 0 {
		return fmt.Errorf("layout kaizen: wip step and floor must not be negative")
	}
	return nil
}

// Policy returns the bounds and scripts as one policy.
func (l Layout) Policy() domain.Policy {
	p := domain.DefaultPolicy()
	if l.Bounds != nil {
		p.Bounds = *l.Bounds
	}
	if l.Shock != nil {
		p.Shock = *l.Shock
	}
	if l.Kaizen != nil {
		p.Kaizen = *l.Kaizen
	}
	return p
}
