package core

import (
	"context"
	"fmt"
	"strconv"

	"plantcore/pkg/domain"
)

// NewMetricBoundsRule returns the rule that blocks commits leaving a changed
// station outside the clamp bounds.
func NewMetricBoundsRule() domain.Rule {
	return metricBoundsRule{}
}

type metricBoundsRule struct{}

func (metricBoundsRule) Name() string { return "metric_bounds" }

func (r metricBoundsRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	bounds := view.Bounds()
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityStation {
			continue
		}
		after, ok := change.After.(domain.Station)
		if !ok {
			continue
		}
		var problem string
		switch {
		case !bounds.Contains(after):
			problem = fmt.Sprintf("fpy %.1f / oee %.1f outside [%.1f,%.1f] / [%.1f,%.1f]",
				after.FPY, after.OEE, bounds.FPYFloor, bounds.FPYCeiling, bounds.OEEFloor, bounds.OEECeiling)
		case after.WIP < 0:
			problem = fmt.Sprintf("negative wip %d", after.WIP)
		case after.CycleTimeSec <= 0:
			problem = fmt.Sprintf("non-positive cycle time %d", after.CycleTimeSec)
		default:
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("station %s (%d): %s", after.Name, after.ID, problem),
			Entity:   domain.EntityStation,
			EntityID: strconv.Itoa(after.ID),
		})
	}
	return res, nil
}
