// Package rollup derives line, station, event and order views from point in
// time snapshots of plant state. Every function is pure; callers take the
// snapshot and pass it in.
package rollup

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"plantcore/pkg/domain"
)

// DefaultLineID receives stations whose names match no classification rule.
const DefaultLineID = 3

// PaintLineID is the line whose Down status switches the demo order catalog.
const PaintLineID = 2

// LineDefinition names one of the fixed production lines.
type LineDefinition struct {
	ID   int
	Name string
}

// LineDefinitions returns the fixed lines in display order.
func LineDefinitions() []LineDefinition {
	return []LineDefinition{
		{ID: 1, Name: "Metal & Şase"},
		{ID: 2, Name: "Boya Hattı"},
		{ID: 3, Name: "Montaj"},
		{ID: 4, Name: "Final Test"},
		{ID: 5, Name: "Paketleme & Sevkiyat"},
	}
}

type classificationRule struct {
	needles []string
	lineID  int
}

// Evaluated in order; first match wins.
var classificationRules = []classificationRule{
	{needles: []string{"metal", "şa"}, lineID: 1},
	{needles: []string{"boya", "paint"}, lineID: 2},
	{needles: []string{"montaj", "assembly"}, lineID: 3},
	{needles: []string{"test"}, lineID: 4},
	{needles: []string{"paket", "sevkiyat"}, lineID: 5},
}

// Fold returns the case-folded form of s used for name matching.
func Fold(s string) string {
	// cases.Caser keeps internal state and must not be shared across goroutines.
	return cases.Fold().String(s)
}

// ClassifyLine assigns a station name to one of the fixed lines by
// case-insensitive substring match.
func ClassifyLine(name string) int {
	folded := Fold(name)
	for _, rule := range classificationRules {
		for _, needle := range rule.needles {
			if strings.Contains(folded, needle) {
				return rule.lineID
			}
		}
	}
	return DefaultLineID
}

type lineAccumulator struct {
	line  domain.Line
	count int
	ctSum int
	oee   float64
	fpy   float64
}

// BuildLines folds the stations into the fixed lines. latest is the newest
// event in the plant, or nil when the log is empty; now stamps the default
// last event.
func BuildLines(stations []domain.Station, latest *domain.Event, now time.Time) []domain.Line {
	defs := LineDefinitions()
	acc := make(map[int]*lineAccumulator, len(defs))
	for _, def := range defs {
		acc[def.ID] = &lineAccumulator{line: domain.Line{LineID: def.ID, LineName: def.Name, Status: domain.LineIdle}}
	}
	for _, st := range stations {
		a, ok := acc[ClassifyLine(st.Name)]
		if !ok {
			continue
		}
		a.count++
		a.line.WIP += st.WIP
		a.ctSum += roundInt(float64(st.CycleTimeSec) / 60)
		a.oee += st.OEE
		a.fpy += st.FPY
		if st.Flagged() {
			name := st.Name
			a.line.BottleneckStation = &name
		}
	}
	last := LastEventFor(latest, now)
	out := make([]domain.Line, 0, len(defs))
	for _, def := range defs {
		a := acc[def.ID]
		line := a.line
		if a.count > 0 {
			n := float64(a.count)
			line.CTMin = roundInt(float64(a.ctSum) / n)
			line.OEE = roundInt(a.oee / n)
			line.FPY = roundInt(a.fpy / n)
			line.ThroughputPH = roundInt(60 / float64(max(line.CTMin, 1)))
			line.Status = lineStatus(line)
		}
		ev := last
		line.LastEvent = &ev
		out = append(out, line)
	}
	return out
}

func lineStatus(line domain.Line) domain.LineStatus {
	switch {
	case line.BottleneckStation != nil:
		return domain.LineBlocked
	case line.OEE >= 70 && line.WIP > 0:
		return domain.LineRunning
	case line.WIP == 0:
		return domain.LineIdle
	default:
		return domain.LineDown
	}
}

func roundInt(v float64) int {
	return int(math.RoundToEven(v))
}

// WIPTotal sums wip across lines.
func WIPTotal(lines []domain.Line) int {
	total := 0
	for _, l := range lines {
		total += l.WIP
	}
	return total
}
