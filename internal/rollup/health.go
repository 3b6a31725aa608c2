package rollup

import "time"

// Health values.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// Degradation reasons, in evaluation order.
const (
	ReasonLinesEmpty  = "lines_empty"
	ReasonEventsEmpty = "events_empty"
	ReasonStaleSeed   = "stale_seed"
)

// DefaultStaleAfter is the seed age beyond which status degrades.
const DefaultStaleAfter = 2 * time.Hour

// Health summarizes the plant view. lastSync is the seed upload time, nil
// when no seed has been uploaded. The first matching condition wins.
func Health(lineCount, eventCount int, lastSync *time.Time, now time.Time, staleAfter time.Duration) (string, string) {
	switch {
	case lineCount == 0:
		return HealthDegraded, ReasonLinesEmpty
	case eventCount == 0:
		return HealthDegraded, ReasonEventsEmpty
	case lastSync != nil && now.Sub(*lastSync) > staleAfter:
		return HealthDegraded, ReasonStaleSeed
	}
	return HealthOK, ""
}
