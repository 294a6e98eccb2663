package statistics

import "time"

// Sample is one source observation: a period start and that period's value.
type Sample struct {
	Start time.Time
	Value float64
}

// PeriodStart pins a service-period end date to midday in the given zone
// and returns it in UTC. Midday keeps the point on its calendar day for
// zones on either side of UTC.
func PeriodStart(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc).UTC()
}

// Reconcile folds samples into the running total and returns the points
// strictly after last. Samples must already be in ascending period order.
//
// Every sample contributes to the running sum, including those at or before
// last, so resumed backfills keep the cumulative totals of a full one. When
// consecutive samples share a period start the later sample's point replaces
// the earlier one and carries the sum over both, keeping the returned points
// strictly ascending.
func Reconcile(samples []Sample, last time.Time, haveLast bool) []Point {
	var sum float64
	points := make([]Point, 0, len(samples))
	for _, s := range samples {
		sum += s.Value
		if haveLast && !s.Start.After(last) {
			continue
		}
		if n := len(points); n > 0 && points[n-1].Start.Equal(s.Start) {
			points[n-1] = Point{Start: s.Start, Value: s.Value, Sum: sum}
			continue
		}
		points = append(points, Point{Start: s.Start, Value: s.Value, Sum: sum})
	}
	return points
}
