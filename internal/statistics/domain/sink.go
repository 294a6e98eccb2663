package statistics

import (
	"context"
	"time"
)

// Point is one timeseries sample handed to the statistics store.
type Point struct {
	Start time.Time
	Value float64
	Sum   float64
}

// Sink is the narrow surface of the external statistics store.
type Sink interface {
	// LastPoint reports the newest persisted period start for a series.
	// ok is false when the series has no points yet.
	LastPoint(ctx context.Context, seriesID string) (last time.Time, ok bool, err error)

	// Append upserts points ordered strictly ascending by period start.
	// Re-appending an existing period start overwrites that point, so a
	// repeated or fully degraded backfill converges on the same state.
	Append(ctx context.Context, meta SeriesMeta, points []Point) error
}

// ValidateAscending rejects point batches that are not strictly ascending
// by period start. Sink adapters call it before writing.
func ValidateAscending(points []Point) error {
	for i := 1; i < len(points); i++ {
		if !points[i].Start.After(points[i-1].Start) {
			return ErrOutOfOrder
		}
	}
	return nil
}
