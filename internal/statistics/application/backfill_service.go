package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	billing "github.com/patrickjcash/delco-water-hass/internal/billing/domain"
	statistics "github.com/patrickjcash/delco-water-hass/internal/statistics/domain"
)

// SeriesResult reports one series' reconciliation outcome.
type SeriesResult struct {
	SeriesID string
	Emitted  int
	// Degraded is set when resume state was unavailable and the series
	// was rebuilt from the full record set.
	Degraded bool
	// From is the first emitted period start, zero when nothing was emitted.
	From time.Time
}

// BackfillResult reports one reconciliation pass over both series.
type BackfillResult struct {
	Consumption SeriesResult
	Cost        SeriesResult
}

// BackfillService reconciles assembled billing records into the statistics
// sink, one series at a time.
type BackfillService struct {
	sink   statistics.Sink
	loc    *time.Location
	logger *log.Logger
}

// Option configures a BackfillService.
type Option func(*BackfillService)

// WithZone sets the zone used to anchor service dates to period starts.
func WithZone(loc *time.Location) Option {
	return func(s *BackfillService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *BackfillService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewBackfillService builds a BackfillService writing to sink.
func NewBackfillService(sink statistics.Sink, opts ...Option) (*BackfillService, error) {
	if sink == nil {
		return nil, errors.New("statistics: nil sink")
	}
	s := &BackfillService{
		sink:   sink,
		loc:    time.UTC,
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Backfill reconciles records into the consumption and cost series.
// Records must be sorted ascending by service end date. A sink write
// failure aborts the pass; the next pass converges on the same points.
func (s *BackfillService) Backfill(ctx context.Context, records []billing.Record) (BackfillResult, error) {
	consumption := make([]statistics.Sample, 0, len(records))
	cost := make([]statistics.Sample, 0, len(records))
	for _, rec := range records {
		start := statistics.PeriodStart(rec.ServiceTo, s.loc)
		consumption = append(consumption, statistics.Sample{Start: start, Value: float64(rec.UsageGallons)})
		cost = append(cost, statistics.Sample{Start: start, Value: rec.ChargeAmount.InexactFloat64()})
	}

	var result BackfillResult
	var err error
	result.Consumption, err = s.backfillSeries(ctx, statistics.ConsumptionSeries, consumption)
	if err != nil {
		return result, err
	}
	result.Cost, err = s.backfillSeries(ctx, statistics.CostSeries, cost)
	if err != nil {
		return result, err
	}
	return result, nil
}

func (s *BackfillService) backfillSeries(ctx context.Context, meta statistics.SeriesMeta, samples []statistics.Sample) (SeriesResult, error) {
	res := SeriesResult{SeriesID: meta.ID}

	last, ok, err := s.sink.LastPoint(ctx, meta.ID)
	if err != nil {
		s.logger.Printf("WARN resume state unavailable, running full backfill series=%s err=%v", meta.ID, err)
		res.Degraded = true
		last, ok = time.Time{}, false
	}

	points := statistics.Reconcile(samples, last, ok)
	res.Emitted = len(points)
	if len(points) == 0 {
		return res, nil
	}
	res.From = points[0].Start

	if err := s.sink.Append(ctx, meta, points); err != nil {
		return res, fmt.Errorf("%w: series %s: %v", statistics.ErrSinkWrite, meta.ID, err)
	}
	s.logger.Printf("appended statistics series=%s points=%d from=%s", meta.ID, len(points), res.From.Format(time.RFC3339))
	return res, nil
}
