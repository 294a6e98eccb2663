package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	statistics "github.com/patrickjcash/delco-water-hass/internal/statistics/domain"
)

// Sink is an in-memory statistics store for demo runs and testing.
type Sink struct {
	mu     sync.RWMutex
	meta   map[string]statistics.SeriesMeta
	points map[string]map[int64]statistics.Point
}

// NewSink constructs an empty sink.
func NewSink() *Sink {
	return &Sink{
		meta:   make(map[string]statistics.SeriesMeta),
		points: make(map[string]map[int64]statistics.Point),
	}
}

// LastPoint reports the most recent period start held for a series.
func (s *Sink) LastPoint(ctx context.Context, seriesID string) (time.Time, bool, error) {
	_ = ctx
	if seriesID == "" {
		return time.Time{}, false, errors.New("memory sink: empty series id")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	byStart := s.points[seriesID]
	if len(byStart) == 0 {
		return time.Time{}, false, nil
	}
	var last int64
	for start := range byStart {
		if start > last {
			last = start
		}
	}
	return time.Unix(last, 0).UTC(), true, nil
}

// Append upserts points keyed by period start.
func (s *Sink) Append(ctx context.Context, meta statistics.SeriesMeta, points []statistics.Point) error {
	_ = ctx
	if meta.ID == "" {
		return errors.New("memory sink: empty series id")
	}
	if err := statistics.ValidateAscending(points); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta[meta.ID] = meta
	byStart := s.points[meta.ID]
	if byStart == nil {
		byStart = make(map[int64]statistics.Point, len(points))
		s.points[meta.ID] = byStart
	}
	for _, point := range points {
		byStart[point.Start.Unix()] = point
	}
	return nil
}

// Points returns a series' points sorted ascending by period start.
func (s *Sink) Points(seriesID string) []statistics.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStart := s.points[seriesID]
	result := make([]statistics.Point, 0, len(byStart))
	for _, point := range byStart {
		result = append(result, point)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result
}

// Series returns the metadata of every series seen so far.
func (s *Sink) Series() []statistics.SeriesMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]statistics.SeriesMeta, 0, len(s.meta))
	for _, meta := range s.meta {
		result = append(result, meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
