package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	statistics "github.com/patrickjcash/delco-water-hass/internal/statistics/domain"
)

const (
	defaultMetaTable   = "statistics_meta"
	defaultPointsTable = "statistics"
)

// Sink is a Postgres statistics store. One row per (metadata_id,
// period_start); appends upsert on that key so replays converge.
type Sink struct {
	db          *sql.DB
	metaTable   string
	pointsTable string
}

// SinkOption configures the sink.
type SinkOption func(*Sink)

// WithMetaTable overrides the series metadata table name.
func WithMetaTable(table string) SinkOption {
	return func(s *Sink) {
		if table != "" {
			s.metaTable = table
		}
	}
}

// WithPointsTable overrides the points table name.
func WithPointsTable(table string) SinkOption {
	return func(s *Sink) {
		if table != "" {
			s.pointsTable = table
		}
	}
}

// NewSink constructs a sink using the default table names.
func NewSink(db *sql.DB, opts ...SinkOption) (*Sink, error) {
	if db == nil {
		return nil, errors.New("statistics postgres: nil db")
	}
	sink := &Sink{
		db:          db,
		metaTable:   defaultMetaTable,
		pointsTable: defaultPointsTable,
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink, nil
}

// EnsureSchema creates the statistics tables when they do not exist yet.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	statistic_id TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL,
	name TEXT,
	unit_of_measurement TEXT,
	has_mean BOOLEAN NOT NULL DEFAULT FALSE,
	has_sum BOOLEAN NOT NULL DEFAULT FALSE
)`, s.metaTable),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	metadata_id BIGINT NOT NULL REFERENCES %s(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	period_start TIMESTAMPTZ NOT NULL,
	state DOUBLE PRECISION,
	sum DOUBLE PRECISION,
	UNIQUE (metadata_id, period_start)
)`, s.pointsTable, s.metaTable),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LastPoint reports the most recent period start stored for a series.
func (s *Sink) LastPoint(ctx context.Context, seriesID string) (time.Time, bool, error) {
	query := fmt.Sprintf(`
SELECT p.period_start
FROM %s p
JOIN %s m ON m.id = p.metadata_id
WHERE m.statistic_id = $1
ORDER BY p.period_start DESC
LIMIT 1`, s.pointsTable, s.metaTable)

	var start time.Time
	err := s.db.QueryRowContext(ctx, query, seriesID).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return start.UTC(), true, nil
}

// Append upserts points for a series, registering its metadata on first use.
func (s *Sink) Append(ctx context.Context, meta statistics.SeriesMeta, points []statistics.Point) error {
	if meta.ID == "" {
		return errors.New("statistics postgres: empty series id")
	}
	if len(points) == 0 {
		return nil
	}
	if err := statistics.ValidateAscending(points); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	metaQuery := fmt.Sprintf(`
INSERT INTO %s (statistic_id, source, name, unit_of_measurement, has_mean, has_sum)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (statistic_id)
DO UPDATE SET
	source = EXCLUDED.source,
	name = EXCLUDED.name,
	unit_of_measurement = EXCLUDED.unit_of_measurement,
	has_mean = EXCLUDED.has_mean,
	has_sum = EXCLUDED.has_sum
RETURNING id`, s.metaTable)

	var metadataID int64
	err = tx.QueryRowContext(ctx, metaQuery, meta.ID, meta.Source, meta.Name, meta.Unit, meta.HasMean, meta.HasSum).Scan(&metadataID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	pointQuery := fmt.Sprintf(`
INSERT INTO %s (metadata_id, period_start, state, sum)
VALUES ($1, $2, $3, $4)
ON CONFLICT (metadata_id, period_start)
DO UPDATE SET state = EXCLUDED.state, sum = EXCLUDED.sum, created_at = NOW()`, s.pointsTable)

	for _, point := range points {
		if _, err := tx.ExecContext(ctx, pointQuery, metadataID, point.Start, point.Value, point.Sum); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
