package recorder

import (
	"context"
	"database/sql"
	"errors"
	"time"

	statistics "github.com/patrickjcash/delco-water-hass/internal/statistics/domain"
)

// Sink writes reconciled statistics into a Home Assistant recorder
// database. The recorder keeps period starts as epoch seconds and one row
// per (metadata_id, start_ts); appends upsert on that key.
type Sink struct {
	db *sql.DB
}

// NewSink constructs a sink over an opened recorder database.
func NewSink(db *sql.DB) (*Sink, error) {
	if db == nil {
		return nil, errors.New("recorder: nil db")
	}
	return &Sink{db: db}, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS statistics_meta (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	statistic_id TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL,
	name TEXT,
	unit_of_measurement TEXT,
	has_mean INTEGER NOT NULL DEFAULT 0,
	has_sum INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS statistics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	metadata_id INTEGER NOT NULL REFERENCES statistics_meta(id),
	created_ts REAL NOT NULL,
	start_ts REAL NOT NULL,
	state REAL,
	sum REAL,
	UNIQUE(metadata_id, start_ts)
)`,
	`CREATE INDEX IF NOT EXISTS ix_statistics_metadata_start ON statistics (metadata_id, start_ts)`,
}

// EnsureSchema creates the recorder tables when they do not exist yet.
// An existing recorder database is left untouched.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LastPoint reports the most recent period start stored for a series.
func (s *Sink) LastPoint(ctx context.Context, seriesID string) (time.Time, bool, error) {
	var startTS float64
	err := s.db.QueryRowContext(ctx, `
SELECT s.start_ts
FROM statistics s
JOIN statistics_meta m ON m.id = s.metadata_id
WHERE m.statistic_id = ?
ORDER BY s.start_ts DESC
LIMIT 1`, seriesID).Scan(&startTS)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(int64(startTS), 0).UTC(), true, nil
}

// Append upserts points for a series, registering its metadata on first use.
func (s *Sink) Append(ctx context.Context, meta statistics.SeriesMeta, points []statistics.Point) error {
	if meta.ID == "" {
		return errors.New("recorder: empty series id")
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

	metadataID, err := ensureMeta(ctx, tx, meta)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	createdTS := float64(time.Now().UTC().UnixNano()) / float64(time.Second)
	for _, point := range points {
		_, err := tx.ExecContext(ctx, `
INSERT INTO statistics (metadata_id, created_ts, start_ts, state, sum)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(metadata_id, start_ts)
DO UPDATE SET state = excluded.state, sum = excluded.sum, created_ts = excluded.created_ts`,
			metadataID, createdTS, float64(point.Start.Unix()), point.Value, point.Sum)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func ensureMeta(ctx context.Context, tx *sql.Tx, meta statistics.SeriesMeta) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM statistics_meta WHERE statistic_id = ?`, meta.ID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `
INSERT INTO statistics_meta (statistic_id, source, name, unit_of_measurement, has_mean, has_sum)
VALUES (?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Source, meta.Name, meta.Unit, meta.HasMean, meta.HasSum)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
