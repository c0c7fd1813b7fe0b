package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"natal-engine/internal/chart/domain"
)

// ChartRepository stores chart records in a local SQLite file.
// It backs the audit tool when no Postgres DSN is configured.
type ChartRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string, logger *log.Logger) (*ChartRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	r := &ChartRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if logger != nil {
		logger.Printf("sqlite chart store opened: path=%s", path)
	}
	return r, nil
}

func (r *ChartRepository) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chart_snapshots (
			user_id        TEXT NOT NULL,
			birth_key      TEXT NOT NULL,
			birth_date     TEXT NOT NULL,
			birth_time     TEXT NOT NULL,
			zone           TEXT NOT NULL,
			latitude       REAL NOT NULL,
			longitude      REAL NOT NULL,
			raw_longitudes TEXT NOT NULL,
			positions      TEXT NOT NULL,
			sun_sign       TEXT,
			is_valid       INTEGER NOT NULL,
			error_count    INTEGER NOT NULL DEFAULT 0,
			degraded       INTEGER NOT NULL DEFAULT 0,
			computed_at    INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL,
			PRIMARY KEY (user_id, birth_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chart_snapshots_user ON chart_snapshots(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// DB exposes the handle for metrics gauges.
func (r *ChartRepository) DB() *sql.DB {
	return r.db
}

// Close closes the database.
func (r *ChartRepository) Close() error {
	return r.db.Close()
}

// Save upserts a record.
func (r *ChartRepository) Save(ctx context.Context, record chart.ChartRecord) error {
	if record.UserID == "" || record.BirthKey == "" {
		return errors.New("sqlite chart repo: empty user id or birth key")
	}
	raw, err := json.Marshal(record.Raw)
	if err != nil {
		return err
	}
	positions, err := json.Marshal(record.Positions)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO chart_snapshots (
	user_id, birth_key, birth_date, birth_time, zone, latitude, longitude,
	raw_longitudes, positions, sun_sign, is_valid, error_count, degraded, computed_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (user_id, birth_key) DO UPDATE SET
	raw_longitudes = excluded.raw_longitudes,
	positions = excluded.positions,
	sun_sign = excluded.sun_sign,
	is_valid = excluded.is_valid,
	error_count = excluded.error_count,
	degraded = excluded.degraded,
	computed_at = excluded.computed_at,
	updated_at = excluded.updated_at`,
		record.UserID, record.BirthKey, record.BirthDate, record.BirthTime, record.Zone,
		record.Latitude, record.Longitude, string(raw), string(positions),
		record.SignOfBody(chart.BodySun), record.IsValid, record.ErrorCount, record.Degraded,
		record.ComputedAt.UnixNano(), time.Now().UnixNano(),
	)
	return err
}

// Get loads a record by user and birth key.
func (r *ChartRepository) Get(ctx context.Context, userID, birthKey string) (*chart.ChartRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT user_id, birth_key, birth_date, birth_time, zone, latitude, longitude,
	raw_longitudes, positions, is_valid, error_count, degraded, computed_at
FROM chart_snapshots
WHERE user_id = ? AND birth_key = ?`, userID, birthKey)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chart.ErrChartNotFound
	}
	return record, err
}

// ListByUser returns a user's records ordered by birth key.
func (r *ChartRepository) ListByUser(ctx context.Context, userID string) ([]chart.ChartRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT user_id, birth_key, birth_date, birth_time, zone, latitude, longitude,
	raw_longitudes, positions, is_valid, error_count, degraded, computed_at
FROM chart_snapshots
WHERE user_id = ?
ORDER BY birth_key ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []chart.ChartRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}

func scanRecord(row interface{ Scan(dest ...any) error }) (*chart.ChartRecord, error) {
	var (
		record     chart.ChartRecord
		raw        string
		positions  string
		computedAt int64
	)
	if err := row.Scan(
		&record.UserID, &record.BirthKey, &record.BirthDate, &record.BirthTime, &record.Zone,
		&record.Latitude, &record.Longitude, &raw, &positions,
		&record.IsValid, &record.ErrorCount, &record.Degraded, &computedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &record.Raw); err != nil {
		return nil, fmt.Errorf("decode raw: %w", err)
	}
	if err := json.Unmarshal([]byte(positions), &record.Positions); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	record.ComputedAt = time.Unix(0, computedAt).UTC()
	return &record, nil
}
