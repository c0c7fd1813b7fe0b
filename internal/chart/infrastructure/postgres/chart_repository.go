package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"natal-engine/internal/chart/domain"
)

const defaultChartTable = "chart_snapshots"

// ChartRepository persists chart records in Postgres, one row per user and birth key.
type ChartRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ChartRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ChartRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewChartRepository constructs a repository.
func NewChartRepository(db *sql.DB, opts ...RepositoryOption) *ChartRepository {
	repo := &ChartRepository{db: db, table: defaultChartTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Save upserts a record.
func (r *ChartRepository) Save(ctx context.Context, record chart.ChartRecord) error {
	if r == nil || r.db == nil {
		return errors.New("chart repo: nil db")
	}
	if record.UserID == "" || record.BirthKey == "" {
		return errors.New("chart repo: empty user id or birth key")
	}
	raw, err := json.Marshal(record.Raw)
	if err != nil {
		return fmt.Errorf("chart repo: encode raw: %w", err)
	}
	positions, err := json.Marshal(record.Positions)
	if err != nil {
		return fmt.Errorf("chart repo: encode positions: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	user_id, birth_key, birth_date, birth_time, zone, latitude, longitude,
	raw_longitudes, positions, sun_sign, moon_sign, ascendant_sign,
	is_valid, error_count, degraded, computed_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)
ON CONFLICT (user_id, birth_key) DO UPDATE SET
	raw_longitudes = EXCLUDED.raw_longitudes,
	positions = EXCLUDED.positions,
	sun_sign = EXCLUDED.sun_sign,
	moon_sign = EXCLUDED.moon_sign,
	ascendant_sign = EXCLUDED.ascendant_sign,
	is_valid = EXCLUDED.is_valid,
	error_count = EXCLUDED.error_count,
	degraded = EXCLUDED.degraded,
	computed_at = EXCLUDED.computed_at,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		record.UserID, record.BirthKey, record.BirthDate, record.BirthTime, record.Zone,
		record.Latitude, record.Longitude, raw, positions,
		nullableSign(record.SignOfBody(chart.BodySun)),
		nullableSign(record.SignOfBody(chart.BodyMoon)),
		nullableSign(record.SignOfBody(chart.BodyAscendant)),
		record.IsValid, record.ErrorCount, record.Degraded, record.ComputedAt, time.Now().UTC(),
	)
	return err
}

// Get loads a record by user and birth key.
func (r *ChartRepository) Get(ctx context.Context, userID, birthKey string) (*chart.ChartRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("chart repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT user_id, birth_key, birth_date, birth_time, zone, latitude, longitude,
	raw_longitudes, positions, is_valid, error_count, degraded, computed_at
FROM %s
WHERE user_id = $1 AND birth_key = $2
LIMIT 1`, r.table)
	record, err := scanRecord(r.db.QueryRowContext(ctx, query, userID, birthKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chart.ErrChartNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListByUser returns a user's records ordered by birth key.
func (r *ChartRepository) ListByUser(ctx context.Context, userID string) ([]chart.ChartRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("chart repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT user_id, birth_key, birth_date, birth_time, zone, latitude, longitude,
	raw_longitudes, positions, is_valid, error_count, degraded, computed_at
FROM %s
WHERE user_id = $1
ORDER BY birth_key ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, query, userID)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*chart.ChartRecord, error) {
	var (
		record    chart.ChartRecord
		raw       []byte
		positions []byte
	)
	if err := row.Scan(
		&record.UserID,
		&record.BirthKey,
		&record.BirthDate,
		&record.BirthTime,
		&record.Zone,
		&record.Latitude,
		&record.Longitude,
		&raw,
		&positions,
		&record.IsValid,
		&record.ErrorCount,
		&record.Degraded,
		&record.ComputedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &record.Raw); err != nil {
		return nil, fmt.Errorf("chart repo: decode raw: %w", err)
	}
	if err := json.Unmarshal(positions, &record.Positions); err != nil {
		return nil, fmt.Errorf("chart repo: decode positions: %w", err)
	}
	record.ComputedAt = record.ComputedAt.UTC()
	return &record, nil
}

func nullableSign(label string) any {
	if label == "" {
		return nil
	}
	return label
}
