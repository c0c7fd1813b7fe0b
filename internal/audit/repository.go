package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository writes audit logs to PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry.fill(time.Now())

	_, err := r.db.ExecContext(ctx, `
INSERT INTO chart_audit_logs (
	id, user_id, action, birth_key, is_valid, error_count, corrections, degraded,
	metadata, payload_digest, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, entry.ID, entry.UserID, entry.Action, entry.BirthKey, entry.IsValid, entry.ErrorCount, entry.Corrections, entry.Degraded,
		nullableJSON(entry.Metadata), entry.PayloadDigest, entry.CreatedAt)
	return err
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
