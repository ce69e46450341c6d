package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"newspenguin/domain"
)

// Repository keeps watermark and lease rows in the kv_store table.
type Repository struct{ db *sql.DB }

func New(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Ensure(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS kv_store (
    key TEXT PRIMARY KEY,
    value TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	return err
}

func (r *Repository) Close() error { return r.db.Close() }

func (r *Repository) GetWatermark(ctx context.Context, key string) (*time.Time, error) {
	var value sql.NullString
	row := r.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !value.Valid {
		return nil, nil
	}
	ts, err := domain.ParseTimestamp(value.String)
	if err != nil {
		return nil, fmt.Errorf("stored watermark: %w", err)
	}
	return &ts, nil
}

func (r *Repository) SetWatermark(ctx context.Context, key string, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now()) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, domain.FormatTimestamp(ts))
	return err
}

// AcquireLease inserts the lease row, or overwrites it only when the current
// row is older than staleBefore. The conflict clause makes the check and the
// write one statement, so concurrent callers cannot both win.
func (r *Repository) AcquireLease(ctx context.Context, lease domain.Lease, staleBefore time.Time) (bool, *domain.Lease, error) {
	var prevHolder sql.NullString
	var prevAt sql.NullTime
	row := r.db.QueryRowContext(ctx, `
WITH prev AS (
    SELECT value, updated_at FROM kv_store WHERE key = $1
)
INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
WHERE kv_store.updated_at < $4
RETURNING (SELECT value FROM prev), (SELECT updated_at FROM prev)`,
		lease.Key, lease.Holder, lease.AcquiredAt.UTC(), staleBefore.UTC())
	err := row.Scan(&prevHolder, &prevAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		cur, gerr := r.GetLease(ctx, lease.Key)
		if gerr != nil {
			return false, nil, gerr
		}
		return false, cur, nil
	case err != nil:
		return false, nil, err
	}
	if !prevAt.Valid {
		return true, nil, nil
	}
	return true, &domain.Lease{Key: lease.Key, Holder: prevHolder.String, AcquiredAt: prevAt.Time.UTC()}, nil
}

func (r *Repository) GetLease(ctx context.Context, key string) (*domain.Lease, error) {
	var holder sql.NullString
	var at time.Time
	row := r.db.QueryRowContext(ctx, `SELECT value, updated_at FROM kv_store WHERE key = $1`, key)
	if err := row.Scan(&holder, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Lease{Key: key, Holder: holder.String, AcquiredAt: at.UTC()}, nil
}

func (r *Repository) DeleteLease(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	return err
}

var _ domain.StateStore = (*Repository)(nil)
