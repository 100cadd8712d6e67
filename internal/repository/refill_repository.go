package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RefillRepo persists the idempotency markers of the weekly refill job.
type RefillRepo struct {
	db *sql.DB
}

// NewRefillRepo constructs a RefillRepo bound to the given database.
func NewRefillRepo(db *sql.DB) *RefillRepo { return &RefillRepo{db: db} }

// ExistsTx reports whether a refill already ran for the user in the
// given ISO week.
func (r *RefillRepo) ExistsTx(ctx context.Context, tx *sql.Tx, userID uint64, isoYear, isoWeek int) (bool, error) {
	const q = `SELECT 1 FROM refill_records
	           WHERE user_id = ? AND iso_year = ? AND iso_week = ? LIMIT 1`
	var one int
	err := tx.QueryRowContext(ctx, q, userID, isoYear, isoWeek).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertTx writes the idempotency marker.  The unique key on
// (user_id, iso_year, iso_week) makes a concurrent double-run fail
// loudly instead of refilling twice.
func (r *RefillRepo) InsertTx(ctx context.Context, tx *sql.Tx, userID uint64, isoYear, isoWeek, target int, at time.Time) error {
	const q = `INSERT INTO refill_records (user_id, iso_year, iso_week, target_amount, applied_at)
	           VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, userID, isoYear, isoWeek, target, at)
	return err
}
