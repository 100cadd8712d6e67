package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fitops/gym-entitlement/internal/model"
)

// BookingRepo encapsulates database operations for bookings.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo constructs a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = `id, user_id, slot_id, ledger_id, code, status, created_at, cancelled_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.SlotID, &b.LedgerID, &b.Code, &b.Status,
		&b.CreatedAt, &b.CancelledAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertTx writes a confirmed booking and returns its id.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, userID, slotID uint64, ledgerID *uint64, code string, at time.Time) (uint64, error) {
	const q = `INSERT INTO bookings (user_id, slot_id, ledger_id, code, status, created_at)
	           VALUES (?, ?, ?, ?, 'CONFIRMED', ?)`
	res, err := tx.ExecContext(ctx, q, userID, slotID, ledgerID, code, at)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByIDTx loads a booking inside a transaction with a row lock so
// cancellation is serialized against a concurrent cancel of the same
// booking.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id = ? FOR UPDATE`
	return scanBooking(tx.QueryRowContext(ctx, q, id))
}

// GetByID loads a booking without a transaction.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id = ?`
	return scanBooking(r.db.QueryRowContext(ctx, q, id))
}

// HasConfirmedTx reports whether the user already holds a confirmed
// booking for the slot.  Checked inside the booking transaction so a
// duplicate submitted concurrently is caught before insert.
func (r *BookingRepo) HasConfirmedTx(ctx context.Context, tx *sql.Tx, userID, slotID uint64) (bool, error) {
	const q = `SELECT 1 FROM bookings
	           WHERE user_id = ? AND slot_id = ? AND status = 'CONFIRMED'
	           LIMIT 1 FOR UPDATE`
	var one int
	err := tx.QueryRowContext(ctx, q, userID, slotID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CancelTx flips a booking to CANCELLED.  The status guard makes a
// double cancel affect zero rows instead of double-crediting.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	const q = `UPDATE bookings
	           SET status = 'CANCELLED', cancelled_at = ?
	           WHERE id = ? AND status = 'CONFIRMED'`
	res, err := tx.ExecContext(ctx, q, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
	           WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
