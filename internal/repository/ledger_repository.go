package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fitops/gym-entitlement/internal/model"
)

// LedgerRepo encapsulates database operations for credit_ledger_entries.
// Balance mutations are always conditional updates guarded by the
// current value; a blind read-then-write never happens here.
type LedgerRepo struct {
	db *sql.DB
}

// NewLedgerRepo constructs a LedgerRepo bound to the given database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// DB exposes the underlying handle so services can begin transactions.
func (r *LedgerRepo) DB() *sql.DB { return r.db }

const ledgerCols = `id, user_id, service_class, deposit_remaining, expires_at, is_active,
       created_by, credited_at, deactivated_at`

func scanEntry(row interface{ Scan(...any) error }) (*model.CreditLedgerEntry, error) {
	var e model.CreditLedgerEntry
	err := row.Scan(
		&e.ID, &e.UserID, &e.ServiceClass, &e.DepositRemaining, &e.ExpiresAt, &e.IsActive,
		&e.CreatedBy, &e.CreditedAt, &e.DeactivatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Current returns the user's active entry for a service class, or
// ErrNoCurrentEntry.  The schema guarantees at most one active entry per
// (user, service class) because every insert deactivates the prior one
// in the same transaction.
func (r *LedgerRepo) Current(ctx context.Context, userID uint64, sc model.ServiceClass) (*model.CreditLedgerEntry, error) {
	const q = `SELECT ` + ledgerCols + ` FROM credit_ledger_entries
	           WHERE user_id = ? AND service_class = ? AND is_active = 1
	           ORDER BY credited_at DESC, id DESC LIMIT 1`
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, userID, sc))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCurrentEntry
	}
	return e, err
}

// CurrentTx is Current inside a transaction with a row lock, serializing
// concurrent credit operations on the same entry.
func (r *LedgerRepo) CurrentTx(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass) (*model.CreditLedgerEntry, error) {
	const q = `SELECT ` + ledgerCols + ` FROM credit_ledger_entries
	           WHERE user_id = ? AND service_class = ? AND is_active = 1
	           ORDER BY credited_at DESC, id DESC LIMIT 1
	           FOR UPDATE`
	e, err := scanEntry(tx.QueryRowContext(ctx, q, userID, sc))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCurrentEntry
	}
	return e, err
}

// InsertTx inserts a new ledger entry and returns its id.  Callers must
// have deactivated the prior current entry first (DeactivateCurrentTx).
func (r *LedgerRepo) InsertTx(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass, amount int, expiresAt *time.Time, createdBy uint64, at time.Time) (uint64, error) {
	const q = `INSERT INTO credit_ledger_entries
	           (user_id, service_class, deposit_remaining, expires_at, is_active, created_by, credited_at)
	           VALUES (?, ?, ?, ?, 1, ?, ?)`
	res, err := tx.ExecContext(ctx, q, userID, sc, amount, expiresAt, createdBy, at)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// DeactivateCurrentTx retires the user's current entry for a service
// class.  Zero affected rows is not an error: a user may simply have no
// entry yet.  It reports how many rows it touched so cascade outcomes
// can be recorded.
func (r *LedgerRepo) DeactivateCurrentTx(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass, at time.Time) (int64, error) {
	const q = `UPDATE credit_ledger_entries
	           SET is_active = 0, deactivated_at = ?
	           WHERE user_id = ? AND service_class = ? AND is_active = 1`
	res, err := tx.ExecContext(ctx, q, at, userID, sc)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DecrementTx subtracts one credit from an entry, guarded by the current
// balance so the counter can never go negative.  Two bookings racing on
// a single remaining credit resolve here: exactly one update matches.
func (r *LedgerRepo) DecrementTx(ctx context.Context, tx *sql.Tx, entryID uint64) error {
	const q = `UPDATE credit_ledger_entries
	           SET deposit_remaining = deposit_remaining - 1
	           WHERE id = ? AND is_active = 1 AND deposit_remaining > 0`
	res, err := tx.ExecContext(ctx, q, entryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// IncrementTx restores one credit to the entry a booking debited.  The
// entry may have been deactivated since (e.g. by a cascade); the credit
// is still recorded on the same row, so only existence is required.
func (r *LedgerRepo) IncrementTx(ctx context.Context, tx *sql.Tx, entryID uint64) error {
	const q = `UPDATE credit_ledger_entries
	           SET deposit_remaining = deposit_remaining + 1
	           WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, entryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// ResetTx sets an entry's balance to an absolute amount.  Used by the
// weekly refill, which is a reset to a cap rather than an addition.
func (r *LedgerRepo) ResetTx(ctx context.Context, tx *sql.Tx, entryID uint64, amount int) error {
	const q = `UPDATE credit_ledger_entries
	           SET deposit_remaining = ?
	           WHERE id = ? AND is_active = 1`
	res, err := tx.ExecContext(ctx, q, amount, entryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// ListByUser returns the user's full ledger history, newest first.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID uint64) ([]model.CreditLedgerEntry, error) {
	const q = `SELECT ` + ledgerCols + ` FROM credit_ledger_entries
	           WHERE user_id = ? ORDER BY credited_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CreditLedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
