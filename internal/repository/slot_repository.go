package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fitops/gym-entitlement/internal/model"
)

// SlotRepo encapsulates database operations for class_slots.  Capacity
// is enforced with the same conditional-update discipline as the credit
// ledger so concurrent bookings cannot overbook a slot.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo constructs a SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotCols = `id, service_class, title, starts_at, capacity, booked_count, is_active, created_at`

func scanSlot(row interface{ Scan(...any) error }) (*model.ClassSlot, error) {
	var s model.ClassSlot
	err := row.Scan(&s.ID, &s.ServiceClass, &s.Title, &s.StartsAt, &s.Capacity,
		&s.BookedCount, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByIDTx loads a slot inside a transaction.  No row lock is taken:
// the capacity mutation itself is guarded, and locking the slot row
// would serialize unrelated users.
func (r *SlotRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.ClassSlot, error) {
	const q = `SELECT ` + slotCols + ` FROM class_slots WHERE id = ?`
	return scanSlot(tx.QueryRowContext(ctx, q, id))
}

// IncrementBookedTx takes one place in the slot, guarded by remaining
// capacity.  Zero affected rows means the slot filled up concurrently.
func (r *SlotRepo) IncrementBookedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE class_slots
	           SET booked_count = booked_count + 1
	           WHERE id = ? AND is_active = 1 AND booked_count < capacity`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// DecrementBookedTx releases one place, floored at zero.
func (r *SlotRepo) DecrementBookedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE class_slots
	           SET booked_count = booked_count - 1
	           WHERE id = ? AND booked_count > 0`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// ListUpcoming returns active slots starting on or after the given
// instant, soonest first.
func (r *SlotRepo) ListUpcoming(ctx context.Context, from time.Time) ([]model.ClassSlot, error) {
	const q = `SELECT ` + slotCols + ` FROM class_slots
	           WHERE is_active = 1 AND starts_at >= ?
	           ORDER BY starts_at, id`
	rows, err := r.db.QueryContext(ctx, q, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ClassSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Create inserts a slot.  Exposed for admin seeding and tests.
func (r *SlotRepo) Create(ctx context.Context, sc model.ServiceClass, title string, startsAt time.Time, capacity int) (uint64, error) {
	const q = `INSERT INTO class_slots (service_class, title, starts_at, capacity)
	           VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, sc, title, startsAt, capacity)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
