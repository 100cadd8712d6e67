package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fitops/gym-entitlement/internal/model"
)

// InstallmentRepo encapsulates database operations for installment_plans.
// The three slots live in one row; slot-indexed statements are built
// from a validated index so the column names stay static strings.
type InstallmentRepo struct {
	db *sql.DB
}

// NewInstallmentRepo constructs an InstallmentRepo bound to the given database.
func NewInstallmentRepo(db *sql.DB) *InstallmentRepo { return &InstallmentRepo{db: db} }

// DB exposes the underlying handle so services can begin transactions.
func (r *InstallmentRepo) DB() *sql.DB { return r.db }

const planCols = `id, membership_id,
       amount_1, due_date_1, payment_method_1, locked_1, paid_1,
       amount_2, due_date_2, payment_method_2, locked_2, paid_2,
       amount_3, due_date_3, payment_method_3, locked_3, paid_3,
       third_deleted, third_deleted_at, third_deleted_by, created_at, updated_at`

func scanPlan(row interface{ Scan(...any) error }) (*model.InstallmentPlan, error) {
	var p model.InstallmentPlan
	var methods [3]sql.NullString
	err := row.Scan(
		&p.ID, &p.MembershipID,
		&p.Slots[0].Amount, &p.Slots[0].DueDate, &methods[0], &p.Slots[0].Locked, &p.Slots[0].Paid,
		&p.Slots[1].Amount, &p.Slots[1].DueDate, &methods[1], &p.Slots[1].Locked, &p.Slots[1].Paid,
		&p.Slots[2].Amount, &p.Slots[2].DueDate, &methods[2], &p.Slots[2].Locked, &p.Slots[2].Paid,
		&p.ThirdDeleted, &p.ThirdDeletedAt, &p.ThirdDeletedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for i := range methods {
		if methods[i].Valid {
			p.Slots[i].PaymentMethod = methods[i].String
		}
	}
	return &p, nil
}

// slotSuffix maps a 0-based slot index to the column suffix.  Indexes are
// validated at the service layer; anything else is a programming error.
func slotSuffix(idx int) string {
	if idx < 0 || idx > 2 {
		panic(fmt.Sprintf("installment slot index out of range: %d", idx))
	}
	return fmt.Sprintf("%d", idx+1)
}

// Create inserts an empty plan for a membership request.
func (r *InstallmentRepo) Create(ctx context.Context, membershipID uint64) (uint64, error) {
	const q = `INSERT INTO installment_plans (membership_id) VALUES (?)`
	res, err := r.db.ExecContext(ctx, q, membershipID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreateTx is Create inside a transaction (used when the plan is created
// together with the membership request).
func (r *InstallmentRepo) CreateTx(ctx context.Context, tx *sql.Tx, membershipID uint64) (uint64, error) {
	const q = `INSERT INTO installment_plans (membership_id) VALUES (?)`
	res, err := tx.ExecContext(ctx, q, membershipID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByMembership loads the plan bound to a membership request.
func (r *InstallmentRepo) GetByMembership(ctx context.Context, membershipID uint64) (*model.InstallmentPlan, error) {
	const q = `SELECT ` + planCols + ` FROM installment_plans WHERE membership_id = ?`
	return scanPlan(r.db.QueryRowContext(ctx, q, membershipID))
}

// GetByMembershipTx is GetByMembership with a row lock, serializing slot
// edits against each other.
func (r *InstallmentRepo) GetByMembershipTx(ctx context.Context, tx *sql.Tx, membershipID uint64) (*model.InstallmentPlan, error) {
	const q = `SELECT ` + planCols + ` FROM installment_plans WHERE membership_id = ? FOR UPDATE`
	return scanPlan(tx.QueryRowContext(ctx, q, membershipID))
}

// SetSlotTx writes one slot's amount, due date and payment method, and
// the locked flag computed by the service.  The lock guard is repeated
// in the WHERE clause so a concurrent lock loses cleanly.
func (r *InstallmentRepo) SetSlotTx(ctx context.Context, tx *sql.Tx, planID uint64, idx int, amount float64, due *time.Time, method string, locked bool) error {
	n := slotSuffix(idx)
	q := `UPDATE installment_plans
	      SET amount_` + n + ` = ?, due_date_` + n + ` = ?, payment_method_` + n + ` = ?, locked_` + n + ` = ?
	      WHERE id = ? AND locked_` + n + ` = 0`
	res, err := tx.ExecContext(ctx, q, amount, due, method, locked, planID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// MarkPaidTx sets a slot's paid flag.  Already-paid slots match zero
// rows, which the service treats as a no-op.
func (r *InstallmentRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, planID uint64, idx int) (bool, error) {
	n := slotSuffix(idx)
	q := `UPDATE installment_plans SET paid_` + n + ` = 1
	      WHERE id = ? AND paid_` + n + ` = 0`
	res, err := tx.ExecContext(ctx, q, planID)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// DeleteThirdTx soft-deletes the third slot.
func (r *InstallmentRepo) DeleteThirdTx(ctx context.Context, tx *sql.Tx, planID uint64, actor uint64, at time.Time) error {
	const q = `UPDATE installment_plans
	           SET third_deleted = 1, third_deleted_at = ?, third_deleted_by = ?
	           WHERE id = ? AND third_deleted = 0`
	res, err := tx.ExecContext(ctx, q, at, actor, planID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// RestoreThirdTx reverses a soft delete.  This is the only way back; the
// slot cannot be revived by re-setting it.
func (r *InstallmentRepo) RestoreThirdTx(ctx context.Context, tx *sql.Tx, planID uint64) error {
	const q = `UPDATE installment_plans
	           SET third_deleted = 0, third_deleted_at = NULL, third_deleted_by = NULL
	           WHERE id = ? AND third_deleted = 1`
	res, err := tx.ExecContext(ctx, q, planID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}
