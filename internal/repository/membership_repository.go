package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fitops/gym-entitlement/internal/model"
)

// MembershipRepo encapsulates database operations for the memberships
// table.  The registry service owns all transitions; this layer only
// issues the guarded statements.
type MembershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo constructs a MembershipRepo bound to the given database.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

// DB exposes the underlying handle so services can begin transactions.
func (r *MembershipRepo) DB() *sql.DB { return r.db }

const membershipCols = `id, user_id, package_class, duration_option, start_date, end_date,
       status, is_active, approved_by, approved_at, rejected_reason, deleted_at,
       created_at, updated_at`

func scanMembership(row interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	err := row.Scan(
		&m.ID, &m.UserID, &m.PackageClass, &m.DurationOption, &m.StartDate, &m.EndDate,
		&m.Status, &m.IsActive, &m.ApprovedBy, &m.ApprovedAt, &m.RejectedReason, &m.DeletedAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new PENDING membership request and populates the
// generated ID on the returned record.
func (r *MembershipRepo) Create(ctx context.Context, userID uint64, pkg model.PackageClass, dur model.DurationOption) (uint64, error) {
	const q = `INSERT INTO memberships (user_id, package_class, duration_option, status)
	           VALUES (?, ?, ?, 'PENDING')`
	res, err := r.db.ExecContext(ctx, q, userID, pkg, dur)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreateTx is Create inside a transaction, used when the request is
// inserted together with an installment plan.
func (r *MembershipRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID uint64, pkg model.PackageClass, dur model.DurationOption) (uint64, error) {
	const q = `INSERT INTO memberships (user_id, package_class, duration_option, status)
	           VALUES (?, ?, ?, 'PENDING')`
	res, err := tx.ExecContext(ctx, q, userID, pkg, dur)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID returns a single membership row.  sql.ErrNoRows is passed
// through when the id is unknown.
func (r *MembershipRepo) GetByID(ctx context.Context, id uint64) (*model.Membership, error) {
	const q = `SELECT ` + membershipCols + ` FROM memberships WHERE id = ?`
	return scanMembership(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx is GetByID inside a transaction with a row lock, used by the
// approval flow so two admins cannot finalize the same request.
func (r *MembershipRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Membership, error) {
	const q = `SELECT ` + membershipCols + ` FROM memberships WHERE id = ? FOR UPDATE`
	return scanMembership(tx.QueryRowContext(ctx, q, id))
}

// ApproveTx finalizes a pending request in place.  The WHERE clause
// re-checks PENDING so a lost race surfaces as ErrPreconditionFailed
// instead of silently re-approving.
func (r *MembershipRepo) ApproveTx(ctx context.Context, tx *sql.Tx, id uint64, start, end time.Time, actor uint64, at time.Time) error {
	const q = `UPDATE memberships
	           SET status = 'APPROVED', is_active = 1, start_date = ?, end_date = ?,
	               approved_by = ?, approved_at = ?
	           WHERE id = ? AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, q, start, end, actor, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// RejectTx marks a pending request rejected.  Rejection is terminal.
func (r *MembershipRepo) RejectTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) error {
	const q = `UPDATE memberships
	           SET status = 'REJECTED', rejected_reason = ?
	           WHERE id = ? AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, q, reason, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// DeactivatePriorTx flips is_active off on any approved, non-deleted
// membership of the same user and package.  Called before a new
// membership of that package is activated so the user never holds two
// concurrently effective memberships of one package.  Returns the ids of
// the rows it deactivated so the cascade can follow them.
func (r *MembershipRepo) DeactivatePriorTx(ctx context.Context, tx *sql.Tx, userID uint64, pkg model.PackageClass, exceptID uint64) ([]uint64, error) {
	const sel = `SELECT id FROM memberships
	             WHERE user_id = ? AND package_class = ? AND status = 'APPROVED'
	               AND is_active = 1 AND deleted_at IS NULL AND id <> ?
	             FOR UPDATE`
	rows, err := tx.QueryContext(ctx, sel, userID, pkg, exceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	const upd = `UPDATE memberships SET is_active = 0 WHERE id = ?`
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, upd, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// DeactivateTx flips one membership inactive; used by the expiration
// sweep.  The guard keeps the sweep idempotent per record.
func (r *MembershipRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE memberships SET is_active = 0 WHERE id = ? AND is_active = 1`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// ListExpired returns approved, active, non-deleted memberships whose
// end date lies strictly before the given calendar date.
func (r *MembershipRepo) ListExpired(ctx context.Context, asOf time.Time) ([]model.Membership, error) {
	const q = `SELECT ` + membershipCols + ` FROM memberships
	           WHERE status = 'APPROVED' AND is_active = 1 AND deleted_at IS NULL
	             AND end_date < ?
	           ORDER BY id`
	return r.list(ctx, q, asOf)
}

// ListEffectiveByUser returns the user's currently effective memberships
// (approved, active, not deleted, end date on or after the given date).
func (r *MembershipRepo) ListEffectiveByUser(ctx context.Context, userID uint64, today time.Time) ([]model.Membership, error) {
	const q = `SELECT ` + membershipCols + ` FROM memberships
	           WHERE user_id = ? AND status = 'APPROVED' AND is_active = 1
	             AND deleted_at IS NULL AND end_date >= ?
	           ORDER BY end_date DESC`
	return r.list(ctx, q, userID, today)
}

// ListEffectiveByUserTx is ListEffectiveByUser inside a transaction, used
// by the booking transactor's in-transaction entitlement re-check.
func (r *MembershipRepo) ListEffectiveByUserTx(ctx context.Context, tx *sql.Tx, userID uint64, today time.Time) ([]model.Membership, error) {
	const q = `SELECT ` + membershipCols + ` FROM memberships
	           WHERE user_id = ? AND status = 'APPROVED' AND is_active = 1
	             AND deleted_at IS NULL AND end_date >= ?
	           ORDER BY end_date DESC`
	rows, err := tx.QueryContext(ctx, q, userID, today)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

// ListRefillCandidates returns approved, active memberships of the given
// packages whose window covers asOf.  The refill job feeds on this.
func (r *MembershipRepo) ListRefillCandidates(ctx context.Context, pkgs []model.PackageClass, asOf time.Time) ([]model.Membership, error) {
	if len(pkgs) == 0 {
		return nil, nil
	}
	q := `SELECT ` + membershipCols + ` FROM memberships
	      WHERE status = 'APPROVED' AND is_active = 1 AND deleted_at IS NULL
	        AND end_date >= ? AND package_class IN (`
	args := []any{asOf}
	for i, p := range pkgs {
		if i > 0 {
			q += ","
		}
		q += "?"
		args = append(args, p)
	}
	q += `) ORDER BY user_id, id`
	return r.list(ctx, q, args...)
}

func (r *MembershipRepo) list(ctx context.Context, q string, args ...any) ([]model.Membership, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectMemberships(rows)
}

func collectMemberships(rows *sql.Rows) ([]model.Membership, error) {
	defer rows.Close()
	var out []model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
