// Package installment manages the staged-payment plans attached to
// Ultimate-tier membership requests.  A plan has three ordered slots; a
// slot locks when its amount is first set and locked slots reject edits.
// The third slot can be soft-deleted to shorten the plan and restored to
// bring it back, audit fields intact.
package installment

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/fitops/gym-entitlement/internal/apperr"
	"github.com/fitops/gym-entitlement/internal/clock"
	"github.com/fitops/gym-entitlement/internal/database"
	"github.com/fitops/gym-entitlement/internal/model"
	"github.com/fitops/gym-entitlement/internal/repository"
)

// PlanStore is the slice of the installment repository the service uses.
type PlanStore interface {
	GetByMembership(ctx context.Context, membershipID uint64) (*model.InstallmentPlan, error)
	GetByMembershipTx(ctx context.Context, tx *sql.Tx, membershipID uint64) (*model.InstallmentPlan, error)
	SetSlotTx(ctx context.Context, tx *sql.Tx, planID uint64, idx int, amount float64, due *time.Time, method string, locked bool) error
	MarkPaidTx(ctx context.Context, tx *sql.Tx, planID uint64, idx int) (bool, error)
	DeleteThirdTx(ctx context.Context, tx *sql.Tx, planID uint64, actor uint64, at time.Time) error
	RestoreThirdTx(ctx context.Context, tx *sql.Tx, planID uint64) error
}

// Service edits installment plans.
type Service struct {
	runner database.TxRunner
	plans  PlanStore
	clk    clock.Clock
	log    *slog.Logger
}

// New constructs the installment service.
func New(runner database.TxRunner, p PlanStore, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{runner: runner, plans: p, clk: clk, log: log}
}

// Get loads the plan attached to a membership request.  AllPaid and the
// total are derived by the model, never stored.
func (s *Service) Get(ctx context.Context, membershipID uint64) (*model.InstallmentPlan, error) {
	p, err := s.plans.GetByMembership(ctx, membershipID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, apperr.CodeNotFound, "no installment plan for this membership")
		}
		return nil, err
	}
	return p, nil
}

// SetSlot writes one slot's amount, due date and payment method.  The
// slot locks as part of the same write when the amount is positive.
// Locked slots and a soft-deleted third slot reject the edit.
func (s *Service) SetSlot(ctx context.Context, membershipID uint64, idx int, amount float64, due *time.Time, method string) (*model.InstallmentPlan, error) {
	if idx < 0 || idx > 2 {
		return nil, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "installment slot index must be 1..3")
	}
	if amount < 0 {
		return nil, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "amount cannot be negative")
	}

	var updated *model.InstallmentPlan
	err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		p, err := s.plans.GetByMembershipTx(ctx, tx, membershipID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, apperr.CodeNotFound, "no installment plan for this membership")
			}
			return err
		}
		if idx == 2 && p.ThirdDeleted {
			return apperr.E(apperr.Conflict, apperr.CodeThirdSlotDeleted, "third slot is deleted")
		}
		if p.Slots[idx].Locked {
			return apperr.E(apperr.Policy, apperr.CodeSlotLocked, "installment slot is locked")
		}
		lock := amount > 0
		if err := s.plans.SetSlotTx(ctx, tx, p.ID, idx, amount, due, method, lock); err != nil {
			if errors.Is(err, repository.ErrPreconditionFailed) {
				return apperr.E(apperr.Policy, apperr.CodeSlotLocked, "installment slot is locked")
			}
			return err
		}
		p.Slots[idx].Amount = amount
		p.Slots[idx].DueDate = due
		p.Slots[idx].PaymentMethod = method
		p.Slots[idx].Locked = lock
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkPaid flags a slot as paid.  Paying an already-paid slot is a
// no-op, not an error, so retried requests converge.
func (s *Service) MarkPaid(ctx context.Context, membershipID uint64, idx int) (*model.InstallmentPlan, error) {
	if idx < 0 || idx > 2 {
		return nil, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "installment slot index must be 1..3")
	}

	var updated *model.InstallmentPlan
	err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		p, err := s.plans.GetByMembershipTx(ctx, tx, membershipID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, apperr.CodeNotFound, "no installment plan for this membership")
			}
			return err
		}
		if idx == 2 && p.ThirdDeleted {
			return apperr.E(apperr.Conflict, apperr.CodeThirdSlotDeleted, "third slot is deleted")
		}
		changed, err := s.plans.MarkPaidTx(ctx, tx, p.ID, idx)
		if err != nil {
			return err
		}
		if !changed {
			s.log.DebugContext(ctx, "installment slot already paid",
				"membership_id", membershipID, "slot", idx+1)
		}
		p.Slots[idx].Paid = true
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteThird soft-deletes the third slot, recording who removed it and
// when.  A paid third slot cannot be deleted.
func (s *Service) DeleteThird(ctx context.Context, membershipID, actorID uint64) error {
	return s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		p, err := s.plans.GetByMembershipTx(ctx, tx, membershipID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, apperr.CodeNotFound, "no installment plan for this membership")
			}
			return err
		}
		if p.ThirdDeleted {
			return apperr.E(apperr.Conflict, apperr.CodeThirdSlotDeleted, "third slot already deleted")
		}
		if p.Slots[2].Paid {
			return apperr.E(apperr.Policy, apperr.CodeInvalidInput, "cannot delete a paid slot")
		}
		if err := s.plans.DeleteThirdTx(ctx, tx, p.ID, actorID, s.clk.Now()); err != nil {
			if errors.Is(err, repository.ErrPreconditionFailed) {
				return apperr.E(apperr.Conflict, apperr.CodeThirdSlotDeleted, "third slot already deleted")
			}
			return err
		}
		return nil
	})
}

// RestoreThird reverses the soft delete, bringing the slot back exactly
// as it was.
func (s *Service) RestoreThird(ctx context.Context, membershipID uint64) error {
	return s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		p, err := s.plans.GetByMembershipTx(ctx, tx, membershipID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, apperr.CodeNotFound, "no installment plan for this membership")
			}
			return err
		}
		if !p.ThirdDeleted {
			return apperr.E(apperr.Conflict, apperr.CodeThirdSlotPresent, "third slot is not deleted")
		}
		if err := s.plans.RestoreThirdTx(ctx, tx, p.ID); err != nil {
			if errors.Is(err, repository.ErrPreconditionFailed) {
				return apperr.E(apperr.Conflict, apperr.CodeThirdSlotPresent, "third slot is not deleted")
			}
			return err
		}
		return nil
	})
}
