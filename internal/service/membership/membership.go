// Package membership implements the membership lifecycle: request,
// approve, reject, soft-delete, and the nightly expiration sweep.  All
// state transitions run inside a single transaction per operation;
// events are published only after the transaction commits.
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fitops/gym-entitlement/internal/apperr"
	"github.com/fitops/gym-entitlement/internal/clock"
	"github.com/fitops/gym-entitlement/internal/database"
	"github.com/fitops/gym-entitlement/internal/model"
	"github.com/fitops/gym-entitlement/internal/queue"
	"github.com/fitops/gym-entitlement/internal/repository"
)

// MembershipStore is the slice of the membership repository the service
// uses.  Methods suffixed Tx participate in the caller's transaction.
type MembershipStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, userID uint64, pkg model.PackageClass, dur model.DurationOption) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*model.Membership, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Membership, error)
	ApproveTx(ctx context.Context, tx *sql.Tx, id uint64, start, end time.Time, actor uint64, at time.Time) error
	RejectTx(ctx context.Context, tx *sql.Tx, id uint64, reason string) error
	DeactivatePriorTx(ctx context.Context, tx *sql.Tx, userID uint64, pkg model.PackageClass, exceptID uint64) ([]uint64, error)
	DeactivateTx(ctx context.Context, tx *sql.Tx, id uint64) error
	ListExpired(ctx context.Context, asOf time.Time) ([]model.Membership, error)
	ListEffectiveByUser(ctx context.Context, userID uint64, today time.Time) ([]model.Membership, error)
}

// LedgerStore is the slice of the ledger repository the service uses.
type LedgerStore interface {
	InsertTx(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass, amount int, expiresAt *time.Time, createdBy uint64, at time.Time) (uint64, error)
	DeactivateCurrentTx(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass, at time.Time) (int64, error)
}

// PlanStore creates installment plans alongside membership requests.
type PlanStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, membershipID uint64) (uint64, error)
}

// EventPublisher pushes domain events to the broker.  Publish failures
// are logged and never fail the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, queueName string, event any) error
}

// Service drives membership lifecycle transitions.
type Service struct {
	runner      database.TxRunner
	memberships MembershipStore
	ledgers     LedgerStore
	plans       PlanStore
	events      EventPublisher
	clk         clock.Clock
	log         *slog.Logger
}

// New constructs the membership service.
func New(runner database.TxRunner, m MembershipStore, l LedgerStore, p PlanStore, ev EventPublisher, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{runner: runner, memberships: m, ledgers: l, plans: p, events: ev, clk: clk, log: log}
}

// SubmitRequest records a pending membership request.  When
// withInstallments is set an empty three-slot payment plan is created in
// the same transaction; only Ultimate-tier packages may carry one.
func (s *Service) SubmitRequest(ctx context.Context, userID uint64, pkg model.PackageClass, dur model.DurationOption, withInstallments bool) (uint64, error) {
	if !pkg.Valid() {
		return 0, apperr.E(apperr.Validation, apperr.CodeInvalidInput, fmt.Sprintf("unknown package class %q", pkg))
	}
	if _, ok := dur.Days(); !ok {
		return 0, apperr.E(apperr.Validation, apperr.CodeInvalidInput, fmt.Sprintf("unknown duration option %q", dur))
	}
	if withInstallments && !model.AllowsInstallments(pkg) {
		return 0, apperr.E(apperr.Policy, apperr.CodeInvalidInput, fmt.Sprintf("package %s does not allow installment plans", pkg))
	}

	var id uint64
	err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.memberships.CreateTx(ctx, tx, userID, pkg, dur)
		if err != nil {
			return err
		}
		if withInstallments {
			if _, err := s.plans.CreateTx(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CascadeOutcome reports which coupled ledger deactivations succeeded.
// A failed cascade never rolls back the membership transition that
// triggered it; failures are surfaced here and logged for follow-up.
type CascadeOutcome struct {
	Deactivated []model.ServiceClass
	Failed      []model.ServiceClass
}

// Approve finalizes a pending request.  Inside one transaction it sets
// the membership window starting today, deactivates any prior active
// membership of the same package, invalidates the coupled ledger entries
// and seeds a fresh entry with the package's initial credits.  After
// commit a membership.approved event is published.
func (s *Service) Approve(ctx context.Context, membershipID, actorID uint64) (*model.Membership, error) {
	now := s.clk.Now()
	start := clock.DateOf(now)

	var approved *model.Membership
	err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		m, err := s.memberships.GetByIDTx(ctx, tx, membershipID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, apperr.CodeNotFound, "membership not found")
			}
			return err
		}
		if m.Status != model.MembershipPending {
			return apperr.E(apperr.Conflict, apperr.CodeAlreadyFinalized, "membership request already finalized")
		}

		days, _ := m.DurationOption.Days()
		end := start.AddDate(0, 0, days)
		if err := s.memberships.ApproveTx(ctx, tx, m.ID, start, end, actorID, now); err != nil {
			if errors.Is(err, repository.ErrPreconditionFailed) {
				return apperr.E(apperr.Conflict, apperr.CodeAlreadyFinalized, "membership request already finalized")
			}
			return err
		}

		prior, err := s.memberships.DeactivatePriorTx(ctx, tx, m.UserID, m.PackageClass, m.ID)
		if err != nil {
			return err
		}
		if len(prior) > 0 {
			s.log.InfoContext(ctx, "deactivated prior memberships on approval",
				"user_id", m.UserID, "package", m.PackageClass, "count", len(prior))
		}

		// Replace, never top up: any existing current entry for the
		// coupled classes is closed even when the new duration grants
		// no credits, so a superseded membership cannot leave an
		// orphaned active entry behind.
		credits := model.InitialCredits(m.PackageClass, m.DurationOption)
		expires := end.AddDate(0, 0, 1)
		for _, sc := range model.CoupledDeposits(m.PackageClass) {
			if _, err := s.ledgers.DeactivateCurrentTx(ctx, tx, m.UserID, sc, now); err != nil {
				return err
			}
			if credits > 0 {
				if _, err := s.ledgers.InsertTx(ctx, tx, m.UserID, sc, credits, &expires, actorID, now); err != nil {
					return err
				}
			}
		}

		m.Status = model.MembershipApproved
		m.StartDate = &start
		m.EndDate = &end
		m.ApprovedBy = &actorID
		m.ApprovedAt = &now
		m.IsActive = true
		approved = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishApproved(ctx, approved)
	return approved, nil
}

// Reject finalizes a pending request with a reason.  Terminal.
func (s *Service) Reject(ctx context.Context, membershipID uint64, reason string) error {
	return s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		m, err := s.memberships.GetByIDTx(ctx, tx, membershipID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, apperr.CodeNotFound, "membership not found")
			}
			return err
		}
		if m.Status != model.MembershipPending {
			return apperr.E(apperr.Conflict, apperr.CodeAlreadyFinalized, "membership request already finalized")
		}
		if err := s.memberships.RejectTx(ctx, tx, m.ID, reason); err != nil {
			if errors.Is(err, repository.ErrPreconditionFailed) {
				return apperr.E(apperr.Conflict, apperr.CodeAlreadyFinalized, "membership request already finalized")
			}
			return err
		}
		return nil
	})
}

// Deactivate soft-deletes a membership and cascades to its coupled
// ledger entries in the same transaction.
func (s *Service) Deactivate(ctx context.Context, membershipID uint64) (*CascadeOutcome, error) {
	now := s.clk.Now()
	outcome := &CascadeOutcome{}
	err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		m, err := s.memberships.GetByIDTx(ctx, tx, membershipID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, apperr.CodeNotFound, "membership not found")
			}
			return err
		}
		if err := s.memberships.DeactivateTx(ctx, tx, m.ID); err != nil {
			return err
		}
		s.cascadeTx(ctx, tx, m, now, outcome)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// cascadeTx deactivates the current ledger entries coupled to m's
// package.  Individual failures are recorded and logged but do not abort
// the enclosing transaction: losing a membership must never be blocked
// by a ledger row.
func (s *Service) cascadeTx(ctx context.Context, tx *sql.Tx, m *model.Membership, now time.Time, out *CascadeOutcome) {
	for _, sc := range model.CoupledDeposits(m.PackageClass) {
		if _, err := s.ledgers.DeactivateCurrentTx(ctx, tx, m.UserID, sc, now); err != nil {
			out.Failed = append(out.Failed, sc)
			s.log.ErrorContext(ctx, "cascade deactivation failed",
				"membership_id", m.ID, "user_id", m.UserID, "service_class", sc, "error", err)
			continue
		}
		out.Deactivated = append(out.Deactivated, sc)
	}
}

// SweepResult summarizes one run of the expiration sweep.
type SweepResult struct {
	Expired int
	Failed  int
}

// Sweep deactivates every approved membership whose end date has passed,
// cascading each one's ledger entries.  Each membership gets its own
// transaction so one bad record cannot stall the rest.
func (s *Service) Sweep(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	expired, err := s.memberships.ListExpired(ctx, clock.DateOf(asOf))
	if err != nil {
		return nil, err
	}
	res := &SweepResult{}
	for i := range expired {
		m := &expired[i]
		err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
			if err := s.memberships.DeactivateTx(ctx, tx, m.ID); err != nil {
				return err
			}
			s.cascadeTx(ctx, tx, m, asOf, &CascadeOutcome{})
			return nil
		})
		if err != nil {
			res.Failed++
			s.log.ErrorContext(ctx, "expiration sweep failed for membership",
				"membership_id", m.ID, "user_id", m.UserID, "error", err)
			continue
		}
		res.Expired++
	}
	s.log.InfoContext(ctx, "expiration sweep finished",
		"as_of", clock.DateOf(asOf).Format("2006-01-02"), "expired", res.Expired, "failed", res.Failed)
	return res, nil
}

// CreditDeposit is the manual admin crediting operation.  It replaces
// the user's current ledger entry for the service class with a fresh one
// holding the given amount.
func (s *Service) CreditDeposit(ctx context.Context, userID uint64, sc model.ServiceClass, amount int, expiresAt *time.Time, actorID uint64) (uint64, error) {
	if !sc.Valid() || !sc.RequiresDeposit() {
		return 0, apperr.E(apperr.Validation, apperr.CodeInvalidInput, fmt.Sprintf("service class %q has no credit ledger", sc))
	}
	if amount <= 0 {
		return 0, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "amount must be positive")
	}
	now := s.clk.Now()
	var entryID uint64
	err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.ledgers.DeactivateCurrentTx(ctx, tx, userID, sc, now); err != nil {
			return err
		}
		var err error
		entryID, err = s.ledgers.InsertTx(ctx, tx, userID, sc, amount, expiresAt, actorID, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return entryID, nil
}

// Get loads one membership by id.
func (s *Service) Get(ctx context.Context, id uint64) (*model.Membership, error) {
	m, err := s.memberships.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, apperr.CodeNotFound, "membership not found")
		}
		return nil, err
	}
	return m, nil
}

// ListEffective returns the user's currently effective memberships.
func (s *Service) ListEffective(ctx context.Context, userID uint64) ([]model.Membership, error) {
	return s.memberships.ListEffectiveByUser(ctx, userID, clock.Today(s.clk))
}

func (s *Service) publishApproved(ctx context.Context, m *model.Membership) {
	ev := queue.MembershipApprovedEvent{
		MessageID:    uuid.NewString(),
		MembershipID: m.ID,
		UserID:       m.UserID,
		PackageClass: string(m.PackageClass),
		StartDate:    m.StartDate.Format("2006-01-02"),
		EndDate:      m.EndDate.Format("2006-01-02"),
		ApprovedBy:   *m.ApprovedBy,
		ApprovedAt:   m.ApprovedAt.Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, queue.MembershipApprovedQueue, ev); err != nil {
		s.log.WarnContext(ctx, "failed to publish membership.approved", "membership_id", m.ID, "error", err)
	}
}
