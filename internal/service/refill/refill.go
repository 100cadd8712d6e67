// Package refill implements the weekly credit refill for Ultimate-tier
// memberships.  The refill is an absolute reset to the package's weekly
// target, never an addition, and it is idempotent per user and ISO week:
// a refill record written in the same transaction as the reset makes
// re-runs no-ops.
package refill

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/fitops/gym-entitlement/internal/clock"
	"github.com/fitops/gym-entitlement/internal/database"
	"github.com/fitops/gym-entitlement/internal/model"
	"github.com/fitops/gym-entitlement/internal/repository"
)

// MembershipSource lists memberships due for a refill.
type MembershipSource interface {
	ListRefillCandidates(ctx context.Context, pkgs []model.PackageClass, asOf time.Time) ([]model.Membership, error)
}

// LedgerStore resets or seeds ledger entries inside the transaction.
type LedgerStore interface {
	CurrentTx(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass) (*model.CreditLedgerEntry, error)
	InsertTx(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass, amount int, expiresAt *time.Time, createdBy uint64, at time.Time) (uint64, error)
	ResetTx(ctx context.Context, tx *sql.Tx, entryID uint64, amount int) error
}

// RefillStore reads and writes the idempotency records.
type RefillStore interface {
	ExistsTx(ctx context.Context, tx *sql.Tx, userID uint64, isoYear, isoWeek int) (bool, error)
	InsertTx(ctx context.Context, tx *sql.Tx, userID uint64, isoYear, isoWeek, target int, at time.Time) error
}

// Result summarizes one refill run.
type Result struct {
	Processed int
	Skipped   int
	Failed    int
}

// Service runs the weekly refill.
type Service struct {
	runner      database.TxRunner
	memberships MembershipSource
	ledgers     LedgerStore
	refills     RefillStore
	enabled     bool
	log         *slog.Logger
}

// New constructs the refill service.  When enabled is false Run is a
// no-op; the gate exists so the job can be shipped dark.
func New(runner database.TxRunner, m MembershipSource, l LedgerStore, r RefillStore, enabled bool, log *slog.Logger) *Service {
	return &Service{runner: runner, memberships: m, ledgers: l, refills: r, enabled: enabled, log: log}
}

// refillable lists the packages participating in the weekly refill.
var refillable = []model.PackageClass{model.PackageUltimate, model.PackageUltimateMedium}

// Run resets the pilates ledger of every user holding an effective
// Ultimate-tier membership to the package's weekly target.  Each user
// gets their own transaction; a duplicate run in the same ISO week
// processes nobody.
func (s *Service) Run(ctx context.Context, asOf time.Time) (*Result, error) {
	res := &Result{}
	if !s.enabled {
		s.log.InfoContext(ctx, "weekly refill disabled, skipping run")
		return res, nil
	}

	isoYear, isoWeek := clock.ISOWeek(asOf)
	candidates, err := s.memberships.ListRefillCandidates(ctx, refillable, clock.DateOf(asOf))
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		m := &candidates[i]
		target, ok := model.WeeklyTarget(m.PackageClass)
		if !ok {
			continue
		}
		// Counters move only after RunTx returns, so a failed commit
		// counts the user as failed and nothing else.
		var skipped bool
		err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
			done, err := s.refills.ExistsTx(ctx, tx, m.UserID, isoYear, isoWeek)
			if err != nil {
				return err
			}
			if done {
				skipped = true
				return nil
			}
			if err := s.applyTx(ctx, tx, m, target, asOf); err != nil {
				return err
			}
			return s.refills.InsertTx(ctx, tx, m.UserID, isoYear, isoWeek, target, asOf)
		})
		switch {
		case err != nil:
			res.Failed++
			s.log.ErrorContext(ctx, "refill failed for user",
				"user_id", m.UserID, "membership_id", m.ID, "error", err)
		case skipped:
			res.Skipped++
		default:
			res.Processed++
		}
	}

	s.log.InfoContext(ctx, "weekly refill finished",
		"iso_year", isoYear, "iso_week", isoWeek,
		"processed", res.Processed, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// applyTx resets the user's current pilates entry to the target, or
// seeds a fresh entry when none is active.  The seeded entry expires
// with the membership, one day past its end date.
func (s *Service) applyTx(ctx context.Context, tx *sql.Tx, m *model.Membership, target int, asOf time.Time) error {
	entry, err := s.ledgers.CurrentTx(ctx, tx, m.UserID, model.ServicePilatesClass)
	switch {
	case errors.Is(err, repository.ErrNoCurrentEntry):
		var expires *time.Time
		if m.EndDate != nil {
			e := m.EndDate.AddDate(0, 0, 1)
			expires = &e
		}
		_, err = s.ledgers.InsertTx(ctx, tx, m.UserID, model.ServicePilatesClass, target, expires, 0, asOf)
		return err
	case err != nil:
		return err
	default:
		return s.ledgers.ResetTx(ctx, tx, entry.ID, target)
	}
}
