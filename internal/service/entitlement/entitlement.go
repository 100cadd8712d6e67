// Package entitlement answers "can this user act now".  Its predicates
// are pure functions of a membership or ledger row plus a time supplied
// by the caller; the Evaluator composes them over the repositories for
// the read-only status endpoint.  Nothing in this package mutates state,
// so it is safe to call arbitrarily often.
package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/fitops/gym-entitlement/internal/clock"
	"github.com/fitops/gym-entitlement/internal/model"
	"github.com/fitops/gym-entitlement/internal/repository"
)

// IsMembershipValid reports whether a membership is currently effective:
// approved, still active, not soft-deleted, and its end date has not
// passed.  Supersession and administrative deactivation both clear
// is_active, so a deactivated membership stops granting access even
// with a future end date.  The date comparison is made on calendar
// dates, never timestamps, so a membership ending today is valid for
// the whole of today.
func IsMembershipValid(m *model.Membership, today time.Time) bool {
	if m == nil || m.Status != model.MembershipApproved || !m.IsActive || m.DeletedAt != nil {
		return false
	}
	if m.EndDate == nil {
		return false
	}
	return !m.EndDate.Before(clock.DateOf(today))
}

// IsLedgerUsable reports whether a ledger entry can fund a booking right
// now: active, with credits remaining, and not expired.
func IsLedgerUsable(e *model.CreditLedgerEntry, now time.Time) bool {
	if e == nil || !e.IsActive || e.DepositRemaining <= 0 {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// Status is the result of an entitlement evaluation for one user and one
// service class.
type Status struct {
	MembershipValid  bool `json:"membership_valid"`
	DaysRemaining    int  `json:"days_remaining"`
	LedgerValid      bool `json:"ledger_valid"`
	DepositRemaining int  `json:"deposit_remaining"`
	CanAct           bool `json:"can_act"`
}

// MembershipSource lists a user's currently effective memberships.
type MembershipSource interface {
	ListEffectiveByUser(ctx context.Context, userID uint64, today time.Time) ([]model.Membership, error)
}

// LedgerSource loads a user's current ledger entry for a service class.
type LedgerSource interface {
	Current(ctx context.Context, userID uint64, sc model.ServiceClass) (*model.CreditLedgerEntry, error)
}

// Evaluator reads entitlement state.  It holds no locks and writes
// nothing; the booking transactor re-checks the same predicates inside
// its own transaction before spending a credit.
type Evaluator struct {
	memberships MembershipSource
	ledgers     LedgerSource
	clk         clock.Clock
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(m MembershipSource, l LedgerSource, clk clock.Clock) *Evaluator {
	return &Evaluator{memberships: m, ledgers: l, clk: clk}
}

// Evaluate returns the user's entitlement for one service class.
// CanAct requires a valid membership granting the class and, for
// credit-denominated classes, a usable ledger entry.
func (e *Evaluator) Evaluate(ctx context.Context, userID uint64, sc model.ServiceClass) (*Status, error) {
	now := e.clk.Now()
	today := clock.DateOf(now)

	memberships, err := e.memberships.ListEffectiveByUser(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	st := &Status{}
	for i := range memberships {
		m := &memberships[i]
		if !grantsClass(m.PackageClass, sc) || !IsMembershipValid(m, today) {
			continue
		}
		st.MembershipValid = true
		if d := int(m.EndDate.Sub(today).Hours() / 24); d > st.DaysRemaining {
			st.DaysRemaining = d
		}
	}

	if sc.RequiresDeposit() {
		entry, err := e.ledgers.Current(ctx, userID, sc)
		switch {
		case errors.Is(err, repository.ErrNoCurrentEntry):
			// no entry: ledger simply not usable
		case err != nil:
			return nil, err
		default:
			st.LedgerValid = IsLedgerUsable(entry, now)
			st.DepositRemaining = entry.DepositRemaining
		}
		st.CanAct = st.MembershipValid && st.LedgerValid
	} else {
		st.CanAct = st.MembershipValid
	}
	return st, nil
}

func grantsClass(p model.PackageClass, sc model.ServiceClass) bool {
	for _, g := range model.Grants(p) {
		if g == sc {
			return true
		}
	}
	return false
}
