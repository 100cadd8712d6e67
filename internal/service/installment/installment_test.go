package installment

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fitops/gym-entitlement/internal/apperr"
	"github.com/fitops/gym-entitlement/internal/clock"
	"github.com/fitops/gym-entitlement/internal/model"
)

var now = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

type stubRunner struct{}

func (stubRunner) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type planStoreMock struct {
	getFn          func(ctx context.Context, membershipID uint64) (*model.InstallmentPlan, error)
	getTxFn        func(ctx context.Context, tx *sql.Tx, membershipID uint64) (*model.InstallmentPlan, error)
	setSlotFn      func(ctx context.Context, tx *sql.Tx, planID uint64, idx int, amount float64, due *time.Time, method string, locked bool) error
	markPaidFn     func(ctx context.Context, tx *sql.Tx, planID uint64, idx int) (bool, error)
	deleteThirdFn  func(ctx context.Context, tx *sql.Tx, planID uint64, actor uint64, at time.Time) error
	restoreThirdFn func(ctx context.Context, tx *sql.Tx, planID uint64) error
}

func (m *planStoreMock) GetByMembership(ctx context.Context, membershipID uint64) (*model.InstallmentPlan, error) {
	return m.getFn(ctx, membershipID)
}
func (m *planStoreMock) GetByMembershipTx(ctx context.Context, tx *sql.Tx, membershipID uint64) (*model.InstallmentPlan, error) {
	return m.getTxFn(ctx, tx, membershipID)
}
func (m *planStoreMock) SetSlotTx(ctx context.Context, tx *sql.Tx, planID uint64, idx int, amount float64, due *time.Time, method string, locked bool) error {
	return m.setSlotFn(ctx, tx, planID, idx, amount, due, method, locked)
}
func (m *planStoreMock) MarkPaidTx(ctx context.Context, tx *sql.Tx, planID uint64, idx int) (bool, error) {
	return m.markPaidFn(ctx, tx, planID, idx)
}
func (m *planStoreMock) DeleteThirdTx(ctx context.Context, tx *sql.Tx, planID uint64, actor uint64, at time.Time) error {
	return m.deleteThirdFn(ctx, tx, planID, actor, at)
}
func (m *planStoreMock) RestoreThirdTx(ctx context.Context, tx *sql.Tx, planID uint64) error {
	return m.restoreThirdFn(ctx, tx, planID)
}

func newService(p *planStoreMock) *Service {
	return New(stubRunner{}, p, clock.Fixed{T: now}, slog.New(slog.DiscardHandler))
}

func emptyPlan() *model.InstallmentPlan {
	return &model.InstallmentPlan{ID: 1, MembershipID: 11}
}

func TestSetSlotLocksOnFirstWrite(t *testing.T) {
	var gotLocked bool
	plans := &planStoreMock{
		getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) {
			return emptyPlan(), nil
		},
		setSlotFn: func(_ context.Context, _ *sql.Tx, _ uint64, idx int, amount float64, _ *time.Time, method string, locked bool) error {
			require.Equal(t, 0, idx)
			require.Equal(t, 150.0, amount)
			require.Equal(t, "cash", method)
			gotLocked = locked
			return nil
		},
	}
	svc := newService(plans)

	due := now.AddDate(0, 1, 0)
	p, err := svc.SetSlot(context.Background(), 11, 0, 150, &due, "cash")
	require.NoError(t, err)
	require.True(t, gotLocked, "a positive amount locks the slot in the same write")
	require.True(t, p.Slots[0].Locked)
	require.Equal(t, 150.0, p.Slots[0].Amount)
}

func TestSetSlotZeroAmountDoesNotLock(t *testing.T) {
	plans := &planStoreMock{
		getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) {
			return emptyPlan(), nil
		},
		setSlotFn: func(_ context.Context, _ *sql.Tx, _ uint64, _ int, _ float64, _ *time.Time, _ string, locked bool) error {
			require.False(t, locked)
			return nil
		},
	}
	svc := newService(plans)

	p, err := svc.SetSlot(context.Background(), 11, 1, 0, nil, "")
	require.NoError(t, err)
	require.False(t, p.Slots[1].Locked)
}

func TestSetSlotRejectsLockedSlot(t *testing.T) {
	plan := emptyPlan()
	plan.Slots[0] = model.InstallmentSlot{Amount: 100, Locked: true}
	plans := &planStoreMock{
		getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) {
			return plan, nil
		},
	}
	svc := newService(plans)

	_, err := svc.SetSlot(context.Background(), 11, 0, 200, nil, "card")
	require.True(t, apperr.IsCode(err, apperr.CodeSlotLocked))
	require.Equal(t, apperr.Policy, apperr.KindOf(err), "a locked slot is a business rule, not a lost race")
}

func TestSetSlotRejectsDeletedThird(t *testing.T) {
	plan := emptyPlan()
	plan.ThirdDeleted = true
	plans := &planStoreMock{
		getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) {
			return plan, nil
		},
	}
	svc := newService(plans)

	_, err := svc.SetSlot(context.Background(), 11, 2, 50, nil, "cash")
	require.True(t, apperr.IsCode(err, apperr.CodeThirdSlotDeleted))
}

func TestSetSlotValidation(t *testing.T) {
	svc := newService(&planStoreMock{})

	_, err := svc.SetSlot(context.Background(), 11, 3, 50, nil, "cash")
	require.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = svc.SetSlot(context.Background(), 11, 0, -1, nil, "cash")
	require.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	plan := emptyPlan()
	plan.Slots[0] = model.InstallmentSlot{Amount: 100, Locked: true, Paid: true}
	plans := &planStoreMock{
		getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) {
			return plan, nil
		},
		markPaidFn: func(context.Context, *sql.Tx, uint64, int) (bool, error) {
			return false, nil // zero rows: already paid
		},
	}
	svc := newService(plans)

	p, err := svc.MarkPaid(context.Background(), 11, 0)
	require.NoError(t, err, "re-paying a paid slot converges instead of failing")
	require.True(t, p.Slots[0].Paid)
}

func TestDeleteThirdRecordsActor(t *testing.T) {
	var gotActor uint64
	plan := emptyPlan()
	plan.Slots[2] = model.InstallmentSlot{Amount: 50, Locked: true}
	plans := &planStoreMock{
		getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) {
			return plan, nil
		},
		deleteThirdFn: func(_ context.Context, _ *sql.Tx, _ uint64, actor uint64, at time.Time) error {
			gotActor = actor
			require.Equal(t, now, at)
			return nil
		},
	}
	svc := newService(plans)

	require.NoError(t, svc.DeleteThird(context.Background(), 11, 99))
	require.Equal(t, uint64(99), gotActor)
}

func TestDeleteThirdGuards(t *testing.T) {
	t.Run("already deleted", func(t *testing.T) {
		plan := emptyPlan()
		plan.ThirdDeleted = true
		plans := &planStoreMock{
			getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) { return plan, nil },
		}
		err := newService(plans).DeleteThird(context.Background(), 11, 99)
		require.True(t, apperr.IsCode(err, apperr.CodeThirdSlotDeleted))
	})

	t.Run("paid slot", func(t *testing.T) {
		plan := emptyPlan()
		plan.Slots[2] = model.InstallmentSlot{Amount: 50, Locked: true, Paid: true}
		plans := &planStoreMock{
			getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) { return plan, nil },
		}
		err := newService(plans).DeleteThird(context.Background(), 11, 99)
		require.Equal(t, apperr.Policy, apperr.KindOf(err))
	})
}

func TestRestoreThird(t *testing.T) {
	restored := false
	plan := emptyPlan()
	plan.ThirdDeleted = true
	plans := &planStoreMock{
		getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) { return plan, nil },
		restoreThirdFn: func(context.Context, *sql.Tx, uint64) error {
			restored = true
			return nil
		},
	}
	require.NoError(t, newService(plans).RestoreThird(context.Background(), 11))
	require.True(t, restored)
}

func TestRestoreThirdNotDeleted(t *testing.T) {
	plans := &planStoreMock{
		getTxFn: func(context.Context, *sql.Tx, uint64) (*model.InstallmentPlan, error) { return emptyPlan(), nil },
	}
	err := newService(plans).RestoreThird(context.Background(), 11)
	require.True(t, apperr.IsCode(err, apperr.CodeThirdSlotPresent))
}

func TestGetNotFound(t *testing.T) {
	plans := &planStoreMock{
		getFn: func(context.Context, uint64) (*model.InstallmentPlan, error) { return nil, sql.ErrNoRows },
	}
	_, err := newService(plans).Get(context.Background(), 11)
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
