package booking

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
	"github.com/fitops/gym-entitlement/internal/repository"
)

var now = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

type stubRunner struct{}

func (stubRunner) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type slotStoreMock struct {
	getFn       func(ctx context.Context, tx *sql.Tx, id uint64) (*model.ClassSlot, error)
	incrementFn func(ctx context.Context, tx *sql.Tx, id uint64) error
	decrementFn func(ctx context.Context, tx *sql.Tx, id uint64) error
	listFn      func(ctx context.Context, from time.Time) ([]model.ClassSlot, error)
	createFn    func(ctx context.Context, sc model.ServiceClass, title string, startsAt time.Time, capacity int) (uint64, error)
}

func (m *slotStoreMock) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.ClassSlot, error) {
	return m.getFn(ctx, tx, id)
}
func (m *slotStoreMock) IncrementBookedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	return m.incrementFn(ctx, tx, id)
}
func (m *slotStoreMock) DecrementBookedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	return m.decrementFn(ctx, tx, id)
}
func (m *slotStoreMock) ListUpcoming(ctx context.Context, from time.Time) ([]model.ClassSlot, error) {
	return m.listFn(ctx, from)
}
func (m *slotStoreMock) Create(ctx context.Context, sc model.ServiceClass, title string, startsAt time.Time, capacity int) (uint64, error) {
	return m.createFn(ctx, sc, title, startsAt, capacity)
}

type bookingStoreMock struct {
	insertFn       func(ctx context.Context, tx *sql.Tx, userID, slotID uint64, ledgerID *uint64, code string, at time.Time) (uint64, error)
	getTxFn        func(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	hasConfirmedFn func(ctx context.Context, tx *sql.Tx, userID, slotID uint64) (bool, error)
	cancelFn       func(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error
	listFn         func(ctx context.Context, userID uint64) ([]model.Booking, error)
}

func (m *bookingStoreMock) InsertTx(ctx context.Context, tx *sql.Tx, userID, slotID uint64, ledgerID *uint64, code string, at time.Time) (uint64, error) {
	return m.insertFn(ctx, tx, userID, slotID, ledgerID, code, at)
}
func (m *bookingStoreMock) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return m.getTxFn(ctx, tx, id)
}
func (m *bookingStoreMock) HasConfirmedTx(ctx context.Context, tx *sql.Tx, userID, slotID uint64) (bool, error) {
	return m.hasConfirmedFn(ctx, tx, userID, slotID)
}
func (m *bookingStoreMock) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	return m.cancelFn(ctx, tx, id, at)
}
func (m *bookingStoreMock) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return m.listFn(ctx, userID)
}

type membershipStoreMock struct {
	listFn func(ctx context.Context, tx *sql.Tx, userID uint64, today time.Time) ([]model.Membership, error)
}

func (m *membershipStoreMock) ListEffectiveByUserTx(ctx context.Context, tx *sql.Tx, userID uint64, today time.Time) ([]model.Membership, error) {
	return m.listFn(ctx, tx, userID, today)
}

type ledgerStoreMock struct {
	currentFn   func(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass) (*model.CreditLedgerEntry, error)
	decrementFn func(ctx context.Context, tx *sql.Tx, entryID uint64) error
	incrementFn func(ctx context.Context, tx *sql.Tx, entryID uint64) error
}

func (m *ledgerStoreMock) CurrentTx(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass) (*model.CreditLedgerEntry, error) {
	return m.currentFn(ctx, tx, userID, sc)
}
func (m *ledgerStoreMock) DecrementTx(ctx context.Context, tx *sql.Tx, entryID uint64) error {
	return m.decrementFn(ctx, tx, entryID)
}
func (m *ledgerStoreMock) IncrementTx(ctx context.Context, tx *sql.Tx, entryID uint64) error {
	return m.incrementFn(ctx, tx, entryID)
}

type publisherMock struct {
	published []string
}

func (p *publisherMock) Publish(ctx context.Context, queueName string, event any) error {
	p.published = append(p.published, queueName)
	return nil
}

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func openSlot() *model.ClassSlot {
	return &model.ClassSlot{
		ID: 5, ServiceClass: model.ServicePilatesClass, Title: "Morning Pilates",
		StartsAt: now.Add(4 * time.Hour), Capacity: 10, BookedCount: 3, IsActive: true,
	}
}

func effectivePilates() []model.Membership {
	end := clock.DateOf(now).AddDate(0, 0, 20)
	start := end.AddDate(0, 0, -30)
	return []model.Membership{{
		ID: 2, UserID: 7, PackageClass: model.PackagePilates,
		Status: model.MembershipApproved, IsActive: true,
		StartDate: &start, EndDate: &end,
	}}
}

func usableEntry() *model.CreditLedgerEntry {
	exp := now.Add(30 * 24 * time.Hour)
	return &model.CreditLedgerEntry{ID: 31, UserID: 7, ServiceClass: model.ServicePilatesClass,
		DepositRemaining: 4, ExpiresAt: &exp, IsActive: true}
}

func newService(sl *slotStoreMock, b *bookingStoreMock, m *membershipStoreMock, l *ledgerStoreMock, pub *publisherMock) *Service {
	return New(stubRunner{}, sl, b, m, l, pub, clock.Fixed{T: now}, testLogger())
}

func TestBookSpendsCreditAndTakesPlace(t *testing.T) {
	var (
		decremented uint64
		insertedLed *uint64
	)
	slots := &slotStoreMock{
		getFn:       func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return openSlot(), nil },
		incrementFn: func(context.Context, *sql.Tx, uint64) error { return nil },
	}
	bookings := &bookingStoreMock{
		hasConfirmedFn: func(context.Context, *sql.Tx, uint64, uint64) (bool, error) { return false, nil },
		insertFn: func(_ context.Context, _ *sql.Tx, userID, slotID uint64, ledgerID *uint64, code string, _ time.Time) (uint64, error) {
			require.Equal(t, uint64(7), userID)
			require.Equal(t, uint64(5), slotID)
			require.NotEmpty(t, code)
			insertedLed = ledgerID
			return 100, nil
		},
	}
	memberships := &membershipStoreMock{listFn: func(context.Context, *sql.Tx, uint64, time.Time) ([]model.Membership, error) {
		return effectivePilates(), nil
	}}
	ledgers := &ledgerStoreMock{
		currentFn: func(context.Context, *sql.Tx, uint64, model.ServiceClass) (*model.CreditLedgerEntry, error) {
			return usableEntry(), nil
		},
		decrementFn: func(_ context.Context, _ *sql.Tx, entryID uint64) error {
			decremented = entryID
			return nil
		},
	}
	pub := &publisherMock{}
	svc := newService(slots, bookings, memberships, ledgers, pub)

	b, err := svc.Book(context.Background(), 7, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(100), b.ID)
	require.Equal(t, model.BookingConfirmed, b.Status)
	require.Equal(t, uint64(31), decremented)
	require.NotNil(t, insertedLed)
	require.Equal(t, uint64(31), *insertedLed, "the booking must remember which entry it debited")
	require.Equal(t, []string{"booking.confirmed"}, pub.published)
}

func TestBookWithoutMembership(t *testing.T) {
	slots := &slotStoreMock{
		getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return openSlot(), nil },
	}
	memberships := &membershipStoreMock{listFn: func(context.Context, *sql.Tx, uint64, time.Time) ([]model.Membership, error) {
		return nil, nil
	}}
	svc := newService(slots, &bookingStoreMock{}, memberships, &ledgerStoreMock{}, &publisherMock{})

	_, err := svc.Book(context.Background(), 7, 5)
	require.True(t, apperr.IsCode(err, apperr.CodeNoActiveMembership))
	require.Equal(t, apperr.Policy, apperr.KindOf(err))
}

func TestBookWithoutCredits(t *testing.T) {
	slots := &slotStoreMock{
		getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return openSlot(), nil },
	}
	bookings := &bookingStoreMock{
		hasConfirmedFn: func(context.Context, *sql.Tx, uint64, uint64) (bool, error) { return false, nil },
	}
	memberships := &membershipStoreMock{listFn: func(context.Context, *sql.Tx, uint64, time.Time) ([]model.Membership, error) {
		return effectivePilates(), nil
	}}

	t.Run("no current entry", func(t *testing.T) {
		ledgers := &ledgerStoreMock{
			currentFn: func(context.Context, *sql.Tx, uint64, model.ServiceClass) (*model.CreditLedgerEntry, error) {
				return nil, repository.ErrNoCurrentEntry
			},
		}
		svc := newService(slots, bookings, memberships, ledgers, &publisherMock{})
		_, err := svc.Book(context.Background(), 7, 5)
		require.True(t, apperr.IsCode(err, apperr.CodeNoAvailableCredits))
		require.Equal(t, apperr.Conflict, apperr.KindOf(err), "retryable after re-reading state")
	})

	t.Run("raced to zero", func(t *testing.T) {
		ledgers := &ledgerStoreMock{
			currentFn: func(context.Context, *sql.Tx, uint64, model.ServiceClass) (*model.CreditLedgerEntry, error) {
				return usableEntry(), nil
			},
			decrementFn: func(context.Context, *sql.Tx, uint64) error {
				return repository.ErrPreconditionFailed
			},
		}
		svc := newService(slots, bookings, memberships, ledgers, &publisherMock{})
		_, err := svc.Book(context.Background(), 7, 5)
		require.True(t, apperr.IsCode(err, apperr.CodeNoAvailableCredits))
		require.Equal(t, apperr.Conflict, apperr.KindOf(err))
	})
}

func TestBookSlotFull(t *testing.T) {
	slots := &slotStoreMock{
		getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return openSlot(), nil },
		incrementFn: func(context.Context, *sql.Tx, uint64) error {
			return repository.ErrPreconditionFailed
		},
	}
	bookings := &bookingStoreMock{
		hasConfirmedFn: func(context.Context, *sql.Tx, uint64, uint64) (bool, error) { return false, nil },
	}
	memberships := &membershipStoreMock{listFn: func(context.Context, *sql.Tx, uint64, time.Time) ([]model.Membership, error) {
		return effectivePilates(), nil
	}}
	ledgers := &ledgerStoreMock{
		currentFn: func(context.Context, *sql.Tx, uint64, model.ServiceClass) (*model.CreditLedgerEntry, error) {
			return usableEntry(), nil
		},
		decrementFn: func(context.Context, *sql.Tx, uint64) error { return nil },
	}
	svc := newService(slots, bookings, memberships, ledgers, &publisherMock{})

	_, err := svc.Book(context.Background(), 7, 5)
	require.True(t, apperr.IsCode(err, apperr.CodeSlotFull))
	require.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestBookDuplicate(t *testing.T) {
	slots := &slotStoreMock{
		getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return openSlot(), nil },
	}
	bookings := &bookingStoreMock{
		hasConfirmedFn: func(context.Context, *sql.Tx, uint64, uint64) (bool, error) { return true, nil },
	}
	memberships := &membershipStoreMock{listFn: func(context.Context, *sql.Tx, uint64, time.Time) ([]model.Membership, error) {
		return effectivePilates(), nil
	}}
	svc := newService(slots, bookings, memberships, &ledgerStoreMock{}, &publisherMock{})

	_, err := svc.Book(context.Background(), 7, 5)
	require.True(t, apperr.IsCode(err, apperr.CodeAlreadyBooked))
}

func TestBookClosedSlot(t *testing.T) {
	t.Run("inactive", func(t *testing.T) {
		slot := openSlot()
		slot.IsActive = false
		slots := &slotStoreMock{getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return slot, nil }}
		svc := newService(slots, &bookingStoreMock{}, &membershipStoreMock{}, &ledgerStoreMock{}, &publisherMock{})
		_, err := svc.Book(context.Background(), 7, 5)
		require.True(t, apperr.IsCode(err, apperr.CodeSlotUnavailable))
	})

	t.Run("already started", func(t *testing.T) {
		slot := openSlot()
		slot.StartsAt = now.Add(-time.Minute)
		slots := &slotStoreMock{getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return slot, nil }}
		svc := newService(slots, &bookingStoreMock{}, &membershipStoreMock{}, &ledgerStoreMock{}, &publisherMock{})
		_, err := svc.Book(context.Background(), 7, 5)
		require.True(t, apperr.IsCode(err, apperr.CodeSlotUnavailable))
	})

	t.Run("unknown id", func(t *testing.T) {
		slots := &slotStoreMock{getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) {
			return nil, sql.ErrNoRows
		}}
		svc := newService(slots, &bookingStoreMock{}, &membershipStoreMock{}, &ledgerStoreMock{}, &publisherMock{})
		_, err := svc.Book(context.Background(), 7, 5)
		require.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})
}

func TestBookGymFloorSpendsNoCredit(t *testing.T) {
	slot := openSlot()
	slot.ServiceClass = model.ServiceGymFloor
	slots := &slotStoreMock{
		getFn:       func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return slot, nil },
		incrementFn: func(context.Context, *sql.Tx, uint64) error { return nil },
	}
	var insertedLed *uint64
	bookings := &bookingStoreMock{
		hasConfirmedFn: func(context.Context, *sql.Tx, uint64, uint64) (bool, error) { return false, nil },
		insertFn: func(_ context.Context, _ *sql.Tx, _, _ uint64, ledgerID *uint64, _ string, _ time.Time) (uint64, error) {
			insertedLed = ledgerID
			return 101, nil
		},
	}
	freeGym := effectivePilates()
	freeGym[0].PackageClass = model.PackageFreeGym
	memberships := &membershipStoreMock{listFn: func(context.Context, *sql.Tx, uint64, time.Time) ([]model.Membership, error) {
		return freeGym, nil
	}}
	ledgers := &ledgerStoreMock{
		currentFn: func(context.Context, *sql.Tx, uint64, model.ServiceClass) (*model.CreditLedgerEntry, error) {
			t.Fatal("ledger must not be touched for a time-based class")
			return nil, nil
		},
	}
	svc := newService(slots, bookings, memberships, ledgers, &publisherMock{})

	b, err := svc.Book(context.Background(), 7, 5)
	require.NoError(t, err)
	require.Nil(t, insertedLed)
	require.Nil(t, b.LedgerID)
}

func confirmedBooking() *model.Booking {
	led := uint64(31)
	return &model.Booking{ID: 100, UserID: 7, SlotID: 5, LedgerID: &led,
		Code: "c0ffee", Status: model.BookingConfirmed, CreatedAt: now.Add(-time.Hour)}
}

func TestCancelRestoresExactDebitedEntry(t *testing.T) {
	var restored uint64
	var freedSlot uint64
	slots := &slotStoreMock{
		getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return openSlot(), nil },
		decrementFn: func(_ context.Context, _ *sql.Tx, id uint64) error {
			freedSlot = id
			return nil
		},
	}
	bookings := &bookingStoreMock{
		getTxFn:  func(context.Context, *sql.Tx, uint64) (*model.Booking, error) { return confirmedBooking(), nil },
		cancelFn: func(context.Context, *sql.Tx, uint64, time.Time) error { return nil },
	}
	ledgers := &ledgerStoreMock{
		incrementFn: func(_ context.Context, _ *sql.Tx, entryID uint64) error {
			restored = entryID
			return nil
		},
	}
	pub := &publisherMock{}
	svc := newService(slots, bookings, &membershipStoreMock{}, ledgers, pub)

	require.NoError(t, svc.Cancel(context.Background(), 7, 100))
	require.Equal(t, uint64(31), restored)
	require.Equal(t, uint64(5), freedSlot)
	require.Equal(t, []string{"booking.cancelled"}, pub.published)
}

func TestCancelGuards(t *testing.T) {
	t.Run("not owner", func(t *testing.T) {
		bookings := &bookingStoreMock{
			getTxFn: func(context.Context, *sql.Tx, uint64) (*model.Booking, error) { return confirmedBooking(), nil },
		}
		svc := newService(&slotStoreMock{}, bookings, &membershipStoreMock{}, &ledgerStoreMock{}, &publisherMock{})
		err := svc.Cancel(context.Background(), 8, 100)
		require.True(t, apperr.IsCode(err, apperr.CodeNotOwner))
	})

	t.Run("already cancelled", func(t *testing.T) {
		b := confirmedBooking()
		b.Status = model.BookingCancelled
		bookings := &bookingStoreMock{
			getTxFn: func(context.Context, *sql.Tx, uint64) (*model.Booking, error) { return b, nil },
		}
		svc := newService(&slotStoreMock{}, bookings, &membershipStoreMock{}, &ledgerStoreMock{}, &publisherMock{})
		err := svc.Cancel(context.Background(), 7, 100)
		require.True(t, apperr.IsCode(err, apperr.CodeAlreadyCancelled))
	})

	t.Run("double cancel racing", func(t *testing.T) {
		slots := &slotStoreMock{
			getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return openSlot(), nil },
		}
		bookings := &bookingStoreMock{
			getTxFn: func(context.Context, *sql.Tx, uint64) (*model.Booking, error) { return confirmedBooking(), nil },
			cancelFn: func(context.Context, *sql.Tx, uint64, time.Time) error {
				return repository.ErrPreconditionFailed
			},
		}
		svc := newService(slots, bookings, &membershipStoreMock{}, &ledgerStoreMock{}, &publisherMock{})
		err := svc.Cancel(context.Background(), 7, 100)
		require.True(t, apperr.IsCode(err, apperr.CodeAlreadyCancelled))
	})

	t.Run("slot already started", func(t *testing.T) {
		slot := openSlot()
		slot.StartsAt = now.Add(-time.Hour)
		slots := &slotStoreMock{
			getFn: func(context.Context, *sql.Tx, uint64) (*model.ClassSlot, error) { return slot, nil },
		}
		bookings := &bookingStoreMock{
			getTxFn: func(context.Context, *sql.Tx, uint64) (*model.Booking, error) { return confirmedBooking(), nil },
		}
		svc := newService(slots, bookings, &membershipStoreMock{}, &ledgerStoreMock{}, &publisherMock{})
		err := svc.Cancel(context.Background(), 7, 100)
		require.True(t, apperr.IsCode(err, apperr.CodeSlotUnavailable))
	})

	t.Run("unknown booking", func(t *testing.T) {
		bookings := &bookingStoreMock{
			getTxFn: func(context.Context, *sql.Tx, uint64) (*model.Booking, error) { return nil, sql.ErrNoRows },
		}
		svc := newService(&slotStoreMock{}, bookings, &membershipStoreMock{}, &ledgerStoreMock{}, &publisherMock{})
		err := svc.Cancel(context.Background(), 7, 404)
		require.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})
}
