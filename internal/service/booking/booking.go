// Package booking implements the booking transactor: atomically spend a
// credit and take a place in a class slot, and the inverse on cancel.
// Every decision that gates a write is re-made inside the transaction;
// the HTTP-level entitlement check is advisory only.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fitops/gym-entitlement/internal/apperr"
	"github.com/fitops/gym-entitlement/internal/clock"
	"github.com/fitops/gym-entitlement/internal/database"
	"github.com/fitops/gym-entitlement/internal/model"
	"github.com/fitops/gym-entitlement/internal/queue"
	"github.com/fitops/gym-entitlement/internal/repository"
	"github.com/fitops/gym-entitlement/internal/service/entitlement"
)

// SlotStore is the slice of the slot repository the transactor uses.
type SlotStore interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.ClassSlot, error)
	IncrementBookedTx(ctx context.Context, tx *sql.Tx, id uint64) error
	DecrementBookedTx(ctx context.Context, tx *sql.Tx, id uint64) error
	ListUpcoming(ctx context.Context, from time.Time) ([]model.ClassSlot, error)
	Create(ctx context.Context, sc model.ServiceClass, title string, startsAt time.Time, capacity int) (uint64, error)
}

// BookingStore is the slice of the booking repository the transactor uses.
type BookingStore interface {
	InsertTx(ctx context.Context, tx *sql.Tx, userID, slotID uint64, ledgerID *uint64, code string, at time.Time) (uint64, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	HasConfirmedTx(ctx context.Context, tx *sql.Tx, userID, slotID uint64) (bool, error)
	CancelTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// MembershipStore checks effective memberships inside the transaction.
type MembershipStore interface {
	ListEffectiveByUserTx(ctx context.Context, tx *sql.Tx, userID uint64, today time.Time) ([]model.Membership, error)
}

// LedgerStore moves credits inside the transaction.
type LedgerStore interface {
	CurrentTx(ctx context.Context, tx *sql.Tx, userID uint64, sc model.ServiceClass) (*model.CreditLedgerEntry, error)
	DecrementTx(ctx context.Context, tx *sql.Tx, entryID uint64) error
	IncrementTx(ctx context.Context, tx *sql.Tx, entryID uint64) error
}

// EventPublisher pushes booking events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, queueName string, event any) error
}

// Service books and cancels class slots.
type Service struct {
	runner      database.TxRunner
	slots       SlotStore
	bookings    BookingStore
	memberships MembershipStore
	ledgers     LedgerStore
	events      EventPublisher
	clk         clock.Clock
	log         *slog.Logger
}

// New constructs the booking service.
func New(runner database.TxRunner, sl SlotStore, b BookingStore, m MembershipStore, l LedgerStore, ev EventPublisher, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{runner: runner, slots: sl, bookings: b, memberships: m, ledgers: l, events: ev, clk: clk, log: log}
}

// Book reserves a place in a slot for the user.  Inside one transaction
// it verifies the slot is open, the user holds an effective membership
// granting the slot's service class, the user is not already booked, and
// then spends a credit (when the class is credit-denominated) and takes
// a place.  Both mutations are conditional updates, so two users racing
// for the last place or the last credit cannot both win.
func (s *Service) Book(ctx context.Context, userID, slotID uint64) (*model.Booking, error) {
	now := s.clk.Now()
	today := clock.DateOf(now)

	var (
		booked *model.Booking
		slot   *model.ClassSlot
		ev     queue.BookingConfirmedEvent
	)
	err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		var err error
		slot, err = s.slots.GetByIDTx(ctx, tx, slotID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, apperr.CodeNotFound, "slot not found")
			}
			return err
		}
		if !slot.IsActive || !slot.StartsAt.After(now) {
			return apperr.E(apperr.Policy, apperr.CodeSlotUnavailable, "slot is closed for booking")
		}

		memberships, err := s.memberships.ListEffectiveByUserTx(ctx, tx, userID, today)
		if err != nil {
			return err
		}
		if !anyGrants(memberships, slot.ServiceClass, today) {
			return apperr.E(apperr.Policy, apperr.CodeNoActiveMembership, "no effective membership grants this class")
		}

		dup, err := s.bookings.HasConfirmedTx(ctx, tx, userID, slotID)
		if err != nil {
			return err
		}
		if dup {
			return apperr.E(apperr.Conflict, apperr.CodeAlreadyBooked, "already booked for this slot")
		}

		var ledgerID *uint64
		var remaining *int
		if slot.ServiceClass.RequiresDeposit() {
			entry, err := s.ledgers.CurrentTx(ctx, tx, userID, slot.ServiceClass)
			if err != nil {
				if errors.Is(err, repository.ErrNoCurrentEntry) {
					return apperr.E(apperr.Conflict, apperr.CodeNoAvailableCredits, "no available credits")
				}
				return err
			}
			// Retryable after re-reading state, like any failed
			// conditional update on the ledger.
			if !entitlement.IsLedgerUsable(entry, now) {
				return apperr.E(apperr.Conflict, apperr.CodeNoAvailableCredits, "no available credits")
			}
			if err := s.ledgers.DecrementTx(ctx, tx, entry.ID); err != nil {
				if errors.Is(err, repository.ErrPreconditionFailed) {
					return apperr.E(apperr.Conflict, apperr.CodeNoAvailableCredits, "no available credits")
				}
				return err
			}
			ledgerID = &entry.ID
			left := entry.DepositRemaining - 1
			remaining = &left
		}

		if err := s.slots.IncrementBookedTx(ctx, tx, slotID); err != nil {
			if errors.Is(err, repository.ErrPreconditionFailed) {
				return apperr.E(apperr.Conflict, apperr.CodeSlotFull, "slot is full")
			}
			return err
		}

		code := uuid.NewString()
		id, err := s.bookings.InsertTx(ctx, tx, userID, slotID, ledgerID, code, now)
		if err != nil {
			return err
		}
		booked = &model.Booking{
			ID: id, UserID: userID, SlotID: slotID, LedgerID: ledgerID,
			Code: code, Status: model.BookingConfirmed, CreatedAt: now,
		}
		ev = queue.BookingConfirmedEvent{
			MessageID:        uuid.NewString(),
			BookingID:        id,
			Code:             code,
			UserID:           userID,
			SlotID:           slotID,
			SlotTitle:        slot.Title,
			ServiceClass:     string(slot.ServiceClass),
			StartsAt:         slot.StartsAt.Format(time.RFC3339),
			DepositRemaining: remaining,
			ConfirmedAt:      now.Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.Publish(ctx, queue.BookingConfirmedQueue, ev); err != nil {
		s.log.WarnContext(ctx, "failed to publish booking.confirmed", "booking_id", booked.ID, "error", err)
	}
	return booked, nil
}

// Cancel releases a booking: the slot place is freed and, when a credit
// was spent, exactly the ledger entry that was debited is restored, even
// if that entry has since been deactivated.
func (s *Service) Cancel(ctx context.Context, userID, bookingID uint64) error {
	now := s.clk.Now()

	var ev queue.BookingCancelledEvent
	err := s.runner.RunTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, apperr.CodeNotFound, "booking not found")
			}
			return err
		}
		if b.UserID != userID {
			return apperr.E(apperr.Policy, apperr.CodeNotOwner, "booking belongs to another user")
		}
		if b.Status == model.BookingCancelled {
			return apperr.E(apperr.Conflict, apperr.CodeAlreadyCancelled, "booking already cancelled")
		}

		slot, err := s.slots.GetByIDTx(ctx, tx, b.SlotID)
		if err != nil {
			return err
		}
		if !slot.StartsAt.After(now) {
			return apperr.E(apperr.Policy, apperr.CodeSlotUnavailable, "slot already started")
		}

		if err := s.bookings.CancelTx(ctx, tx, b.ID, now); err != nil {
			if errors.Is(err, repository.ErrPreconditionFailed) {
				return apperr.E(apperr.Conflict, apperr.CodeAlreadyCancelled, "booking already cancelled")
			}
			return err
		}
		if b.LedgerID != nil {
			if err := s.ledgers.IncrementTx(ctx, tx, *b.LedgerID); err != nil {
				return err
			}
		}
		if err := s.slots.DecrementBookedTx(ctx, tx, b.SlotID); err != nil {
			return err
		}
		ev = queue.BookingCancelledEvent{
			MessageID:   uuid.NewString(),
			BookingID:   b.ID,
			UserID:      b.UserID,
			SlotID:      b.SlotID,
			CancelledAt: now.Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.events.Publish(ctx, queue.BookingCancelledQueue, ev); err != nil {
		s.log.WarnContext(ctx, "failed to publish booking.cancelled", "booking_id", ev.BookingID, "error", err)
	}
	return nil
}

// ListMine returns the user's bookings, newest first.
func (s *Service) ListMine(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// ListSlots returns upcoming open slots.
func (s *Service) ListSlots(ctx context.Context) ([]model.ClassSlot, error) {
	return s.slots.ListUpcoming(ctx, s.clk.Now())
}

// CreateSlot publishes a new bookable slot.  Admin only.
func (s *Service) CreateSlot(ctx context.Context, sc model.ServiceClass, title string, startsAt time.Time, capacity int) (uint64, error) {
	if !sc.Valid() {
		return 0, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "unknown service class")
	}
	if capacity <= 0 {
		return 0, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "capacity must be positive")
	}
	if !startsAt.After(s.clk.Now()) {
		return 0, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "slot must start in the future")
	}
	return s.slots.Create(ctx, sc, title, startsAt.UTC(), capacity)
}

func anyGrants(memberships []model.Membership, sc model.ServiceClass, today time.Time) bool {
	for i := range memberships {
		m := &memberships[i]
		if !entitlement.IsMembershipValid(m, today) {
			continue
		}
		for _, g := range model.Grants(m.PackageClass) {
			if g == sc {
				return true
			}
		}
	}
	return false
}
