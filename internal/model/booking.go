package model

import "time"

// BookingStatus is the state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking records one confirmed use of a class slot.  LedgerID remembers
// the ledger entry that was debited when the booking was made so that
// cancellation restores exactly that entry; it is nil for slots whose
// service class carries no deposit.
type Booking struct {
	ID          uint64        // bookings.id
	UserID      uint64        // bookings.user_id
	SlotID      uint64        // bookings.slot_id
	LedgerID    *uint64       // bookings.ledger_id (nullable)
	Code        string        // bookings.code – uuid shown at check-in
	Status      BookingStatus // bookings.status
	CreatedAt   time.Time     // bookings.created_at
	CancelledAt *time.Time    // bookings.cancelled_at
}
