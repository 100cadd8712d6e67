// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  One durable queue per event type.
const (
	MembershipApprovedQueue = "membership.approved"
	BookingConfirmedQueue   = "booking.confirmed"
	BookingCancelledQueue   = "booking.cancelled"
)

// MembershipApprovedEvent is published when an admin approves a
// membership request.  It carries enough for downstream consumers to
// notify the member without querying the primary database.
type MembershipApprovedEvent struct {
	MessageID    string `json:"message_id"`
	MembershipID uint64 `json:"membership_id"`
	UserID       uint64 `json:"user_id"`
	PackageClass string `json:"package_class"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	ApprovedBy   uint64 `json:"approved_by"`
	ApprovedAt   string `json:"approved_at"`
}

// BookingConfirmedEvent is published when a slot booking commits.
type BookingConfirmedEvent struct {
	MessageID        string `json:"message_id"`
	BookingID        uint64 `json:"booking_id"`
	Code             string `json:"code"`
	UserID           uint64 `json:"user_id"`
	SlotID           uint64 `json:"slot_id"`
	SlotTitle        string `json:"slot_title"`
	ServiceClass     string `json:"service_class"`
	StartsAt         string `json:"starts_at"`
	DepositRemaining *int   `json:"deposit_remaining,omitempty"`
	ConfirmedAt      string `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a booking is cancelled and its
// credit restored.
type BookingCancelledEvent struct {
	MessageID   string `json:"message_id"`
	BookingID   uint64 `json:"booking_id"`
	UserID      uint64 `json:"user_id"`
	SlotID      uint64 `json:"slot_id"`
	CancelledAt string `json:"cancelled_at"`
}
