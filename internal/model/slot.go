package model

import "time"

// ClassSlot is a bookable session of a service class with a fixed
// capacity.  BookedCount is maintained by conditional updates
// (`booked_count < capacity` on increment, `booked_count > 0` on
// decrement) so that concurrent bookings cannot overbook the slot.
type ClassSlot struct {
	ID           uint64       // class_slots.id
	ServiceClass ServiceClass // class_slots.service_class
	Title        string       // class_slots.title
	StartsAt     time.Time    // class_slots.starts_at (UTC)
	Capacity     int          // class_slots.capacity
	BookedCount  int          // class_slots.booked_count
	IsActive     bool         // class_slots.is_active
	CreatedAt    time.Time    // class_slots.created_at
}
