// Package clock supplies the single canonical time source for the
// engine.  Every component that needs "now" or "today" receives a Clock
// so that two components can never disagree about the current calendar
// date, and tests can pin time wherever they need it.
package clock

import "time"

// Clock yields the current instant.  Implementations must return UTC.
type Clock interface {
	Now() time.Time
}

// Real is the production clock backed by the system time.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed is a test clock pinned to a single instant.
type Fixed struct {
	T time.Time
}

// Now returns the pinned instant in UTC.
func (f Fixed) Now() time.Time { return f.T.UTC() }

// Today truncates the clock's current instant to a UTC calendar date
// (midnight).  Date comparisons throughout the engine are made on these
// values, never on raw timestamps, to avoid off-by-one errors around
// midnight.
func Today(c Clock) time.Time {
	return DateOf(c.Now())
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ISOWeek returns the ISO 8601 year and week number of the clock's
// current date.  The refill job keys its idempotency records on this
// pair.
func ISOWeek(t time.Time) (year, week int) {
	return t.UTC().ISOWeek()
}
