// Package apperr defines the engine's error taxonomy.  Every business
// failure is one of four kinds with a stable machine-readable code, so
// handlers can map errors to HTTP statuses and callers can branch on the
// code without string matching.
package apperr

import "errors"

// Kind classifies how an error should be treated by the caller.
type Kind int

const (
	// Validation: malformed input, rejected before any state is touched.
	Validation Kind = iota + 1
	// Conflict: a conditional update's precondition failed.  Safe to
	// retry after re-reading state; never retried internally.
	Conflict
	// NotFound: unknown identifier.
	NotFound
	// Policy: a business rule forbids the operation.
	Policy
)

// Code identifies a specific failure.
type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeNoActiveMembership Code = "NO_ACTIVE_MEMBERSHIP"
	CodeNoAvailableCredits Code = "NO_AVAILABLE_CREDITS"
	CodeSlotFull           Code = "SLOT_FULL"
	CodeSlotUnavailable    Code = "SLOT_UNAVAILABLE"
	CodeAlreadyBooked      Code = "ALREADY_BOOKED"
	CodeAlreadyCancelled   Code = "ALREADY_CANCELLED"
	CodeAlreadyFinalized   Code = "ALREADY_FINALIZED"
	CodeSlotLocked         Code = "SLOT_LOCKED"
	CodeThirdSlotDeleted   Code = "THIRD_SLOT_DELETED"
	CodeThirdSlotPresent   Code = "THIRD_SLOT_PRESENT"
	CodeNotOwner           Code = "NOT_OWNER"
	CodeNotFound           Code = "NOT_FOUND"
	CodeRetryConflict      Code = "RETRY_CONFLICT"
)

// Error carries the kind, the stable code and a human message.
type Error struct {
	Kind Kind
	Code Code
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a new Error.
func E(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap builds a new Error around a cause.
func Wrap(kind Kind, code Code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

// KindOf extracts the kind of an error, or 0 when err is not an apperr.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf extracts the code of an error, or "" when err is not an apperr.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, c Code) bool { return CodeOf(err) == c }
