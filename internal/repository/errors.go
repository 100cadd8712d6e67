// Package repository implements persistence for the engine's owned
// tables over database/sql.  Methods suffixed Tx run inside a caller
// supplied transaction; services own transaction boundaries.  Sentinel
// values below let services distinguish failure scenarios without
// string matching; they are translated to the apperr taxonomy at the
// service layer.
package repository

import "errors"

// ErrNoCurrentEntry is returned when a user has no active ledger entry
// for the requested service class.
var ErrNoCurrentEntry = errors.New("no current ledger entry")

// ErrPreconditionFailed is returned when a conditional update affected
// zero rows: the guarded value (remaining credits, slot capacity, row
// status) changed between read and write.  Services surface it as a
// retryable conflict; it is never retried down here.
var ErrPreconditionFailed = errors.New("precondition failed")
