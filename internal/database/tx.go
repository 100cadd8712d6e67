package database

import (
	"context"
	"database/sql"
)

// TxRunner executes a function inside a database transaction.  Services
// depend on this interface instead of *sql.DB directly so unit tests can
// substitute a runner that invokes the function without a live database.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// SQLRunner is the production TxRunner over a *sql.DB.
type SQLRunner struct {
	DB *sql.DB
}

// RunTx begins a transaction, runs fn, and commits.  Any error from fn
// (or from commit) rolls the transaction back, so a failed precondition
// anywhere inside fn leaves no partial writes.
func (r SQLRunner) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
