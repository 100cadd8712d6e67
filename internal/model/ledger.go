package model

import "time"

// CreditLedgerEntry is a countable balance of service uses for one user
// and one service class.  At most one entry per (user, service class) is
// current (is_active); older entries are kept for audit.
//
// DepositRemaining can never go negative: every decrement is a
// conditional update guarded by the current value.
type CreditLedgerEntry struct {
	ID               uint64       // credit_ledger_entries.id
	UserID           uint64       // credit_ledger_entries.user_id
	ServiceClass     ServiceClass // credit_ledger_entries.service_class
	DepositRemaining int          // credit_ledger_entries.deposit_remaining
	ExpiresAt        *time.Time   // credit_ledger_entries.expires_at (nullable)
	IsActive         bool         // credit_ledger_entries.is_active
	CreatedBy        uint64       // credit_ledger_entries.created_by (crediting actor)
	CreditedAt       time.Time    // credit_ledger_entries.credited_at
	DeactivatedAt    *time.Time   // credit_ledger_entries.deactivated_at
}

// RefillRecord marks that the weekly refill already ran for a user in a
// given ISO week.  Its presence makes re-runs of the job no-ops.
type RefillRecord struct {
	ID           uint64    // refill_records.id
	UserID       uint64    // refill_records.user_id
	ISOYear      int       // refill_records.iso_year
	ISOWeek      int       // refill_records.iso_week
	TargetAmount int       // refill_records.target_amount
	AppliedAt    time.Time // refill_records.applied_at
}
