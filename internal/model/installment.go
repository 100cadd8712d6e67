package model

import "time"

// InstallmentSlot is one of the three staged-payment slots of a plan.
// A slot locks the first time its amount is set above zero and can only
// be edited again after an explicit administrative unlock (not exposed
// by this engine).
type InstallmentSlot struct {
	Amount        float64    // amount_N
	DueDate       *time.Time // due_date_N (nullable)
	PaymentMethod string     // payment_method_N ("cash", "card", ...)
	Locked        bool       // locked_N
	Paid          bool       // paid_N
}

// InstallmentPlan holds the staged payments bound to one membership
// request.  The third slot can be soft-deleted; a deleted slot is
// excluded from totals and from AllPaid but retained for audit.
type InstallmentPlan struct {
	ID             uint64             // installment_plans.id
	MembershipID   uint64             // installment_plans.membership_id
	Slots          [3]InstallmentSlot // the three ordered payment slots
	ThirdDeleted   bool               // installment_plans.third_deleted
	ThirdDeletedAt *time.Time         // installment_plans.third_deleted_at
	ThirdDeletedBy *uint64            // installment_plans.third_deleted_by
	CreatedAt      time.Time          // installment_plans.created_at
	UpdatedAt      time.Time          // installment_plans.updated_at
}

// AllPaid reports whether every non-deleted slot has been paid.  An
// unused slot counts as outstanding until it is paid off or, for the
// third, soft-deleted; plans with fewer than three installments settle
// by deleting the third slot.  It is always derived, never stored.
func (p *InstallmentPlan) AllPaid() bool {
	for i, s := range p.Slots {
		if i == 2 && p.ThirdDeleted {
			continue
		}
		if !s.Paid {
			return false
		}
	}
	return true
}

// Total returns the sum of the non-deleted slot amounts.
func (p *InstallmentPlan) Total() float64 {
	var sum float64
	for i, s := range p.Slots {
		if i == 2 && p.ThirdDeleted {
			continue
		}
		sum += s.Amount
	}
	return sum
}
