package model

import "time"

// MembershipStatus is the lifecycle state of a membership record.  A row
// is created PENDING by a member request and moves to APPROVED or
// REJECTED exactly once; REJECTED is terminal.
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "PENDING"
	MembershipApproved MembershipStatus = "APPROVED"
	MembershipRejected MembershipStatus = "REJECTED"
)

// Membership is a time-bounded grant of a package to a user.
//
// StartDate and EndDate are calendar dates (UTC, midnight) and are only
// set when the request is approved.  IsActive is a denormalized flag
// maintained by the registry; the authoritative "currently effective"
// predicate is status==APPROVED, deleted_at IS NULL and end_date>=today,
// evaluated by the entitlement package.
type Membership struct {
	ID             uint64           // memberships.id
	UserID         uint64           // memberships.user_id
	PackageClass   PackageClass     // memberships.package_class
	DurationOption DurationOption   // memberships.duration_option
	StartDate      *time.Time       // memberships.start_date (nullable until approval)
	EndDate        *time.Time       // memberships.end_date (nullable until approval)
	Status         MembershipStatus // memberships.status
	IsActive       bool             // memberships.is_active
	ApprovedBy     *uint64          // memberships.approved_by
	ApprovedAt     *time.Time       // memberships.approved_at
	RejectedReason *string          // memberships.rejected_reason
	DeletedAt      *time.Time       // memberships.deleted_at
	CreatedAt      time.Time        // memberships.created_at
	UpdatedAt      time.Time        // memberships.updated_at
}
