package domain

import (
	"errors"
	"time"
)

// Status is a subscription lifecycle state. The lifecycle is monotonic:
// cancelled is terminal and reactivation means creating a new subscription.
type Status string

const (
	StatusTrialing  Status = "trialing"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusGrace     Status = "grace"
	StatusCancelled Status = "cancelled"
)

// Subscription tracks the billing lifecycle of one organization. At most one
// live (non-cancelled) subscription exists per org.
type Subscription struct {
	ID            string
	OrgID         string
	Status        Status
	TrialEndsAt   time.Time
	GraceEndsAt   *time.Time
	FailedCharges int
	CancelledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the subscription has reached its final state.
func (s *Subscription) Terminal() bool {
	return s.Status == StatusCancelled
}

// Sentinel errors shared by the subscription store and service.
var (
	// ErrSubscriptionTerminal is returned when mutating a cancelled (or absent)
	// subscription.
	ErrSubscriptionTerminal = errors.New("subscription is cancelled")
	// ErrInvalidTransition is returned for a billing event that has no legal
	// transition from the current state.
	ErrInvalidTransition = errors.New("invalid subscription state transition")
)
