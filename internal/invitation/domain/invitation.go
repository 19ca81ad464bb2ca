package domain

import (
	"errors"
	"time"

	"tenant-control-plane/core/internal/role"
)

// Invitation grants future membership in a team to an email address. The raw
// token is returned once at issue time; only its hash is stored. A token is
// single-use: redemption consumes it with a compare-and-swap so exactly one
// concurrent redeemer wins.
type Invitation struct {
	ID         string
	OrgID      string
	TeamID     string
	Email      string
	Role       role.Role
	TokenHash  string
	InvitedBy  string
	ExpiresAt  time.Time
	RedeemedAt *time.Time
	RedeemedBy string
	CreatedAt  time.Time
}

// Redeemed reports whether the invitation token has been consumed.
func (i *Invitation) Redeemed() bool {
	return i.RedeemedAt != nil
}

// Expired reports whether the invitation is past its expiry at the given time.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Sentinel errors shared by the invitation store and service.
var (
	// ErrDuplicateInvitation is returned when an unexpired, unredeemed
	// invitation for the same (team, email) already exists.
	ErrDuplicateInvitation = errors.New("pending invitation already exists")
	// ErrInvitationNotFound is returned for unknown or unverifiable tokens.
	ErrInvitationNotFound = errors.New("invitation not found")
	// ErrInvitationExpired is returned when redeeming past the expiry.
	ErrInvitationExpired = errors.New("invitation expired")
	// ErrAlreadyRedeemed is returned when the token was already consumed.
	ErrAlreadyRedeemed = errors.New("invitation already redeemed")
)
