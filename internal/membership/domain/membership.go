package domain

import (
	"errors"
	"time"

	"tenant-control-plane/core/internal/role"
)

// Membership links a user to a team with a role. A (team, user) pair holds at
// most one membership; a team with members always keeps at least one owner.
type Membership struct {
	ID        string
	TeamID    string
	OrgID     string
	UserID    string
	Role      role.Role
	CreatedAt time.Time
}

// Sentinel errors shared by the membership store and service.
var (
	// ErrDuplicateMembership is returned when a (team, user) membership already exists.
	ErrDuplicateMembership = errors.New("membership already exists")
	// ErrLastOwnerViolation is returned when removing or demoting the sole owner of a team.
	ErrLastOwnerViolation = errors.New("cannot remove or demote the last owner of a team")
	// ErrNotAMember is returned when a user holds no membership in the team.
	ErrNotAMember = errors.New("user is not a member of the team")
)
