package repository

import (
	"context"

	"tenant-control-plane/core/internal/membership/domain"
	"tenant-control-plane/core/internal/role"
)

// Repository defines persistence for memberships. Every operation takes
// explicit team or org IDs; there is no cross-tenant query path.
//
// RemoveMember and UpdateRole enforce the last-owner invariant inside the
// store so that concurrent demotions are serialized per team (row locks in
// Postgres, a store mutex in memory implementations). They return
// domain.ErrLastOwnerViolation when the operation would leave a non-empty
// team without an owner.
type Repository interface {
	GetByTeamAndUser(ctx context.Context, teamID, userID string) (*domain.Membership, error)
	// ListByTeam returns the team's memberships in insertion order.
	ListByTeam(ctx context.Context, teamID string) ([]*domain.Membership, error)
	// ListByOrgAndUser returns all memberships the user holds across the org's teams.
	ListByOrgAndUser(ctx context.Context, orgID, userID string) ([]*domain.Membership, error)
	// Create persists the membership; a duplicate (team, user) pair fails with
	// domain.ErrDuplicateMembership.
	Create(ctx context.Context, m *domain.Membership) error
	// RemoveMember deletes the membership. Fails with domain.ErrNotAMember when
	// absent and domain.ErrLastOwnerViolation when the user is the sole owner.
	RemoveMember(ctx context.Context, teamID, userID string) error
	// UpdateRole changes the member's role under the same last-owner guard.
	UpdateRole(ctx context.Context, teamID, userID string, newRole role.Role) (*domain.Membership, error)
	CountOwnersByTeam(ctx context.Context, teamID string) (int64, error)
}
