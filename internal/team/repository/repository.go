package repository

import (
	"context"

	"tenant-control-plane/core/internal/team/domain"
)

// Repository defines persistence for teams. All queries are scoped by org or
// team ID; there is no unscoped listing.
type Repository interface {
	GetTeamByID(ctx context.Context, id string) (*domain.Team, error)
	GetRootTeamByOrg(ctx context.Context, orgID string) (*domain.Team, error)
	ListTeamsByOrg(ctx context.Context, orgID string) ([]*domain.Team, error)
	CreateTeam(ctx context.Context, t *domain.Team) error
	UpdateTeam(ctx context.Context, t *domain.Team) error
	// DeleteTeam removes the team; memberships cascade at the store level.
	DeleteTeam(ctx context.Context, id string) error
}
