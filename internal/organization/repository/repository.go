package repository

import (
	"context"

	"tenant-control-plane/core/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error)
	CreateOrganization(ctx context.Context, o *domain.Org) error
	UpdateOrganization(ctx context.Context, o *domain.Org) error
	// DeleteOrganization removes the org; teams, memberships, invitations,
	// and subscriptions cascade at the store level.
	DeleteOrganization(ctx context.Context, id string) error
}
