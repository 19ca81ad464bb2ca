package repository

import (
	"context"
	"time"

	"tenant-control-plane/core/internal/invitation/domain"
)

// Repository defines persistence for invitations.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Invitation, error)
	// GetPendingByTeamAndEmail returns the unredeemed, unexpired invitation for
	// (team, email) as of now, or nil.
	GetPendingByTeamAndEmail(ctx context.Context, teamID, email string, now time.Time) (*domain.Invitation, error)
	Create(ctx context.Context, i *domain.Invitation) error
	// Consume marks the invitation redeemed by userID iff it is still
	// unredeemed. Returns false when another redeemer already won; the
	// compare-and-swap is the single-winner guarantee.
	Consume(ctx context.Context, id, userID string, now time.Time) (bool, error)
	// Release undoes a Consume; used when membership creation fails after the
	// token was consumed.
	Release(ctx context.Context, id string) error
}
