package repository

import (
	"context"

	"tenant-control-plane/core/internal/activity/domain"
)

// Repository defines persistence for activity records. The log is append-only:
// there are deliberately no update or delete operations.
type Repository interface {
	Create(ctx context.Context, a *domain.ActivityRecord) error
	ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.ActivityRecord, error)
}
