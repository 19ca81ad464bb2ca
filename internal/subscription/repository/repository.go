package repository

import (
	"context"
	"time"

	"tenant-control-plane/core/internal/subscription/domain"
)

// Repository defines persistence for subscriptions and the processed
// billing-event set used for idempotent event application.
type Repository interface {
	// GetLiveByOrg returns the org's non-cancelled subscription, or nil.
	GetLiveByOrg(ctx context.Context, orgID string) (*domain.Subscription, error)
	Create(ctx context.Context, s *domain.Subscription) error
	Update(ctx context.Context, s *domain.Subscription) error
	// ListLapsed returns live subscriptions whose trial or grace window has
	// elapsed as of now.
	ListLapsed(ctx context.Context, now time.Time) ([]*domain.Subscription, error)

	// ApplyEvent records the billing event ID and applies its outcome in one
	// transaction: apply receives the org's live subscription (nil when there
	// is none) and returns update to persist the mutated subscription, or a
	// non-empty review reason to park the event instead. Returns false without
	// invoking apply when the ID was already recorded; that is the dedup
	// signal for at-least-once delivery. A rollback leaves the ID unrecorded,
	// so a redelivery retries the whole event.
	ApplyEvent(ctx context.Context, eventID, orgID string, payload []byte, now time.Time,
		apply func(sub *domain.Subscription) (update bool, reviewReason string)) (bool, error)
}
