// Package activity records the append-only tenant activity trail.
package activity

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"tenant-control-plane/core/internal/activity/domain"
	activityrepo "tenant-control-plane/core/internal/activity/repository"
)

// Recorder writes a single activity record. Used by all mutating code paths.
// Record is best-effort: failures are logged and do not affect the caller.
type Recorder interface {
	Record(ctx context.Context, orgID, userID, action, detail string)
}

// Logger implements Recorder using the activity repository.
type Logger struct {
	repo activityrepo.Repository
	nowF func() time.Time
}

// NewLogger returns a Recorder that persists to repo.
func NewLogger(repo activityrepo.Repository) *Logger {
	return &Logger{repo: repo, nowF: func() time.Time { return time.Now().UTC() }}
}

// Record appends one activity record. Best-effort: errors are logged and not returned.
func (l *Logger) Record(ctx context.Context, orgID, userID, action, detail string) {
	if l == nil || l.repo == nil {
		return
	}
	entry := &domain.ActivityRecord{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		UserID:    userID,
		Action:    action,
		Detail:    detail,
		CreatedAt: l.nowF(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("activity: failed to record %s for org %s: %v", action, orgID, err)
	}
}

// Noop is a Recorder that discards all records. Used when no store is wired.
type Noop struct{}

func (Noop) Record(context.Context, string, string, string, string) {}
