package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tenant-control-plane/core/internal/activity/domain"
)

type memActivityRepo struct {
	mu      sync.Mutex
	records []*domain.ActivityRecord
	err     error
}

func (r *memActivityRepo) Create(ctx context.Context, a *domain.ActivityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, a)
	return nil
}

func (r *memActivityRepo) ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.ActivityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ActivityRecord
	for _, a := range r.records {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

func TestLogger_Record(t *testing.T) {
	repo := &memActivityRepo{}
	l := NewLogger(repo)
	l.nowF = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	l.Record(context.Background(), "org-1", "user-1", domain.ActionMemberAdded, "user-2 as member")

	if len(repo.records) != 1 {
		t.Fatalf("records = %d, want 1", len(repo.records))
	}
	rec := repo.records[0]
	if rec.ID == "" {
		t.Error("record ID should be set")
	}
	if rec.OrgID != "org-1" || rec.UserID != "user-1" {
		t.Errorf("record org/user = %s/%s", rec.OrgID, rec.UserID)
	}
	if rec.Action != domain.ActionMemberAdded {
		t.Errorf("action = %q", rec.Action)
	}
	if !rec.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("created_at = %v", rec.CreatedAt)
	}
}

func TestLogger_RecordBestEffort(t *testing.T) {
	repo := &memActivityRepo{err: errors.New("db down")}
	l := NewLogger(repo)

	// must not panic or propagate the error
	l.Record(context.Background(), "org-1", "user-1", domain.ActionOrgCreated, "")
}

func TestLogger_NilRepo(t *testing.T) {
	l := NewLogger(nil)
	l.Record(context.Background(), "org-1", "", domain.ActionOrgCreated, "")

	var nilLogger *Logger
	nilLogger.Record(context.Background(), "org-1", "", domain.ActionOrgCreated, "")
}
