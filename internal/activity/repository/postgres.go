package repository

import (
	"context"
	"database/sql"

	"tenant-control-plane/core/internal/activity/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an activity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create appends one activity record.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.ActivityRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, org_id, user_id, action, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.OrgID, nullIfEmpty(a.UserID), a.Action, a.Detail, a.CreatedAt)
	return err
}

// ListByOrg returns activity records for the given org, newest first,
// paginated by limit and offset. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.ActivityRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, COALESCE(user_id::text, ''), action, detail, created_at
		 FROM activity_log WHERE org_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ActivityRecord
	for rows.Next() {
		a := &domain.ActivityRecord{}
		if err := rows.Scan(&a.ID, &a.OrgID, &a.UserID, &a.Action, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
