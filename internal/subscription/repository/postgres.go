package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenant-control-plane/core/internal/subscription/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a subscription repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const subscriptionColumns = `id, org_id, status, trial_ends_at, grace_ends_at,
	failed_charges, cancelled_at, created_at, updated_at`

// GetLiveByOrg returns the org's non-cancelled subscription, or nil.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetLiveByOrg(ctx context.Context, orgID string) (*domain.Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE org_id = $1 AND status <> $2`,
		orgID, domain.StatusCancelled)
	return scanSubscription(row)
}

// Create persists the subscription. The subscription must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, org_id, status, trial_ends_at, grace_ends_at, failed_charges, cancelled_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.OrgID, s.Status, s.TrialEndsAt, s.GraceEndsAt, s.FailedCharges, s.CancelledAt, s.CreatedAt, s.UpdatedAt)
	return err
}

// Update persists status, windows, and counters for the subscription.
func (r *PostgresRepository) Update(ctx context.Context, s *domain.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $2, trial_ends_at = $3, grace_ends_at = $4,
		 failed_charges = $5, cancelled_at = $6, updated_at = $7
		 WHERE id = $1`,
		s.ID, s.Status, s.TrialEndsAt, s.GraceEndsAt, s.FailedCharges, s.CancelledAt, s.UpdatedAt)
	return err
}

// ListLapsed returns live subscriptions whose trial or grace window elapsed.
func (r *PostgresRepository) ListLapsed(ctx context.Context, now time.Time) ([]*domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE (status = $1 AND trial_ends_at <= $3)
		    OR (status = $2 AND grace_ends_at IS NOT NULL AND grace_ends_at <= $3)
		 ORDER BY org_id`,
		domain.StatusTrialing, domain.StatusGrace, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ApplyEvent records the event ID, locks the org's live subscription row, and
// commits the event row together with the outcome apply chooses. The insert
// deduplicates on conflict; when the ID is already recorded the transaction is
// abandoned and apply never runs. On any failure the rollback leaves the ID
// unrecorded, so the event can be redelivered.
func (r *PostgresRepository) ApplyEvent(ctx context.Context, eventID, orgID string, payload []byte, now time.Time,
	apply func(sub *domain.Subscription) (update bool, reviewReason string)) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO billing_events (id, org_id, status, payload, received_at)
		 VALUES ($1, $2, 'processed', $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		eventID, nullIfEmpty(orgID), payloadOrNull(payload), now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// duplicate delivery
		return false, nil
	}

	// FOR UPDATE serializes concurrent events for the same subscription.
	row := tx.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE org_id = $1 AND status <> $2 FOR UPDATE`,
		orgID, domain.StatusCancelled)
	sub, err := scanSubscription(row)
	if err != nil {
		return false, err
	}

	update, reason := apply(sub)
	switch {
	case reason != "":
		if _, err := tx.ExecContext(ctx,
			`UPDATE billing_events SET status = 'review', error = $2 WHERE id = $1`,
			eventID, reason); err != nil {
			return false, err
		}
	case update:
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET status = $2, trial_ends_at = $3, grace_ends_at = $4,
			 failed_charges = $5, cancelled_at = $6, updated_at = $7
			 WHERE id = $1`,
			sub.ID, sub.Status, sub.TrialEndsAt, sub.GraceEndsAt, sub.FailedCharges,
			sub.CancelledAt, sub.UpdatedAt); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

func scanSubscription(row interface{ Scan(dest ...any) error }) (*domain.Subscription, error) {
	s := &domain.Subscription{}
	var graceEndsAt, cancelledAt sql.NullTime
	err := row.Scan(&s.ID, &s.OrgID, &s.Status, &s.TrialEndsAt, &graceEndsAt,
		&s.FailedCharges, &cancelledAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if graceEndsAt.Valid {
		t := graceEndsAt.Time
		s.GraceEndsAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		s.CancelledAt = &t
	}
	return s, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func payloadOrNull(p []byte) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}
