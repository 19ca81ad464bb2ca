package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenant-control-plane/core/internal/invitation/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an invitation repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const invitationColumns = `id, org_id, team_id, email, role, token_hash, invited_by,
	expires_at, redeemed_at, COALESCE(redeemed_by::text, ''), created_at`

// GetByID returns the invitation for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id)
	return scanInvitation(row)
}

// GetPendingByTeamAndEmail returns the unredeemed, unexpired invitation for
// (team, email), or nil.
func (r *PostgresRepository) GetPendingByTeamAndEmail(ctx context.Context, teamID, email string, now time.Time) (*domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE team_id = $1 AND email = $2 AND redeemed_at IS NULL AND expires_at > $3
		 ORDER BY created_at DESC LIMIT 1`,
		teamID, email, now)
	return scanInvitation(row)
}

// Create persists the invitation. The invitation must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Invitation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (id, org_id, team_id, email, role, token_hash, invited_by, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		i.ID, i.OrgID, i.TeamID, i.Email, i.Role, i.TokenHash, i.InvitedBy, i.ExpiresAt, i.CreatedAt)
	return err
}

// Consume marks the invitation redeemed iff still unredeemed. The conditional
// UPDATE is the compare-and-swap that guarantees a single winner under
// concurrent redemption.
func (r *PostgresRepository) Consume(ctx context.Context, id, userID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET redeemed_at = $3, redeemed_by = $2
		 WHERE id = $1 AND redeemed_at IS NULL`,
		id, userID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release undoes a Consume after a failed membership creation.
func (r *PostgresRepository) Release(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET redeemed_at = NULL, redeemed_by = NULL WHERE id = $1`, id)
	return err
}

func scanInvitation(row interface{ Scan(dest ...any) error }) (*domain.Invitation, error) {
	i := &domain.Invitation{}
	var redeemedAt sql.NullTime
	err := row.Scan(&i.ID, &i.OrgID, &i.TeamID, &i.Email, &i.Role, &i.TokenHash,
		&i.InvitedBy, &i.ExpiresAt, &redeemedAt, &i.RedeemedBy, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if redeemedAt.Valid {
		t := redeemedAt.Time
		i.RedeemedAt = &t
	}
	return i, nil
}
