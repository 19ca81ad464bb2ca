package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"tenant-control-plane/core/internal/membership/domain"
	"tenant-control-plane/core/internal/role"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const membershipColumns = `id, team_id, org_id, user_id, role, created_at`

// GetByTeamAndUser returns the membership for the given team and user, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTeamAndUser(ctx context.Context, teamID, userID string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE team_id = $1 AND user_id = $2`,
		teamID, userID)
	return scanMembership(row)
}

// ListByTeam returns all memberships for the given team in insertion order.
func (r *PostgresRepository) ListByTeam(ctx context.Context, teamID string) ([]*domain.Membership, error) {
	return r.list(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE team_id = $1 ORDER BY created_at, id`,
		teamID)
}

// ListByOrgAndUser returns all memberships the user holds across the org's teams.
func (r *PostgresRepository) ListByOrgAndUser(ctx context.Context, orgID, userID string) ([]*domain.Membership, error) {
	return r.list(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE org_id = $1 AND user_id = $2 ORDER BY created_at, id`,
		orgID, userID)
}

// Create persists the membership. A duplicate (team, user) pair fails with
// domain.ErrDuplicateMembership via the unique constraint.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, team_id, org_id, user_id, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.TeamID, m.OrgID, m.UserID, m.Role, m.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateMembership
	}
	return err
}

// RemoveMember deletes the membership inside a transaction that locks the
// team's owner rows, so two concurrent removals cannot both pass the
// last-owner check.
func (r *PostgresRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := lockMembership(ctx, tx, teamID, userID)
	if err != nil {
		return err
	}
	if current.Role == role.Owner {
		owners, err := lockOwners(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return domain.ErrLastOwnerViolation
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memberships WHERE team_id = $1 AND user_id = $2`, teamID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateRole changes the member's role under the same last-owner guard as RemoveMember.
func (r *PostgresRepository) UpdateRole(ctx context.Context, teamID, userID string, newRole role.Role) (*domain.Membership, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := lockMembership(ctx, tx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if current.Role == role.Owner && newRole != role.Owner {
		owners, err := lockOwners(ctx, tx, teamID)
		if err != nil {
			return nil, err
		}
		if owners <= 1 {
			return nil, domain.ErrLastOwnerViolation
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE memberships SET role = $3 WHERE team_id = $1 AND user_id = $2`,
		teamID, userID, newRole); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	current.Role = newRole
	return current, nil
}

// CountOwnersByTeam returns the number of owner memberships in the team.
func (r *PostgresRepository) CountOwnersByTeam(ctx context.Context, teamID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM memberships WHERE team_id = $1 AND role = $2`,
		teamID, role.Owner).Scan(&n)
	return n, err
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		m := &domain.Membership{}
		if err := rows.Scan(&m.ID, &m.TeamID, &m.OrgID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func lockMembership(ctx context.Context, tx *sql.Tx, teamID, userID string) (*domain.Membership, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships
		 WHERE team_id = $1 AND user_id = $2 FOR UPDATE`,
		teamID, userID)
	m, err := scanMembership(row)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotAMember
	}
	return m, nil
}

// lockOwners locks every owner row of the team and returns their count.
// Serializes concurrent last-owner checks for the team.
func lockOwners(ctx context.Context, tx *sql.Tx, teamID string) (int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM memberships WHERE team_id = $1 AND role = $2 FOR UPDATE`,
		teamID, role.Owner)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		n++
	}
	return n, rows.Err()
}

func scanMembership(row interface{ Scan(dest ...any) error }) (*domain.Membership, error) {
	m := &domain.Membership{}
	err := row.Scan(&m.ID, &m.TeamID, &m.OrgID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}
