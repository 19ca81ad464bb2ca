package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"tenant-control-plane/core/internal/team/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a team repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const teamColumns = `id, org_id, name, is_root, settings, created_at`

// GetTeamByID returns the team for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetTeamByID(ctx context.Context, id string) (*domain.Team, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
	return scanTeam(row)
}

// GetRootTeamByOrg returns the org's root team, or nil if the org does not exist.
func (r *PostgresRepository) GetRootTeamByOrg(ctx context.Context, orgID string) (*domain.Team, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE org_id = $1 AND is_root`, orgID)
	return scanTeam(row)
}

// ListTeamsByOrg returns all teams for the given org in creation order.
func (r *PostgresRepository) ListTeamsByOrg(ctx context.Context, orgID string) ([]*domain.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE org_id = $1 ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTeam persists the team. The team must have ID set.
func (r *PostgresRepository) CreateTeam(ctx context.Context, t *domain.Team) error {
	settings, err := settingsJSON(t.Settings)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO teams (id, org_id, name, is_root, settings, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.OrgID, t.Name, t.IsRoot, settings, t.CreatedAt)
	return err
}

// UpdateTeam updates name and settings for the team.
func (r *PostgresRepository) UpdateTeam(ctx context.Context, t *domain.Team) error {
	settings, err := settingsJSON(t.Settings)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE teams SET name = $2, settings = $3 WHERE id = $1`,
		t.ID, t.Name, settings)
	return err
}

// DeleteTeam removes the team row; memberships cascade via foreign keys.
func (r *PostgresRepository) DeleteTeam(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (*domain.Team, error) {
	t := &domain.Team{}
	var settings []byte
	err := row.Scan(&t.ID, &t.OrgID, &t.Name, &t.IsRoot, &settings, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func settingsJSON(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
