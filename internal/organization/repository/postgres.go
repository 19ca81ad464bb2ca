package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"tenant-control-plane/core/internal/organization/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrganizationByID returns the org for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error) {
	o := &domain.Org{}
	var settings []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_user_id, status, settings, created_at
		 FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.OwnerUserID, &o.Status, &settings, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &o.Settings); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// CreateOrganization persists the org. The org must have ID set.
func (r *PostgresRepository) CreateOrganization(ctx context.Context, o *domain.Org) error {
	settings, err := settingsJSON(o.Settings)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, owner_user_id, status, settings, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.Name, o.OwnerUserID, o.Status, settings, o.CreatedAt)
	return err
}

// UpdateOrganization updates name, owner, status, and settings for the org.
func (r *PostgresRepository) UpdateOrganization(ctx context.Context, o *domain.Org) error {
	settings, err := settingsJSON(o.Settings)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE organizations SET name = $2, owner_user_id = $3, status = $4, settings = $5
		 WHERE id = $1`,
		o.ID, o.Name, o.OwnerUserID, o.Status, settings)
	return err
}

// DeleteOrganization removes the org row; dependent rows cascade via foreign keys.
func (r *PostgresRepository) DeleteOrganization(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	return err
}

func settingsJSON(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
