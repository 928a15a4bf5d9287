package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablevoice-service/internal/domain/organization"
	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrganizationRepository struct {
	db *pgxpool.Pool
}

func NewOrganizationRepository(db *pgxpool.Pool) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create inserts a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, o *organization.Organization) error {
	query := `
		INSERT INTO organizations (name, created_by)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, o.Name, o.CreatedBy).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// FindByID retrieves an organization by ID.
func (r *OrganizationRepository) FindByID(ctx context.Context, id int64) (*organization.Organization, error) {
	query := `SELECT id, name, created_by, created_at, updated_at FROM organizations WHERE id = $1`

	var o organization.Organization
	err := r.db.QueryRow(ctx, query, id).Scan(&o.ID, &o.Name, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	return &o, nil
}

// ListForUser lists every organization the user is a member of.
func (r *OrganizationRepository) ListForUser(ctx context.Context, userID int64) ([]*organization.Organization, error) {
	query := `
		SELECT o.id, o.name, o.created_by, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_memberships m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.created_at
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*organization.Organization
	for rows.Next() {
		var o organization.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, &o)
	}

	return orgs, rows.Err()
}

// UpdateName renames an organization.
func (r *OrganizationRepository) UpdateName(ctx context.Context, id int64, name string) error {
	result, err := r.db.Exec(ctx, `UPDATE organizations SET name = $1, updated_at = $2 WHERE id = $3`, name, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
