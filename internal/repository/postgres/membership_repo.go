package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/organization"
	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MembershipRepository struct {
	db *pgxpool.Pool
}

func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create inserts a membership. Fails with ErrConflict when the user already
// belongs to the organization.
func (r *MembershipRepository) Create(ctx context.Context, m *organization.Membership) error {
	query := `
		INSERT INTO organization_memberships (user_id, organization_id, role, permissions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, organization_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		m.UserID, m.OrganizationID, m.Role, m.Permissions,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}

	return nil
}

// FindByUserAndOrg retrieves a user's membership in one organization.
func (r *MembershipRepository) FindByUserAndOrg(ctx context.Context, userID, orgID int64) (*organization.Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, permissions, created_at, updated_at
		FROM organization_memberships
		WHERE user_id = $1 AND organization_id = $2
	`

	var m organization.Membership
	err := r.db.QueryRow(ctx, query, userID, orgID).Scan(
		&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.Permissions, &m.CreatedAt, &m.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}

	return &m, nil
}

// RoleOf resolves the organization role for the authorizer.
func (r *MembershipRepository) RoleOf(ctx context.Context, userID, orgID int64) (authz.OrgRole, error) {
	var role authz.OrgRole
	err := r.db.QueryRow(
		ctx,
		`SELECT role FROM organization_memberships WHERE user_id = $1 AND organization_id = $2`,
		userID, orgID,
	).Scan(&role)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", xerrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve membership role: %w", err)
	}

	return role, nil
}

// ListByOrg lists every membership of an organization.
func (r *MembershipRepository) ListByOrg(ctx context.Context, orgID int64) ([]*organization.Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, permissions, created_at, updated_at
		FROM organization_memberships
		WHERE organization_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*organization.Membership
	for rows.Next() {
		var m organization.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.Permissions, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, &m)
	}

	return memberships, rows.Err()
}

// ListForUserOrgs returns the ids of every organization the user belongs to.
func (r *MembershipRepository) ListForUserOrgs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT organization_id FROM organization_memberships WHERE user_id = $1 ORDER BY organization_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user organizations: %w", err)
	}
	defer rows.Close()

	var orgIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan organization id: %w", err)
		}
		orgIDs = append(orgIDs, id)
	}

	return orgIDs, rows.Err()
}

// UpdateRole changes a member's organization role.
func (r *MembershipRepository) UpdateRole(ctx context.Context, id int64, role authz.OrgRole, permissions []string) error {
	query := `
		UPDATE organization_memberships
		SET role = $1, permissions = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.Exec(ctx, query, role, permissions, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// Delete removes a membership.
func (r *MembershipRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM organization_memberships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
