package postgres

import (
	"context"
	"errors"
	"fmt"

	"tablevoice-service/internal/domain/organization"
	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InvitationRepository struct {
	db *pgxpool.Pool
}

func NewInvitationRepository(db *pgxpool.Pool) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create inserts a pending invitation.
func (r *InvitationRepository) Create(ctx context.Context, inv *organization.Invitation) error {
	query := `
		INSERT INTO organization_invitations (organization_id, email, role, status, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		inv.OrganizationID, inv.Email, inv.Role, inv.Status, inv.InvitedBy, inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

// FindByID retrieves an invitation.
func (r *InvitationRepository) FindByID(ctx context.Context, id int64) (*organization.Invitation, error) {
	query := `
		SELECT id, organization_id, email, role, status, invited_by, created_at, expires_at
		FROM organization_invitations
		WHERE id = $1
	`

	var inv organization.Invitation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Status,
		&inv.InvitedBy, &inv.CreatedAt, &inv.ExpiresAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}

	return &inv, nil
}

// FindPendingByOrgAndEmail finds an open invitation for an email address.
func (r *InvitationRepository) FindPendingByOrgAndEmail(ctx context.Context, orgID int64, email string) (*organization.Invitation, error) {
	query := `
		SELECT id, organization_id, email, role, status, invited_by, created_at, expires_at
		FROM organization_invitations
		WHERE organization_id = $1 AND email = $2 AND status = 'pending'
	`

	var inv organization.Invitation
	err := r.db.QueryRow(ctx, query, orgID, email).Scan(
		&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Status,
		&inv.InvitedBy, &inv.CreatedAt, &inv.ExpiresAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}

	return &inv, nil
}

// UpdateStatus transitions an invitation's status.
func (r *InvitationRepository) UpdateStatus(ctx context.Context, id int64, status organization.InvitationStatus) error {
	result, err := r.db.Exec(ctx, `UPDATE organization_invitations SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update invitation status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
