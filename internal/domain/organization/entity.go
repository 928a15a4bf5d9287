package organization

import (
	"time"

	"tablevoice-service/internal/authz"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
)

// Organization is a team account owning restaurants.
type Organization struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedBy int64     `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Membership links a user to an organization with an org-level role. The
// permission list mirrors what the role grants at the organization scope and
// drives dashboard visibility.
type Membership struct {
	ID             int64         `json:"id" db:"id"`
	UserID         int64         `json:"user_id" db:"user_id"`
	OrganizationID int64         `json:"organization_id" db:"organization_id"`
	Role           authz.OrgRole `json:"role" db:"role"`
	Permissions    []string      `json:"permissions" db:"permissions"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// Invitation is a pending offer for an email address to join an organization.
type Invitation struct {
	ID             int64            `json:"id" db:"id"`
	OrganizationID int64            `json:"organization_id" db:"organization_id"`
	Email          string           `json:"email" db:"email"`
	Role           authz.OrgRole    `json:"role" db:"role"`
	Status         InvitationStatus `json:"status" db:"status"`
	InvitedBy      int64            `json:"invited_by" db:"invited_by"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	ExpiresAt      time.Time        `json:"expires_at" db:"expires_at"`
}
