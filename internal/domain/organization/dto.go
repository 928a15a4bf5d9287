package organization

import "tablevoice-service/internal/authz"

type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

type InviteMemberRequest struct {
	Email string        `json:"email" binding:"required,email"`
	Role  authz.OrgRole `json:"role" binding:"required"`
}

type InvitationDetailsRequest struct {
	Token string `json:"token" binding:"required"`
}

// InvitationDetails is what the join page renders before the user accepts.
type InvitationDetails struct {
	InvitationID     int64            `json:"invitation_id"`
	OrganizationID   int64            `json:"organization_id"`
	OrganizationName string           `json:"organization_name"`
	Email            string           `json:"email"`
	Role             authz.OrgRole    `json:"role"`
	Status           InvitationStatus `json:"status"`
}

type AcceptInvitationRequest struct {
	Token string `json:"token" binding:"required"`
}

type UpdateMemberRoleRequest struct {
	Role authz.OrgRole `json:"role" binding:"required"`
}
