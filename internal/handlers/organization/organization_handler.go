package organization

import (
	"net/http"
	"strconv"

	"tablevoice-service/internal/domain/organization"
	"tablevoice-service/internal/middleware"
	"tablevoice-service/internal/pkg/response"
	orgService "tablevoice-service/internal/service/organization"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrganizationHandler struct {
	orgService *orgService.OrganizationService
	logger     *zap.Logger
}

func NewOrganizationHandler(svc *orgService.OrganizationService, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		orgService: svc,
		logger:     logger,
	}
}

// Create creates an organization with the caller as first admin.
func (h *OrganizationHandler) Create(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req organization.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	org, err := h.orgService.Create(c.Request.Context(), identityID, &req)
	if err != nil {
		response.FromError(c, "failed to create organization", err)
		return
	}

	response.Success(c, http.StatusCreated, "organization created", org)
}

// List lists the caller's organizations.
func (h *OrganizationHandler) List(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	orgs, err := h.orgService.ListMine(c.Request.Context(), identityID)
	if err != nil {
		response.FromError(c, "failed to list organizations", err)
		return
	}

	response.Success(c, http.StatusOK, "organizations", orgs)
}

// Get returns one organization.
func (h *OrganizationHandler) Get(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	orgID, ok := pathID(c, "orgID")
	if !ok {
		return
	}

	org, err := h.orgService.Get(c.Request.Context(), identityID, orgID)
	if err != nil {
		response.FromError(c, "failed to load organization", err)
		return
	}

	response.Success(c, http.StatusOK, "organization", org)
}

// Rename changes the organization name.
func (h *OrganizationHandler) Rename(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	orgID, ok := pathID(c, "orgID")
	if !ok {
		return
	}

	var req organization.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.orgService.Rename(c.Request.Context(), identityID, orgID, req.Name); err != nil {
		response.FromError(c, "failed to rename organization", err)
		return
	}

	response.Success(c, http.StatusOK, "organization renamed", nil)
}

// ListMembers lists an organization's members.
func (h *OrganizationHandler) ListMembers(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	orgID, ok := pathID(c, "orgID")
	if !ok {
		return
	}

	members, err := h.orgService.ListMembers(c.Request.Context(), identityID, orgID)
	if err != nil {
		response.FromError(c, "failed to list members", err)
		return
	}

	response.Success(c, http.StatusOK, "members", members)
}

// InviteMember creates and emails an invitation.
func (h *OrganizationHandler) InviteMember(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	orgID, ok := pathID(c, "orgID")
	if !ok {
		return
	}

	var req organization.InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	inv, err := h.orgService.InviteMember(c.Request.Context(), identityID, orgID, &req)
	if err != nil {
		response.FromError(c, "failed to invite member", err)
		return
	}

	response.Success(c, http.StatusCreated, "invitation sent", inv)
}

// RevokeInvitation withdraws a pending invitation.
func (h *OrganizationHandler) RevokeInvitation(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	orgID, ok := pathID(c, "orgID")
	if !ok {
		return
	}
	invitationID, ok := pathID(c, "invitationID")
	if !ok {
		return
	}

	if err := h.orgService.RevokeInvitation(c.Request.Context(), identityID, orgID, invitationID); err != nil {
		response.FromError(c, "failed to revoke invitation", err)
		return
	}

	response.Success(c, http.StatusOK, "invitation revoked", nil)
}

// InvitationDetails resolves an invitation token for the join page. Public.
func (h *OrganizationHandler) InvitationDetails(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.ValidationError(c, "token is required", nil)
		return
	}

	details, err := h.orgService.InvitationDetails(c.Request.Context(), token)
	if err != nil {
		response.FromError(c, "failed to resolve invitation", err)
		return
	}

	response.Success(c, http.StatusOK, "invitation", details)
}

// AcceptInvitation redeems an invitation for the authenticated caller.
func (h *OrganizationHandler) AcceptInvitation(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req organization.AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	member, err := h.orgService.AcceptInvitation(c.Request.Context(), identityID, req.Token)
	if err != nil {
		response.FromError(c, "failed to accept invitation", err)
		return
	}

	response.Success(c, http.StatusOK, "invitation accepted", member)
}

// UpdateMemberRole changes a member's organization role.
func (h *OrganizationHandler) UpdateMemberRole(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	orgID, ok := pathID(c, "orgID")
	if !ok {
		return
	}
	memberUserID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	var req organization.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	member, err := h.orgService.UpdateMemberRole(c.Request.Context(), identityID, orgID, memberUserID, req.Role)
	if err != nil {
		response.FromError(c, "failed to update member role", err)
		return
	}

	response.Success(c, http.StatusOK, "member role updated", member)
}

// RemoveMember drops a member from the organization.
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	orgID, ok := pathID(c, "orgID")
	if !ok {
		return
	}
	memberUserID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	if err := h.orgService.RemoveMember(c.Request.Context(), identityID, orgID, memberUserID); err != nil {
		response.FromError(c, "failed to remove member", err)
		return
	}

	response.Success(c, http.StatusOK, "member removed", nil)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ValidationError(c, "invalid "+name, err)
		return 0, false
	}
	return id, true
}
