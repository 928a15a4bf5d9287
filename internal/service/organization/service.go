package organization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/identity"
	"tablevoice-service/internal/domain/organization"
	xerrors "tablevoice-service/internal/pkg/errors"
	"tablevoice-service/internal/pkg/jwt"
	"tablevoice-service/internal/service/email"

	"go.uber.org/zap"
)

// OrgPermissions is the permission list mirrored onto memberships per org
// role. Admins additionally bypass the restaurant axis inside the authorizer.
func OrgPermissions(role authz.OrgRole) []string {
	if authz.IsOrgAdmin(role) {
		return []string{
			authz.PermOrgRestaurantCreate,
			authz.PermOrgRestaurantUpdate,
			authz.PermOrgRestaurantDelete,
		}
	}
	return []string{}
}

type OrganizationStore interface {
	Create(ctx context.Context, o *organization.Organization) error
	FindByID(ctx context.Context, id int64) (*organization.Organization, error)
	ListForUser(ctx context.Context, userID int64) ([]*organization.Organization, error)
	UpdateName(ctx context.Context, id int64, name string) error
}

type MembershipStore interface {
	Create(ctx context.Context, m *organization.Membership) error
	FindByUserAndOrg(ctx context.Context, userID, orgID int64) (*organization.Membership, error)
	RoleOf(ctx context.Context, userID, orgID int64) (authz.OrgRole, error)
	ListByOrg(ctx context.Context, orgID int64) ([]*organization.Membership, error)
	UpdateRole(ctx context.Context, id int64, role authz.OrgRole, permissions []string) error
	Delete(ctx context.Context, id int64) error
}

type InvitationStore interface {
	Create(ctx context.Context, inv *organization.Invitation) error
	FindByID(ctx context.Context, id int64) (*organization.Invitation, error)
	FindPendingByOrgAndEmail(ctx context.Context, orgID int64, email string) (*organization.Invitation, error)
	UpdateStatus(ctx context.Context, id int64, status organization.InvitationStatus) error
}

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*identity.User, error)
	FindByEmail(ctx context.Context, email string) (*identity.User, error)
}

type OrganizationService struct {
	orgs        OrganizationStore
	memberships MembershipStore
	invitations InvitationStore
	users       UserStore
	jwtManager  *jwt.Manager
	emailSender email.Sender
	appBaseURL  string
	logger      *zap.Logger
}

func NewOrganizationService(
	orgs OrganizationStore,
	memberships MembershipStore,
	invitations InvitationStore,
	users UserStore,
	jwtManager *jwt.Manager,
	emailSender email.Sender,
	appBaseURL string,
	logger *zap.Logger,
) *OrganizationService {
	return &OrganizationService{
		orgs:        orgs,
		memberships: memberships,
		invitations: invitations,
		users:       users,
		jwtManager:  jwtManager,
		emailSender: emailSender,
		appBaseURL:  strings.TrimRight(appBaseURL, "/"),
		logger:      logger,
	}
}

// Create creates an organization and enrolls the creator as its first admin.
func (s *OrganizationService) Create(ctx context.Context, userID int64, req *organization.CreateOrganizationRequest) (*organization.Organization, error) {
	org := &organization.Organization{
		Name:      req.Name,
		CreatedBy: userID,
	}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, err
	}

	member := &organization.Membership{
		UserID:         userID,
		OrganizationID: org.ID,
		Role:           authz.OrgRoleAdmin,
		Permissions:    OrgPermissions(authz.OrgRoleAdmin),
	}
	if err := s.memberships.Create(ctx, member); err != nil {
		return nil, err
	}

	s.logger.Info("organization created",
		zap.Int64("organization_id", org.ID),
		zap.Int64("created_by", userID),
	)

	return org, nil
}

// Get returns an organization to one of its members.
func (s *OrganizationService) Get(ctx context.Context, userID, orgID int64) (*organization.Organization, error) {
	if _, err := s.requireMember(ctx, userID, orgID); err != nil {
		return nil, err
	}
	return s.orgs.FindByID(ctx, orgID)
}

// ListMine lists the organizations the user belongs to.
func (s *OrganizationService) ListMine(ctx context.Context, userID int64) ([]*organization.Organization, error) {
	return s.orgs.ListForUser(ctx, userID)
}

// Rename changes the organization name. Admin only.
func (s *OrganizationService) Rename(ctx context.Context, userID, orgID int64, name string) error {
	if err := s.requireAdmin(ctx, userID, orgID); err != nil {
		return err
	}
	return s.orgs.UpdateName(ctx, orgID, name)
}

// ListMembers lists the organization's memberships.
func (s *OrganizationService) ListMembers(ctx context.Context, userID, orgID int64) ([]*organization.Membership, error) {
	if _, err := s.requireMember(ctx, userID, orgID); err != nil {
		return nil, err
	}
	return s.memberships.ListByOrg(ctx, orgID)
}

// InviteMember creates a pending invitation and emails its accept link.
// Admin only.
func (s *OrganizationService) InviteMember(ctx context.Context, userID, orgID int64, req *organization.InviteMemberRequest) (*organization.Invitation, error) {
	if err := s.requireAdmin(ctx, userID, orgID); err != nil {
		return nil, err
	}
	if !authz.IsValidOrgRole(req.Role) {
		return nil, fmt.Errorf("%w: unknown organization role %q", xerrors.ErrInvalidInput, req.Role)
	}

	inviteEmail := strings.ToLower(strings.TrimSpace(req.Email))

	if existing, err := s.users.FindByEmail(ctx, inviteEmail); err == nil {
		if _, err := s.memberships.FindByUserAndOrg(ctx, existing.ID, orgID); err == nil {
			return nil, fmt.Errorf("%w: user is already a member", xerrors.ErrConflict)
		}
	}

	if _, err := s.invitations.FindPendingByOrgAndEmail(ctx, orgID, inviteEmail); err == nil {
		return nil, fmt.Errorf("%w: invitation already pending for this email", xerrors.ErrConflict)
	}

	inv := &organization.Invitation{
		OrganizationID: orgID,
		Email:          inviteEmail,
		Role:           req.Role,
		Status:         organization.InvitationPending,
		InvitedBy:      userID,
		ExpiresAt:      time.Now().Add(7 * 24 * time.Hour),
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}

	token, _, err := s.jwtManager.Generator.GenerateInvitationToken(orgID, inv.ID, inviteEmail, string(req.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue invitation token: %w", err)
	}

	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	acceptURL := fmt.Sprintf("%s/invitations/accept?token=%s", s.appBaseURL, token)
	subject, body := email.InvitationBody(org.Name, string(req.Role), acceptURL)
	if err := s.emailSender.Send(inviteEmail, subject, body); err != nil {
		// The invitation stays usable through the token; delivery failure is
		// logged, not fatal.
		s.logger.Error("failed to send invitation email",
			zap.Int64("invitation_id", inv.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("member invited",
		zap.Int64("organization_id", orgID),
		zap.Int64("invitation_id", inv.ID),
		zap.String("role", string(req.Role)),
	)

	return inv, nil
}

// InvitationDetails resolves an invitation token into what the join page
// renders.
func (s *OrganizationService) InvitationDetails(ctx context.Context, token string) (*organization.InvitationDetails, error) {
	inv, org, err := s.resolveInvitationToken(ctx, token)
	if err != nil {
		return nil, err
	}

	return &organization.InvitationDetails{
		InvitationID:     inv.ID,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Email:            inv.Email,
		Role:             inv.Role,
		Status:           inv.Status,
	}, nil
}

// AcceptInvitation redeems a pending invitation for the authenticated user.
// The account email must match the invited address.
func (s *OrganizationService) AcceptInvitation(ctx context.Context, userID int64, token string) (*organization.Membership, error) {
	inv, _, err := s.resolveInvitationToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if inv.Status != organization.InvitationPending {
		return nil, fmt.Errorf("%w: invitation is no longer pending", xerrors.ErrConflict)
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, fmt.Errorf("%w: invitation has expired", xerrors.ErrInvalidInput)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, inv.Email) {
		return nil, fmt.Errorf("%w: invitation was issued for a different email", xerrors.ErrUnauthorized)
	}

	member := &organization.Membership{
		UserID:         userID,
		OrganizationID: inv.OrganizationID,
		Role:           inv.Role,
		Permissions:    OrgPermissions(inv.Role),
	}
	if err := s.memberships.Create(ctx, member); err != nil {
		if xerrors.Is(err, xerrors.ErrConflict) {
			return nil, fmt.Errorf("%w: already a member of this organization", xerrors.ErrConflict)
		}
		return nil, err
	}

	if err := s.invitations.UpdateStatus(ctx, inv.ID, organization.InvitationAccepted); err != nil {
		return nil, err
	}

	s.logger.Info("invitation accepted",
		zap.Int64("organization_id", inv.OrganizationID),
		zap.Int64("user_id", userID),
	)

	return member, nil
}

// RevokeInvitation withdraws a pending invitation. Admin only.
func (s *OrganizationService) RevokeInvitation(ctx context.Context, userID, orgID, invitationID int64) error {
	if err := s.requireAdmin(ctx, userID, orgID); err != nil {
		return err
	}

	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.OrganizationID != orgID {
		return xerrors.ErrNotFound
	}
	if inv.Status != organization.InvitationPending {
		return fmt.Errorf("%w: invitation is no longer pending", xerrors.ErrConflict)
	}

	return s.invitations.UpdateStatus(ctx, inv.ID, organization.InvitationRevoked)
}

// UpdateMemberRole changes a member's organization role. Admin only. The last
// admin cannot be demoted.
func (s *OrganizationService) UpdateMemberRole(ctx context.Context, userID, orgID, memberUserID int64, role authz.OrgRole) (*organization.Membership, error) {
	if err := s.requireAdmin(ctx, userID, orgID); err != nil {
		return nil, err
	}
	if !authz.IsValidOrgRole(role) {
		return nil, fmt.Errorf("%w: unknown organization role %q", xerrors.ErrInvalidInput, role)
	}

	member, err := s.memberships.FindByUserAndOrg(ctx, memberUserID, orgID)
	if err != nil {
		return nil, err
	}

	if authz.IsOrgAdmin(member.Role) && !authz.IsOrgAdmin(role) {
		if err := s.ensureNotLastAdmin(ctx, orgID, memberUserID); err != nil {
			return nil, err
		}
	}

	perms := OrgPermissions(role)
	if err := s.memberships.UpdateRole(ctx, member.ID, role, perms); err != nil {
		return nil, err
	}

	member.Role = role
	member.Permissions = perms
	return member, nil
}

// RemoveMember drops a user from the organization. Admin only, and the last
// admin cannot be removed.
func (s *OrganizationService) RemoveMember(ctx context.Context, userID, orgID, memberUserID int64) error {
	if err := s.requireAdmin(ctx, userID, orgID); err != nil {
		return err
	}

	member, err := s.memberships.FindByUserAndOrg(ctx, memberUserID, orgID)
	if err != nil {
		return err
	}

	if authz.IsOrgAdmin(member.Role) {
		if err := s.ensureNotLastAdmin(ctx, orgID, memberUserID); err != nil {
			return err
		}
	}

	return s.memberships.Delete(ctx, member.ID)
}

func (s *OrganizationService) requireMember(ctx context.Context, userID, orgID int64) (authz.OrgRole, error) {
	role, err := s.memberships.RoleOf(ctx, userID, orgID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return "", xerrors.ErrUnauthorized
		}
		return "", err
	}
	return role, nil
}

func (s *OrganizationService) requireAdmin(ctx context.Context, userID, orgID int64) error {
	role, err := s.requireMember(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !authz.IsOrgAdmin(role) {
		return fmt.Errorf("%w: organization admin required", xerrors.ErrUnauthorized)
	}
	return nil
}

func (s *OrganizationService) ensureNotLastAdmin(ctx context.Context, orgID, exceptUserID int64) error {
	members, err := s.memberships.ListByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.UserID != exceptUserID && authz.IsOrgAdmin(m.Role) {
			return nil
		}
	}
	return fmt.Errorf("%w: organization needs at least one admin", xerrors.ErrConflict)
}

func (s *OrganizationService) resolveInvitationToken(ctx context.Context, token string) (*organization.Invitation, *organization.Organization, error) {
	claims, err := s.jwtManager.Verifier.VerifyInvitationToken(token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid invitation token", xerrors.ErrInvalidInput)
	}

	invitationID, ok := claims.ExtraInt64("invitation_id")
	if !ok {
		return nil, nil, fmt.Errorf("%w: malformed invitation token", xerrors.ErrInvalidInput)
	}

	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		return nil, nil, err
	}

	org, err := s.orgs.FindByID(ctx, inv.OrganizationID)
	if err != nil {
		return nil, nil, err
	}

	return inv, org, nil
}
