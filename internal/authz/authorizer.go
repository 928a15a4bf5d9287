package authz

import (
	"context"
	"errors"

	xerrors "tablevoice-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// GrantScope records which branch of the ownership check produced the grant.
type GrantScope string

const (
	GrantPersonalOwner  GrantScope = "personal_owner"
	GrantOrgAdmin       GrantScope = "org_admin"
	GrantRestaurantRole GrantScope = "restaurant_role"
)

// Grant is a positive authorization decision.
type Grant struct {
	Scope          GrantScope
	OrgRole        OrgRole
	RestaurantRole RestaurantRole
}

// RestaurantSource resolves restaurant ownership. Exactly one of the returned
// ids is non-zero for a valid record.
type RestaurantSource interface {
	OwnershipOf(ctx context.Context, restaurantID int64) (ownerUserID int64, organizationID int64, err error)
}

// MembershipSource resolves a user's role inside an organization.
// Returns xerrors.ErrNotFound when the user is not a member.
type MembershipSource interface {
	RoleOf(ctx context.Context, userID, organizationID int64) (OrgRole, error)
}

// AccessSource resolves a user's stored restaurant access record.
// Returns xerrors.ErrNotFound when no record exists.
type AccessSource interface {
	PermissionsOf(ctx context.Context, userID, restaurantID int64) (RestaurantRole, []string, error)
}

// Authorizer is the single place the ownership/role/permission protocol lives.
// Every restaurant-scoped mutation and query goes through Authorize instead of
// re-implementing the checks inline.
type Authorizer struct {
	restaurants RestaurantSource
	memberships MembershipSource
	access      AccessSource
	logger      *zap.Logger
}

func NewAuthorizer(restaurants RestaurantSource, memberships MembershipSource, access AccessSource, logger *zap.Logger) *Authorizer {
	return &Authorizer{
		restaurants: restaurants,
		memberships: memberships,
		access:      access,
		logger:      logger,
	}
}

// Authorize decides whether userID may perform permission on restaurantID.
//
// Protocol:
//  1. no caller identity -> ErrUnauthenticated
//  2. restaurant missing -> ErrNotFound
//  3. organization-owned: membership required; admins bypass the restaurant
//     axis; otherwise the stored access record must contain the permission
//  4. personally owned: only the owner, the restaurant axis is never consulted
//
// The two ownership branches never mix for one restaurant.
func (a *Authorizer) Authorize(ctx context.Context, userID, restaurantID int64, permission string) (*Grant, error) {
	if userID <= 0 {
		return nil, xerrors.ErrUnauthenticated
	}

	ownerUserID, orgID, err := a.restaurants.OwnershipOf(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	if orgID > 0 {
		return a.authorizeOrganization(ctx, userID, restaurantID, orgID, permission)
	}

	if ownerUserID == userID {
		return &Grant{Scope: GrantPersonalOwner}, nil
	}

	a.logger.Debug("personal ownership check denied",
		zap.Int64("user_id", userID),
		zap.Int64("restaurant_id", restaurantID),
	)
	return nil, xerrors.ErrUnauthorized
}

func (a *Authorizer) authorizeOrganization(ctx context.Context, userID, restaurantID, orgID int64, permission string) (*Grant, error) {
	orgRole, err := a.memberships.RoleOf(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrUnauthorized
		}
		return nil, err
	}

	if IsOrgAdmin(orgRole) {
		return &Grant{Scope: GrantOrgAdmin, OrgRole: orgRole}, nil
	}

	role, perms, err := a.access.PermissionsOf(ctx, userID, restaurantID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrUnauthorized
		}
		return nil, err
	}

	if !HasPermission(perms, permission) {
		a.logger.Debug("restaurant role check denied",
			zap.Int64("user_id", userID),
			zap.Int64("restaurant_id", restaurantID),
			zap.String("role", string(role)),
			zap.String("permission", permission),
		)
		return nil, xerrors.ErrUnauthorized
	}

	return &Grant{Scope: GrantRestaurantRole, OrgRole: orgRole, RestaurantRole: role}, nil
}
