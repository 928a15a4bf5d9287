package restaurant

import (
	"context"
	"fmt"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/restaurant"
	xerrors "tablevoice-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type RestaurantStore interface {
	Create(ctx context.Context, rest *restaurant.Restaurant) error
	FindByID(ctx context.Context, id int64) (*restaurant.Restaurant, error)
	ListByOwner(ctx context.Context, userID int64) ([]*restaurant.Restaurant, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*restaurant.Restaurant, error)
	Update(ctx context.Context, rest *restaurant.Restaurant) error
	Delete(ctx context.Context, id int64) error
}

type AccessStore interface {
	Create(ctx context.Context, a *restaurant.Access) error
	FindByUserAndRestaurant(ctx context.Context, userID, restaurantID int64) (*restaurant.Access, error)
	ListByRestaurant(ctx context.Context, restaurantID int64) ([]*restaurant.Access, error)
	ListAll(ctx context.Context) ([]*restaurant.Access, error)
	UpdateRole(ctx context.Context, id int64, role authz.RestaurantRole, permissions []string) error
	UpdatePermissions(ctx context.Context, id int64, permissions []string) error
	Delete(ctx context.Context, id int64) error
	DeleteByRestaurant(ctx context.Context, restaurantID int64) error
}

type MembershipStore interface {
	RoleOf(ctx context.Context, userID, orgID int64) (authz.OrgRole, error)
	ListForUserOrgs(ctx context.Context, userID int64) ([]int64, error)
}

type ReservationStore interface {
	ListIDsByRestaurant(ctx context.Context, restaurantID int64) ([]int64, error)
	Delete(ctx context.Context, id int64) error
}

// AgentPurger tears down a restaurant's agents, including their provider-side
// resources. Implemented by the agent service.
type AgentPurger interface {
	PurgeRestaurantAgents(ctx context.Context, restaurantID int64) (int, error)
}

type RestaurantService struct {
	restaurants  RestaurantStore
	access       AccessStore
	memberships  MembershipStore
	reservations ReservationStore
	agents       AgentPurger
	authorizer   *authz.Authorizer
	logger       *zap.Logger
}

func NewRestaurantService(
	restaurants RestaurantStore,
	access AccessStore,
	memberships MembershipStore,
	reservations ReservationStore,
	agents AgentPurger,
	authorizer *authz.Authorizer,
	logger *zap.Logger,
) *RestaurantService {
	return &RestaurantService{
		restaurants:  restaurants,
		access:       access,
		memberships:  memberships,
		reservations: reservations,
		agents:       agents,
		authorizer:   authorizer,
		logger:       logger,
	}
}

// Create creates a restaurant under personal or organization ownership.
// Organization-owned restaurants can only be created by organization admins.
func (s *RestaurantService) Create(ctx context.Context, userID int64, req *restaurant.CreateRestaurantRequest) (*restaurant.Restaurant, error) {
	var ownership restaurant.Ownership
	if req.OrganizationID > 0 {
		role, err := s.memberships.RoleOf(ctx, userID, req.OrganizationID)
		if err != nil {
			if xerrors.Is(err, xerrors.ErrNotFound) {
				return nil, xerrors.ErrUnauthorized
			}
			return nil, err
		}
		if !authz.IsOrgAdmin(role) {
			return nil, fmt.Errorf("%w: organization admin required to create restaurants", xerrors.ErrUnauthorized)
		}
		ownership = restaurant.OrganizationOwnership(req.OrganizationID)
	} else {
		ownership = restaurant.PersonalOwnership(userID)
	}

	if err := ownership.Validate(); err != nil {
		return nil, err
	}

	rest := &restaurant.Restaurant{
		Name:      req.Name,
		Ownership: ownership,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
		City:      req.City,
		Country:   req.Country,
		Timezone:  req.Timezone,
		Hours:     req.Hours,
		Status:    restaurant.StatusActive,
	}
	if req.Settings != nil {
		rest.Settings = *req.Settings
	} else {
		rest.Settings = defaultSettings()
	}
	if rest.Timezone == "" {
		rest.Timezone = "UTC"
	}

	if err := s.restaurants.Create(ctx, rest); err != nil {
		return nil, err
	}

	s.logger.Info("restaurant created",
		zap.Int64("restaurant_id", rest.ID),
		zap.String("owner_kind", string(ownership.Kind)),
	)

	return rest, nil
}

// Get returns a restaurant to anyone holding the view permission on it.
func (s *RestaurantService) Get(ctx context.Context, userID, restaurantID int64) (*restaurant.Restaurant, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermRestaurantView); err != nil {
		return nil, err
	}
	return s.restaurants.FindByID(ctx, restaurantID)
}

// ListMine returns every restaurant the user can see: personally owned ones
// plus all restaurants of organizations they belong to.
func (s *RestaurantService) ListMine(ctx context.Context, userID int64) ([]*restaurant.Restaurant, error) {
	owned, err := s.restaurants.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	orgIDs, err := s.memberships.ListForUserOrgs(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(owned))
	out := make([]*restaurant.Restaurant, 0, len(owned))
	for _, r := range owned {
		seen[r.ID] = true
		out = append(out, r)
	}

	for _, orgID := range orgIDs {
		orgRestaurants, err := s.restaurants.ListByOrganization(ctx, orgID)
		if err != nil {
			return nil, err
		}
		for _, r := range orgRestaurants {
			if !seen[r.ID] {
				seen[r.ID] = true
				out = append(out, r)
			}
		}
	}

	return out, nil
}

// Update applies a partial update. Requires the edit permission; ownership is
// immutable after creation.
func (s *RestaurantService) Update(ctx context.Context, userID, restaurantID int64, req *restaurant.UpdateRestaurantRequest) (*restaurant.Restaurant, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermRestaurantEdit); err != nil {
		return nil, err
	}

	rest, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	applyUpdate(rest, req)

	if err := s.restaurants.Update(ctx, rest); err != nil {
		return nil, err
	}
	return rest, nil
}

// Delete removes a restaurant and everything hanging off it. Organization
// restaurants require the org-level delete permission; personal ones the
// owner. The cascade runs as sequential deletes: reservations first (they
// reference the agents that took them), then agents with their provider
// resources, access records, and finally the restaurant row.
func (s *RestaurantService) Delete(ctx context.Context, userID, restaurantID int64) error {
	grant, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermOrgRestaurantDelete)
	if err != nil {
		return err
	}

	reservationIDs, err := s.reservations.ListIDsByRestaurant(ctx, restaurantID)
	if err != nil {
		return err
	}
	for _, id := range reservationIDs {
		if err := s.reservations.Delete(ctx, id); err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
			return fmt.Errorf("failed to remove reservation %d: %w", id, err)
		}
	}

	agentCount, err := s.agents.PurgeRestaurantAgents(ctx, restaurantID)
	if err != nil {
		return fmt.Errorf("failed to remove agents: %w", err)
	}

	if err := s.access.DeleteByRestaurant(ctx, restaurantID); err != nil {
		return err
	}

	if err := s.restaurants.Delete(ctx, restaurantID); err != nil {
		return err
	}

	s.logger.Info("restaurant deleted",
		zap.Int64("restaurant_id", restaurantID),
		zap.Int64("deleted_by", userID),
		zap.String("grant_scope", string(grant.Scope)),
		zap.Int("agents_removed", agentCount),
		zap.Int("reservations_removed", len(reservationIDs)),
	)

	return nil
}

// GrantAccess gives an organization member a role on one restaurant. The
// permission list is always derived from the canonical role mapping, never
// supplied by the caller. Admin only.
func (s *RestaurantService) GrantAccess(ctx context.Context, userID, restaurantID int64, req *restaurant.GrantAccessRequest) (*restaurant.Access, error) {
	orgID, err := s.requireOrgAdmin(ctx, userID, restaurantID)
	if err != nil {
		return nil, err
	}

	if !authz.IsValidRestaurantRole(req.Role) {
		return nil, fmt.Errorf("%w: unknown restaurant role %q", xerrors.ErrInvalidInput, req.Role)
	}

	// The grantee must already belong to the owning organization.
	if _, err := s.memberships.RoleOf(ctx, req.UserID, orgID); err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: user is not a member of the owning organization", xerrors.ErrInvalidInput)
		}
		return nil, err
	}

	access := &restaurant.Access{
		UserID:         req.UserID,
		RestaurantID:   restaurantID,
		OrganizationID: orgID,
		Role:           req.Role,
		Permissions:    authz.PermissionsForRole(req.Role),
	}
	if err := s.access.Create(ctx, access); err != nil {
		return nil, err
	}

	s.logger.Info("restaurant access granted",
		zap.Int64("restaurant_id", restaurantID),
		zap.Int64("user_id", req.UserID),
		zap.String("role", string(req.Role)),
	)

	return access, nil
}

// UpdateAccess changes a member's restaurant role, rewriting the stored
// permission list from the canonical mapping. Admin only.
func (s *RestaurantService) UpdateAccess(ctx context.Context, userID, restaurantID, targetUserID int64, req *restaurant.UpdateAccessRequest) (*restaurant.Access, error) {
	if _, err := s.requireOrgAdmin(ctx, userID, restaurantID); err != nil {
		return nil, err
	}
	if !authz.IsValidRestaurantRole(req.Role) {
		return nil, fmt.Errorf("%w: unknown restaurant role %q", xerrors.ErrInvalidInput, req.Role)
	}

	access, err := s.access.FindByUserAndRestaurant(ctx, targetUserID, restaurantID)
	if err != nil {
		return nil, err
	}

	perms := authz.PermissionsForRole(req.Role)
	if err := s.access.UpdateRole(ctx, access.ID, req.Role, perms); err != nil {
		return nil, err
	}

	access.Role = req.Role
	access.Permissions = perms
	return access, nil
}

// RevokeAccess removes a member's access record. Admin only.
func (s *RestaurantService) RevokeAccess(ctx context.Context, userID, restaurantID, targetUserID int64) error {
	if _, err := s.requireOrgAdmin(ctx, userID, restaurantID); err != nil {
		return err
	}

	access, err := s.access.FindByUserAndRestaurant(ctx, targetUserID, restaurantID)
	if err != nil {
		return err
	}
	return s.access.Delete(ctx, access.ID)
}

// ListAccess lists a restaurant's access records. Requires view permission.
func (s *RestaurantService) ListAccess(ctx context.Context, userID, restaurantID int64) ([]*restaurant.Access, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermRestaurantView); err != nil {
		return nil, err
	}
	return s.access.ListByRestaurant(ctx, restaurantID)
}

// RepairAccessPermissions scans every access record and rewrites permission
// lists that drifted from the canonical role mapping. Records already matching
// are untouched, so a second run right after a first repairs nothing.
func (s *RestaurantService) RepairAccessPermissions(ctx context.Context) (*restaurant.RepairReport, error) {
	records, err := s.access.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &restaurant.RepairReport{}
	for _, rec := range records {
		report.Scanned++

		canonical := authz.PermissionsForRole(rec.Role)
		if authz.SamePermissionSet(rec.Permissions, canonical) {
			continue
		}

		if err := s.access.UpdatePermissions(ctx, rec.ID, canonical); err != nil {
			return nil, fmt.Errorf("failed to repair access %d: %w", rec.ID, err)
		}

		s.logger.Warn("repaired drifted access permissions",
			zap.Int64("access_id", rec.ID),
			zap.Int64("user_id", rec.UserID),
			zap.Int64("restaurant_id", rec.RestaurantID),
			zap.String("role", string(rec.Role)),
		)
		report.Repaired++
	}

	s.logger.Info("access permission repair finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("repaired", report.Repaired),
	)

	return report, nil
}

// requireOrgAdmin resolves the restaurant, ensures it is organization-owned
// and that the caller administers that organization.
func (s *RestaurantService) requireOrgAdmin(ctx context.Context, userID, restaurantID int64) (int64, error) {
	rest, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return 0, err
	}

	if rest.Ownership.Kind != restaurant.OwnerOrganization {
		return 0, fmt.Errorf("%w: access records only apply to organization-owned restaurants", xerrors.ErrInvalidInput)
	}
	orgID := rest.Ownership.OrganizationID

	role, err := s.memberships.RoleOf(ctx, userID, orgID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return 0, xerrors.ErrUnauthorized
		}
		return 0, err
	}
	if !authz.IsOrgAdmin(role) {
		return 0, fmt.Errorf("%w: organization admin required", xerrors.ErrUnauthorized)
	}

	return orgID, nil
}

func applyUpdate(rest *restaurant.Restaurant, req *restaurant.UpdateRestaurantRequest) {
	if req.Name != nil {
		rest.Name = *req.Name
	}
	if req.Phone != nil {
		rest.Phone = *req.Phone
	}
	if req.Email != nil {
		rest.Email = *req.Email
	}
	if req.Address != nil {
		rest.Address = *req.Address
	}
	if req.City != nil {
		rest.City = *req.City
	}
	if req.Country != nil {
		rest.Country = *req.Country
	}
	if req.Timezone != nil {
		rest.Timezone = *req.Timezone
	}
	if req.Hours != nil {
		rest.Hours = req.Hours
	}
	if req.Settings != nil {
		rest.Settings = *req.Settings
	}
	if req.Status != nil {
		rest.Status = *req.Status
	}
}

func defaultSettings() restaurant.Settings {
	return restaurant.Settings{
		SeatingCapacity:      40,
		TurnoverMinutes:      90,
		BookingBufferMinutes: 15,
		MinPartySize:         1,
		MaxPartySize:         8,
		AdvanceBookingDays:   30,
	}
}
