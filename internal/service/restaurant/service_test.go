package restaurant

import (
	"context"
	"testing"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/restaurant"
	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRestaurantStore struct {
	restaurants map[int64]*restaurant.Restaurant
	nextID      int64
	deleted     []int64
}

func newFakeRestaurantStore() *fakeRestaurantStore {
	return &fakeRestaurantStore{restaurants: make(map[int64]*restaurant.Restaurant), nextID: 1}
}

func (f *fakeRestaurantStore) Create(_ context.Context, rest *restaurant.Restaurant) error {
	rest.ID = f.nextID
	f.nextID++
	f.restaurants[rest.ID] = rest
	return nil
}

func (f *fakeRestaurantStore) FindByID(_ context.Context, id int64) (*restaurant.Restaurant, error) {
	rest, ok := f.restaurants[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return rest, nil
}

func (f *fakeRestaurantStore) ListByOwner(_ context.Context, userID int64) ([]*restaurant.Restaurant, error) {
	var out []*restaurant.Restaurant
	for _, r := range f.restaurants {
		if r.Ownership.Kind == restaurant.OwnerPersonal && r.Ownership.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRestaurantStore) ListByOrganization(_ context.Context, orgID int64) ([]*restaurant.Restaurant, error) {
	var out []*restaurant.Restaurant
	for _, r := range f.restaurants {
		if r.Ownership.Kind == restaurant.OwnerOrganization && r.Ownership.OrganizationID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRestaurantStore) Update(_ context.Context, rest *restaurant.Restaurant) error {
	if _, ok := f.restaurants[rest.ID]; !ok {
		return xerrors.ErrNotFound
	}
	f.restaurants[rest.ID] = rest
	return nil
}

func (f *fakeRestaurantStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.restaurants[id]; !ok {
		return xerrors.ErrNotFound
	}
	delete(f.restaurants, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// OwnershipOf lets the fake double as the authorizer's restaurant source.
func (f *fakeRestaurantStore) OwnershipOf(_ context.Context, restaurantID int64) (int64, int64, error) {
	rest, ok := f.restaurants[restaurantID]
	if !ok {
		return 0, 0, xerrors.ErrNotFound
	}
	return rest.Ownership.UserID, rest.Ownership.OrganizationID, nil
}

type fakeAccessStore struct {
	records map[int64]*restaurant.Access
	nextID  int64
	updates int
}

func newFakeAccessStore() *fakeAccessStore {
	return &fakeAccessStore{records: make(map[int64]*restaurant.Access), nextID: 1}
}

func (f *fakeAccessStore) Create(_ context.Context, a *restaurant.Access) error {
	for _, rec := range f.records {
		if rec.UserID == a.UserID && rec.RestaurantID == a.RestaurantID {
			return xerrors.ErrConflict
		}
	}
	a.ID = f.nextID
	f.nextID++
	f.records[a.ID] = a
	return nil
}

func (f *fakeAccessStore) FindByUserAndRestaurant(_ context.Context, userID, restaurantID int64) (*restaurant.Access, error) {
	for _, rec := range f.records {
		if rec.UserID == userID && rec.RestaurantID == restaurantID {
			return rec, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeAccessStore) ListByRestaurant(_ context.Context, restaurantID int64) ([]*restaurant.Access, error) {
	var out []*restaurant.Access
	for _, rec := range f.records {
		if rec.RestaurantID == restaurantID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeAccessStore) ListAll(_ context.Context) ([]*restaurant.Access, error) {
	var out []*restaurant.Access
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeAccessStore) UpdateRole(_ context.Context, id int64, role authz.RestaurantRole, permissions []string) error {
	rec, ok := f.records[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	rec.Role = role
	rec.Permissions = permissions
	return nil
}

func (f *fakeAccessStore) UpdatePermissions(_ context.Context, id int64, permissions []string) error {
	rec, ok := f.records[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	rec.Permissions = permissions
	f.updates++
	return nil
}

func (f *fakeAccessStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.records[id]; !ok {
		return xerrors.ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeAccessStore) DeleteByRestaurant(_ context.Context, restaurantID int64) error {
	for id, rec := range f.records {
		if rec.RestaurantID == restaurantID {
			delete(f.records, id)
		}
	}
	return nil
}

// PermissionsOf lets the fake double as the authorizer's access source.
func (f *fakeAccessStore) PermissionsOf(ctx context.Context, userID, restaurantID int64) (authz.RestaurantRole, []string, error) {
	rec, err := f.FindByUserAndRestaurant(ctx, userID, restaurantID)
	if err != nil {
		return "", nil, err
	}
	return rec.Role, rec.Permissions, nil
}

type fakeMembershipStore struct {
	roles map[int64]map[int64]authz.OrgRole // userID -> orgID -> role
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{roles: make(map[int64]map[int64]authz.OrgRole)}
}

func (f *fakeMembershipStore) set(userID, orgID int64, role authz.OrgRole) {
	if f.roles[userID] == nil {
		f.roles[userID] = make(map[int64]authz.OrgRole)
	}
	f.roles[userID][orgID] = role
}

func (f *fakeMembershipStore) RoleOf(_ context.Context, userID, orgID int64) (authz.OrgRole, error) {
	role, ok := f.roles[userID][orgID]
	if !ok {
		return "", xerrors.ErrNotFound
	}
	return role, nil
}

func (f *fakeMembershipStore) ListForUserOrgs(_ context.Context, userID int64) ([]int64, error) {
	var out []int64
	for orgID := range f.roles[userID] {
		out = append(out, orgID)
	}
	return out, nil
}

type fakeReservationStore struct {
	ids     map[int64][]int64 // restaurantID -> reservation ids
	deleted []int64
}

func (f *fakeReservationStore) ListIDsByRestaurant(_ context.Context, restaurantID int64) ([]int64, error) {
	return f.ids[restaurantID], nil
}

func (f *fakeReservationStore) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAgentPurger struct {
	purged map[int64]int

	// Reservations already removed when the purge ran. Reservation rows
	// reference their agent, so they must be gone before agents are.
	reservationsGoneAtPurge int
	reservations            *fakeReservationStore
}

func (f *fakeAgentPurger) PurgeRestaurantAgents(_ context.Context, restaurantID int64) (int, error) {
	if f.purged == nil {
		f.purged = make(map[int64]int)
	}
	f.purged[restaurantID]++
	if f.reservations != nil {
		f.reservationsGoneAtPurge = len(f.reservations.deleted)
	}
	return 2, nil
}

type serviceFixture struct {
	svc          *RestaurantService
	restaurants  *fakeRestaurantStore
	access       *fakeAccessStore
	memberships  *fakeMembershipStore
	reservations *fakeReservationStore
	agents       *fakeAgentPurger
}

func newServiceFixture() *serviceFixture {
	restaurants := newFakeRestaurantStore()
	access := newFakeAccessStore()
	memberships := newFakeMembershipStore()
	reservations := &fakeReservationStore{ids: make(map[int64][]int64)}
	agents := &fakeAgentPurger{reservations: reservations}

	authorizer := authz.NewAuthorizer(restaurants, memberships, access, zap.NewNop())
	svc := NewRestaurantService(restaurants, access, memberships, reservations, agents, authorizer, zap.NewNop())

	return &serviceFixture{
		svc:          svc,
		restaurants:  restaurants,
		access:       access,
		memberships:  memberships,
		reservations: reservations,
		agents:       agents,
	}
}

func TestCreate_PersonalOwnership(t *testing.T) {
	f := newServiceFixture()

	rest, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Trattoria"})
	require.NoError(t, err)

	assert.Equal(t, restaurant.OwnerPersonal, rest.Ownership.Kind)
	assert.Equal(t, int64(1), rest.Ownership.UserID)
	assert.Zero(t, rest.Ownership.OrganizationID)
	assert.Equal(t, restaurant.StatusActive, rest.Status)
	assert.Equal(t, "UTC", rest.Timezone)
	assert.Equal(t, 90, rest.Settings.TurnoverMinutes)
}

func TestCreate_OrganizationOwnership(t *testing.T) {
	f := newServiceFixture()
	f.memberships.set(1, 5, authz.OrgRoleAdmin)
	f.memberships.set(2, 5, authz.OrgRoleMember)

	t.Run("admin can create", func(t *testing.T) {
		rest, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Bistro", OrganizationID: 5})
		require.NoError(t, err)
		assert.Equal(t, restaurant.OwnerOrganization, rest.Ownership.Kind)
		assert.Equal(t, int64(5), rest.Ownership.OrganizationID)
		assert.Zero(t, rest.Ownership.UserID)
	})

	t.Run("member denied", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), 2, &restaurant.CreateRestaurantRequest{Name: "Bistro", OrganizationID: 5})
		assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})

	t.Run("non-member denied", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), 3, &restaurant.CreateRestaurantRequest{Name: "Bistro", OrganizationID: 5})
		assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})
}

func TestGet_RequiresViewPermission(t *testing.T) {
	f := newServiceFixture()
	rest, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Trattoria"})
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), 1, rest.ID)
	require.NoError(t, err)
	assert.Equal(t, rest.ID, got.ID)

	_, err = f.svc.Get(context.Background(), 2, rest.ID)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestListMine_DeduplicatesOrgRestaurants(t *testing.T) {
	f := newServiceFixture()
	f.memberships.set(1, 5, authz.OrgRoleAdmin)

	_, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Personal"})
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Org", OrganizationID: 5})
	require.NoError(t, err)

	list, err := f.svc.ListMine(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDelete_CascadesSequentially(t *testing.T) {
	f := newServiceFixture()
	rest, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Trattoria"})
	require.NoError(t, err)
	f.reservations.ids[rest.ID] = []int64{11, 12, 13}

	require.NoError(t, f.svc.Delete(context.Background(), 1, rest.ID))

	assert.Equal(t, 1, f.agents.purged[rest.ID])
	assert.Equal(t, []int64{11, 12, 13}, f.reservations.deleted)
	assert.Equal(t, 3, f.agents.reservationsGoneAtPurge, "reservations removed before their agents")
	assert.Equal(t, []int64{rest.ID}, f.restaurants.deleted)
}

func TestDelete_OrgMemberDenied(t *testing.T) {
	f := newServiceFixture()
	f.memberships.set(1, 5, authz.OrgRoleAdmin)
	f.memberships.set(2, 5, authz.OrgRoleMember)

	rest, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Org", OrganizationID: 5})
	require.NoError(t, err)

	// Even a manager-level access record lacks org:restaurant:delete.
	_, err = f.svc.GrantAccess(context.Background(), 1, rest.ID, &restaurant.GrantAccessRequest{UserID: 2, Role: authz.RoleManager})
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), 2, rest.ID)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestGrantAccess(t *testing.T) {
	f := newServiceFixture()
	f.memberships.set(1, 5, authz.OrgRoleAdmin)
	f.memberships.set(2, 5, authz.OrgRoleMember)

	orgRest, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Org", OrganizationID: 5})
	require.NoError(t, err)

	t.Run("derives permissions from role", func(t *testing.T) {
		access, err := f.svc.GrantAccess(context.Background(), 1, orgRest.ID, &restaurant.GrantAccessRequest{UserID: 2, Role: authz.RoleHost})
		require.NoError(t, err)
		assert.Equal(t, int64(5), access.OrganizationID)
		assert.ElementsMatch(t, authz.PermissionsForRole(authz.RoleHost), access.Permissions)
	})

	t.Run("duplicate grant conflicts", func(t *testing.T) {
		_, err := f.svc.GrantAccess(context.Background(), 1, orgRest.ID, &restaurant.GrantAccessRequest{UserID: 2, Role: authz.RoleViewer})
		assert.ErrorIs(t, err, xerrors.ErrConflict)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		_, err := f.svc.GrantAccess(context.Background(), 1, orgRest.ID, &restaurant.GrantAccessRequest{UserID: 3, Role: "sommelier"})
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("grantee must be org member", func(t *testing.T) {
		_, err := f.svc.GrantAccess(context.Background(), 1, orgRest.ID, &restaurant.GrantAccessRequest{UserID: 99, Role: authz.RoleHost})
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("personal restaurant rejected", func(t *testing.T) {
		personal, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Personal"})
		require.NoError(t, err)

		_, err = f.svc.GrantAccess(context.Background(), 1, personal.ID, &restaurant.GrantAccessRequest{UserID: 2, Role: authz.RoleHost})
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})
}

func TestUpdateAccess_RewritesPermissions(t *testing.T) {
	f := newServiceFixture()
	f.memberships.set(1, 5, authz.OrgRoleAdmin)
	f.memberships.set(2, 5, authz.OrgRoleMember)

	orgRest, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Org", OrganizationID: 5})
	require.NoError(t, err)
	_, err = f.svc.GrantAccess(context.Background(), 1, orgRest.ID, &restaurant.GrantAccessRequest{UserID: 2, Role: authz.RoleViewer})
	require.NoError(t, err)

	updated, err := f.svc.UpdateAccess(context.Background(), 1, orgRest.ID, 2, &restaurant.UpdateAccessRequest{Role: authz.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleManager, updated.Role)
	assert.ElementsMatch(t, authz.PermissionsForRole(authz.RoleManager), updated.Permissions)
}

func TestRepairAccessPermissions_IsIdempotent(t *testing.T) {
	f := newServiceFixture()
	f.memberships.set(1, 5, authz.OrgRoleAdmin)
	f.memberships.set(2, 5, authz.OrgRoleMember)
	f.memberships.set(3, 5, authz.OrgRoleMember)

	orgRest, err := f.svc.Create(context.Background(), 1, &restaurant.CreateRestaurantRequest{Name: "Org", OrganizationID: 5})
	require.NoError(t, err)

	healthy, err := f.svc.GrantAccess(context.Background(), 1, orgRest.ID, &restaurant.GrantAccessRequest{UserID: 2, Role: authz.RoleHost})
	require.NoError(t, err)
	drifted, err := f.svc.GrantAccess(context.Background(), 1, orgRest.ID, &restaurant.GrantAccessRequest{UserID: 3, Role: authz.RoleViewer})
	require.NoError(t, err)

	// Simulate drift: a stale permission plus a missing one.
	f.access.records[drifted.ID].Permissions = []string{authz.PermRestaurantView, "legacy:perm"}

	report, err := f.svc.RepairAccessPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Repaired)
	assert.ElementsMatch(t, authz.PermissionsForRole(authz.RoleViewer), f.access.records[drifted.ID].Permissions)
	assert.ElementsMatch(t, authz.PermissionsForRole(authz.RoleHost), f.access.records[healthy.ID].Permissions)

	// Second run right after finds nothing to do.
	report, err = f.svc.RepairAccessPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Zero(t, report.Repaired)
	assert.Equal(t, 1, f.access.updates)
}
