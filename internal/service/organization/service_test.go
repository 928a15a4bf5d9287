package organization

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/identity"
	"tablevoice-service/internal/domain/organization"
	xerrors "tablevoice-service/internal/pkg/errors"
	"tablevoice-service/internal/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrgStore struct {
	orgs   map[int64]*organization.Organization
	nextID int64
}

func (f *fakeOrgStore) Create(_ context.Context, o *organization.Organization) error {
	o.ID = f.nextID
	f.nextID++
	f.orgs[o.ID] = o
	return nil
}

func (f *fakeOrgStore) FindByID(_ context.Context, id int64) (*organization.Organization, error) {
	o, ok := f.orgs[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrgStore) ListForUser(_ context.Context, _ int64) ([]*organization.Organization, error) {
	var out []*organization.Organization
	for _, o := range f.orgs {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrgStore) UpdateName(_ context.Context, id int64, name string) error {
	o, ok := f.orgs[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	o.Name = name
	return nil
}

type fakeMembershipStore struct {
	members map[int64]*organization.Membership
	nextID  int64
}

func (f *fakeMembershipStore) Create(_ context.Context, m *organization.Membership) error {
	for _, existing := range f.members {
		if existing.UserID == m.UserID && existing.OrganizationID == m.OrganizationID {
			return xerrors.ErrConflict
		}
	}
	m.ID = f.nextID
	f.nextID++
	f.members[m.ID] = m
	return nil
}

func (f *fakeMembershipStore) FindByUserAndOrg(_ context.Context, userID, orgID int64) (*organization.Membership, error) {
	for _, m := range f.members {
		if m.UserID == userID && m.OrganizationID == orgID {
			return m, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeMembershipStore) RoleOf(ctx context.Context, userID, orgID int64) (authz.OrgRole, error) {
	m, err := f.FindByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

func (f *fakeMembershipStore) ListByOrg(_ context.Context, orgID int64) ([]*organization.Membership, error) {
	var out []*organization.Membership
	for _, m := range f.members {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMembershipStore) UpdateRole(_ context.Context, id int64, role authz.OrgRole, permissions []string) error {
	m, ok := f.members[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	m.Role = role
	m.Permissions = permissions
	return nil
}

func (f *fakeMembershipStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.members[id]; !ok {
		return xerrors.ErrNotFound
	}
	delete(f.members, id)
	return nil
}

type fakeInvitationStore struct {
	invitations map[int64]*organization.Invitation
	nextID      int64
}

func (f *fakeInvitationStore) Create(_ context.Context, inv *organization.Invitation) error {
	inv.ID = f.nextID
	f.nextID++
	f.invitations[inv.ID] = inv
	return nil
}

func (f *fakeInvitationStore) FindByID(_ context.Context, id int64) (*organization.Invitation, error) {
	inv, ok := f.invitations[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return inv, nil
}

func (f *fakeInvitationStore) FindPendingByOrgAndEmail(_ context.Context, orgID int64, email string) (*organization.Invitation, error) {
	for _, inv := range f.invitations {
		if inv.OrganizationID == orgID && inv.Email == email && inv.Status == organization.InvitationPending {
			return inv, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeInvitationStore) UpdateStatus(_ context.Context, id int64, status organization.InvitationStatus) error {
	inv, ok := f.invitations[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	inv.Status = status
	return nil
}

type fakeUserStore struct {
	users map[int64]*identity.User
}

func (f *fakeUserStore) FindByID(_ context.Context, id int64) (*identity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

type fakeEmailSender struct {
	sent []string // recipients
	err  error
}

func (f *fakeEmailSender) Send(to, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func testJWTManager(t *testing.T) *jwt.Manager {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &jwt.Manager{
		Generator: jwt.NewGenerator(key, "tablevoice", "tablevoice-dashboard", "test-key", time.Hour),
		Verifier:  jwt.NewVerifier(&key.PublicKey, "tablevoice", "tablevoice-dashboard"),
	}
}

type fixture struct {
	svc         *OrganizationService
	orgs        *fakeOrgStore
	memberships *fakeMembershipStore
	invitations *fakeInvitationStore
	users       *fakeUserStore
	email       *fakeEmailSender
}

func newFixture(t *testing.T) *fixture {
	orgs := &fakeOrgStore{orgs: make(map[int64]*organization.Organization), nextID: 1}
	memberships := &fakeMembershipStore{members: make(map[int64]*organization.Membership), nextID: 1}
	invitations := &fakeInvitationStore{invitations: make(map[int64]*organization.Invitation), nextID: 1}
	users := &fakeUserStore{users: map[int64]*identity.User{
		1: {ID: 1, Email: "admin@example.com"},
		2: {ID: 2, Email: "member@example.com"},
		3: {ID: 3, Email: "other@example.com"},
	}}
	emailSender := &fakeEmailSender{}

	svc := NewOrganizationService(orgs, memberships, invitations, users, testJWTManager(t), emailSender, "https://app.example.com", zap.NewNop())
	return &fixture{svc: svc, orgs: orgs, memberships: memberships, invitations: invitations, users: users, email: emailSender}
}

func TestOrgPermissions(t *testing.T) {
	assert.ElementsMatch(t, []string{
		authz.PermOrgRestaurantCreate,
		authz.PermOrgRestaurantUpdate,
		authz.PermOrgRestaurantDelete,
	}, OrgPermissions(authz.OrgRoleAdmin))
	assert.Empty(t, OrgPermissions(authz.OrgRoleMember))
}

func TestCreate_EnrollsCreatorAsAdmin(t *testing.T) {
	f := newFixture(t)

	org, err := f.svc.Create(context.Background(), 1, &organization.CreateOrganizationRequest{Name: "Roma Group"})
	require.NoError(t, err)

	role, err := f.memberships.RoleOf(context.Background(), 1, org.ID)
	require.NoError(t, err)
	assert.Equal(t, authz.OrgRoleAdmin, role)
}

func TestInviteMember(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(context.Background(), 1, &organization.CreateOrganizationRequest{Name: "Roma Group"})
	require.NoError(t, err)

	t.Run("member cannot invite", func(t *testing.T) {
		_, err := f.svc.InviteMember(context.Background(), 2, org.ID, &organization.InviteMemberRequest{Email: "x@example.com", Role: authz.OrgRoleMember})
		assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})

	t.Run("creates pending invitation and emails link", func(t *testing.T) {
		inv, err := f.svc.InviteMember(context.Background(), 1, org.ID, &organization.InviteMemberRequest{Email: "Member@Example.com", Role: authz.OrgRoleMember})
		require.NoError(t, err)

		assert.Equal(t, organization.InvitationPending, inv.Status)
		assert.Equal(t, "member@example.com", inv.Email, "email is normalized")
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), inv.ExpiresAt, time.Minute)
		assert.Equal(t, []string{"member@example.com"}, f.email.sent)
	})

	t.Run("duplicate pending invite conflicts", func(t *testing.T) {
		_, err := f.svc.InviteMember(context.Background(), 1, org.ID, &organization.InviteMemberRequest{Email: "member@example.com", Role: authz.OrgRoleMember})
		assert.ErrorIs(t, err, xerrors.ErrConflict)
	})

	t.Run("existing member conflicts", func(t *testing.T) {
		_, err := f.svc.InviteMember(context.Background(), 1, org.ID, &organization.InviteMemberRequest{Email: "admin@example.com", Role: authz.OrgRoleMember})
		assert.ErrorIs(t, err, xerrors.ErrConflict)
	})

	t.Run("email failure is not fatal", func(t *testing.T) {
		f := newFixture(t)
		org, err := f.svc.Create(context.Background(), 1, &organization.CreateOrganizationRequest{Name: "Roma Group"})
		require.NoError(t, err)
		f.email.err = assert.AnError

		inv, err := f.svc.InviteMember(context.Background(), 1, org.ID, &organization.InviteMemberRequest{Email: "member@example.com", Role: authz.OrgRoleMember})
		require.NoError(t, err)
		assert.Equal(t, organization.InvitationPending, inv.Status)
	})
}

// inviteToken issues an invitation through the service and returns the token
// the email would have carried.
func inviteToken(t *testing.T, f *fixture, orgID int64, email string, role authz.OrgRole) (*organization.Invitation, string) {
	t.Helper()
	inv, err := f.svc.InviteMember(context.Background(), 1, orgID, &organization.InviteMemberRequest{Email: email, Role: role})
	require.NoError(t, err)

	token, _, err := f.svc.jwtManager.Generator.GenerateInvitationToken(orgID, inv.ID, inv.Email, string(role))
	require.NoError(t, err)
	return inv, token
}

func TestAcceptInvitation(t *testing.T) {
	newOrgFixture := func(t *testing.T) (*fixture, *organization.Organization) {
		f := newFixture(t)
		org, err := f.svc.Create(context.Background(), 1, &organization.CreateOrganizationRequest{Name: "Roma Group"})
		require.NoError(t, err)
		return f, org
	}

	t.Run("happy path", func(t *testing.T) {
		f, org := newOrgFixture(t)
		inv, token := inviteToken(t, f, org.ID, "member@example.com", authz.OrgRoleMember)

		member, err := f.svc.AcceptInvitation(context.Background(), 2, token)
		require.NoError(t, err)

		assert.Equal(t, org.ID, member.OrganizationID)
		assert.Equal(t, authz.OrgRoleMember, member.Role)
		assert.Empty(t, member.Permissions)
		assert.Equal(t, organization.InvitationAccepted, f.invitations.invitations[inv.ID].Status)
	})

	t.Run("email mismatch denied", func(t *testing.T) {
		f, org := newOrgFixture(t)
		_, token := inviteToken(t, f, org.ID, "member@example.com", authz.OrgRoleMember)

		// User 3 holds a different address.
		_, err := f.svc.AcceptInvitation(context.Background(), 3, token)
		assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})

	t.Run("case-insensitive email match", func(t *testing.T) {
		f, org := newOrgFixture(t)
		f.users.users[2].Email = "Member@Example.COM"
		_, token := inviteToken(t, f, org.ID, "member@example.com", authz.OrgRoleMember)

		_, err := f.svc.AcceptInvitation(context.Background(), 2, token)
		assert.NoError(t, err)
	})

	t.Run("expired invitation rejected", func(t *testing.T) {
		f, org := newOrgFixture(t)
		inv, token := inviteToken(t, f, org.ID, "member@example.com", authz.OrgRoleMember)
		f.invitations.invitations[inv.ID].ExpiresAt = time.Now().Add(-time.Hour)

		_, err := f.svc.AcceptInvitation(context.Background(), 2, token)
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("revoked invitation rejected", func(t *testing.T) {
		f, org := newOrgFixture(t)
		inv, token := inviteToken(t, f, org.ID, "member@example.com", authz.OrgRoleMember)
		require.NoError(t, f.svc.RevokeInvitation(context.Background(), 1, org.ID, inv.ID))

		_, err := f.svc.AcceptInvitation(context.Background(), 2, token)
		assert.ErrorIs(t, err, xerrors.ErrConflict)
	})

	t.Run("double accept conflicts", func(t *testing.T) {
		f, org := newOrgFixture(t)
		inv, token := inviteToken(t, f, org.ID, "member@example.com", authz.OrgRoleMember)

		_, err := f.svc.AcceptInvitation(context.Background(), 2, token)
		require.NoError(t, err)

		// Reset the status to simulate a replayed link against an existing
		// membership.
		f.invitations.invitations[inv.ID].Status = organization.InvitationPending
		_, err = f.svc.AcceptInvitation(context.Background(), 2, token)
		assert.ErrorIs(t, err, xerrors.ErrConflict)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		f, _ := newOrgFixture(t)
		_, err := f.svc.AcceptInvitation(context.Background(), 2, "not-a-token")
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})
}

func TestInvitationDetails(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(context.Background(), 1, &organization.CreateOrganizationRequest{Name: "Roma Group"})
	require.NoError(t, err)
	inv, token := inviteToken(t, f, org.ID, "member@example.com", authz.OrgRoleMember)

	details, err := f.svc.InvitationDetails(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, inv.ID, details.InvitationID)
	assert.Equal(t, "Roma Group", details.OrganizationName)
	assert.Equal(t, "member@example.com", details.Email)
	assert.Equal(t, organization.InvitationPending, details.Status)
}

func TestUpdateMemberRole_LastAdminGuard(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(context.Background(), 1, &organization.CreateOrganizationRequest{Name: "Roma Group"})
	require.NoError(t, err)

	_, token := inviteToken(t, f, org.ID, "member@example.com", authz.OrgRoleMember)
	_, err = f.svc.AcceptInvitation(context.Background(), 2, token)
	require.NoError(t, err)

	t.Run("sole admin cannot demote themselves", func(t *testing.T) {
		_, err := f.svc.UpdateMemberRole(context.Background(), 1, org.ID, 1, authz.OrgRoleMember)
		assert.ErrorIs(t, err, xerrors.ErrConflict)
	})

	t.Run("promotion then demotion works", func(t *testing.T) {
		promoted, err := f.svc.UpdateMemberRole(context.Background(), 1, org.ID, 2, authz.OrgRoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, authz.OrgRoleAdmin, promoted.Role)
		assert.ElementsMatch(t, OrgPermissions(authz.OrgRoleAdmin), promoted.Permissions)

		demoted, err := f.svc.UpdateMemberRole(context.Background(), 1, org.ID, 1, authz.OrgRoleMember)
		require.NoError(t, err)
		assert.Equal(t, authz.OrgRoleMember, demoted.Role)
	})
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(context.Background(), 1, &organization.CreateOrganizationRequest{Name: "Roma Group"})
	require.NoError(t, err)

	_, token := inviteToken(t, f, org.ID, "member@example.com", authz.OrgRoleMember)
	_, err = f.svc.AcceptInvitation(context.Background(), 2, token)
	require.NoError(t, err)

	t.Run("last admin cannot be removed", func(t *testing.T) {
		err := f.svc.RemoveMember(context.Background(), 1, org.ID, 1)
		assert.ErrorIs(t, err, xerrors.ErrConflict)
	})

	t.Run("member removal works", func(t *testing.T) {
		require.NoError(t, f.svc.RemoveMember(context.Background(), 1, org.ID, 2))
		_, err := f.memberships.FindByUserAndOrg(context.Background(), 2, org.ID)
		assert.ErrorIs(t, err, xerrors.ErrNotFound)
	})
}
