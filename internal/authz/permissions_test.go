package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionsForRole(t *testing.T) {
	t.Run("viewer gets read-only set", func(t *testing.T) {
		perms := PermissionsForRole(RoleViewer)
		assert.ElementsMatch(t, []string{PermRestaurantView, PermAgentView, PermReservationView}, perms)
	})

	t.Run("unknown role fails closed", func(t *testing.T) {
		perms := PermissionsForRole(RestaurantRole("superuser"))
		assert.Empty(t, perms)
		assert.NotNil(t, perms)
	})

	t.Run("roles are strictly monotonic", func(t *testing.T) {
		chain := []RestaurantRole{RoleViewer, RoleHost, RoleManager, RoleOwner}
		for i := 1; i < len(chain); i++ {
			lower := PermissionsForRole(chain[i-1])
			higher := PermissionsForRole(chain[i])

			require.Greater(t, len(higher), len(lower), "%s should grant more than %s", chain[i], chain[i-1])
			for _, p := range lower {
				assert.True(t, HasPermission(higher, p),
					"%s is missing %q granted to %s", chain[i], p, chain[i-1])
			}
		}
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		perms := PermissionsForRole(RoleViewer)
		perms[0] = "tampered"
		assert.Equal(t, PermRestaurantView, PermissionsForRole(RoleViewer)[0])
	})

	t.Run("only owners hold org-level restaurant permissions", func(t *testing.T) {
		for _, role := range []RestaurantRole{RoleViewer, RoleHost, RoleManager} {
			perms := PermissionsForRole(role)
			assert.False(t, HasPermission(perms, PermOrgRestaurantDelete), "role %s", role)
		}
		assert.True(t, HasPermission(PermissionsForRole(RoleOwner), PermOrgRestaurantDelete))
	})
}

func TestIsOrgAdmin(t *testing.T) {
	assert.True(t, IsOrgAdmin(OrgRoleAdmin))
	assert.False(t, IsOrgAdmin(OrgRoleMember))
	assert.False(t, IsOrgAdmin(OrgRole("Admin")))
	assert.False(t, IsOrgAdmin(OrgRole("")))
}

func TestRoleValidation(t *testing.T) {
	assert.True(t, IsValidRestaurantRole(RoleOwner))
	assert.True(t, IsValidRestaurantRole(RoleViewer))
	assert.False(t, IsValidRestaurantRole(RestaurantRole("admin")))
	assert.False(t, IsValidRestaurantRole(RestaurantRole("")))

	assert.True(t, IsValidOrgRole(OrgRoleAdmin))
	assert.True(t, IsValidOrgRole(OrgRoleMember))
	assert.False(t, IsValidOrgRole(OrgRole("owner")))
}

func TestSamePermissionSet(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		want bool
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}, true},
		{"order ignored", []string{"a", "b"}, []string{"b", "a"}, true},
		{"duplicates ignored", []string{"a", "a", "b"}, []string{"b", "a", "b"}, true},
		{"missing element", []string{"a", "b"}, []string{"a"}, false},
		{"extra element", []string{"a"}, []string{"a", "b"}, false},
		{"both empty", nil, []string{}, true},
		{"one empty", []string{"a"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SamePermissionSet(tt.a, tt.b))
			assert.Equal(t, tt.want, SamePermissionSet(tt.b, tt.a))
		})
	}
}
