package authz

// OrgRole is the organization-level role axis.
type OrgRole string

// RestaurantRole is the per-restaurant role axis, consulted only for
// organization members that are not admins.
type RestaurantRole string

const (
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"

	RoleOwner   RestaurantRole = "owner"
	RoleManager RestaurantRole = "manager"
	RoleHost    RestaurantRole = "host"
	RoleViewer  RestaurantRole = "viewer"
)

// Permission strings. Colon-namespaced capability tokens checked by the
// authorizer and mirrored into stored access records.
const (
	PermRestaurantView = "restaurant:view"
	PermRestaurantEdit = "restaurant:edit"

	PermAgentView = "agent:view"
	PermAgentEdit = "agent:edit"

	PermReservationView   = "reservation:view"
	PermReservationCreate = "reservation:create"
	PermReservationEdit   = "reservation:edit"
	PermReservationDelete = "reservation:delete"

	PermOrgRestaurantCreate = "org:restaurant:create"
	PermOrgRestaurantUpdate = "org:restaurant:update"
	PermOrgRestaurantDelete = "org:restaurant:delete"
)

// rolePermissions is the canonical role -> permission table. The sets are
// strictly monotonic: every permission granted to a lower role is granted to
// every higher role (viewer < host < manager < owner).
var rolePermissions = map[RestaurantRole][]string{
	RoleViewer: {
		PermRestaurantView,
		PermAgentView,
		PermReservationView,
	},
	RoleHost: {
		PermRestaurantView,
		PermAgentView,
		PermReservationView,
		PermReservationCreate,
		PermReservationEdit,
	},
	RoleManager: {
		PermRestaurantView,
		PermRestaurantEdit,
		PermAgentView,
		PermAgentEdit,
		PermReservationView,
		PermReservationCreate,
		PermReservationEdit,
		PermReservationDelete,
	},
	RoleOwner: {
		PermRestaurantView,
		PermRestaurantEdit,
		PermAgentView,
		PermAgentEdit,
		PermReservationView,
		PermReservationCreate,
		PermReservationEdit,
		PermReservationDelete,
		PermOrgRestaurantCreate,
		PermOrgRestaurantUpdate,
		PermOrgRestaurantDelete,
	},
}

// PermissionsForRole returns the canonical permission list for a restaurant
// role. Unknown roles fail closed with an empty set, never full access.
func PermissionsForRole(role RestaurantRole) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		return []string{}
	}

	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// IsOrgAdmin reports whether an organization role is exactly the admin role.
func IsOrgAdmin(role OrgRole) bool {
	return role == OrgRoleAdmin
}

// IsValidRestaurantRole reports whether the role is one of the four known
// restaurant roles.
func IsValidRestaurantRole(role RestaurantRole) bool {
	_, ok := rolePermissions[role]
	return ok
}

// IsValidOrgRole reports whether the role is a known organization role.
func IsValidOrgRole(role OrgRole) bool {
	return role == OrgRoleAdmin || role == OrgRoleMember
}

// HasPermission checks a permission list for a specific permission.
func HasPermission(perms []string, want string) bool {
	for _, p := range perms {
		if p == want {
			return true
		}
	}
	return false
}

// SamePermissionSet compares two permission lists as sets, ignoring order and
// duplicates. Used by the repair procedure to detect drift.
func SamePermissionSet(a, b []string) bool {
	seen := make(map[string]bool, len(a))
	for _, p := range a {
		seen[p] = true
	}

	matched := make(map[string]bool, len(b))
	for _, p := range b {
		if !seen[p] {
			return false
		}
		matched[p] = true
	}

	return len(seen) == len(matched)
}
