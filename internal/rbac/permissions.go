// Package rbac maps roles to their fixed permission sets.
package rbac

import "auth-control-plane/internal/session/domain"

// Wildcard grants every permission; only super_admin holds it.
const Wildcard = "*"

// rolePermissions is the static role table. Order within a set is the order
// permissions appear in issued tokens.
var rolePermissions = map[domain.Role][]string{
	domain.RoleSuperAdmin: {Wildcard},
	domain.RoleAdmin:      {"read", "write", "delete", "manage_users", "manage_settings"},
	domain.RoleManager:    {"read", "write", "manage_team"},
	domain.RoleUser:       {"read", "write"},
	domain.RoleViewer:     {"read"},
}

// PermissionsFor returns a copy of the permission set for role. Unknown roles
// get the "user" set: an unrecognized role must not grant elevated access,
// but it must not fail the caller either.
func PermissionsFor(role domain.Role) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		perms = rolePermissions[domain.RoleUser]
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether u holds permission, either directly or via
// the wildcard.
func HasPermission(u *domain.AuthUser, permission string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == Wildcard || p == permission {
			return true
		}
	}
	return false
}
