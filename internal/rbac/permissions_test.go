package rbac

import (
	"testing"

	"auth-control-plane/internal/session/domain"
)

func TestPermissionsForKnownRoles(t *testing.T) {
	perms := PermissionsFor(domain.RoleSuperAdmin)
	if len(perms) != 1 || perms[0] != Wildcard {
		t.Fatalf("super_admin: want [*], got %v", perms)
	}
	perms = PermissionsFor(domain.RoleViewer)
	if len(perms) != 1 || perms[0] != "read" {
		t.Fatalf("viewer: want [read], got %v", perms)
	}
}

func TestPermissionsForUnknownRoleFallsBackToUser(t *testing.T) {
	perms := PermissionsFor(domain.Role("intern"))
	want := PermissionsFor(domain.RoleUser)
	if len(perms) != len(want) {
		t.Fatalf("unknown role: want %v, got %v", want, perms)
	}
	for i := range perms {
		if perms[i] != want[i] {
			t.Fatalf("unknown role: want %v, got %v", want, perms)
		}
	}
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(domain.RoleAdmin)
	perms[0] = "mutated"
	if PermissionsFor(domain.RoleAdmin)[0] != "read" {
		t.Fatal("PermissionsFor must not expose the shared table")
	}
}

func TestHasPermissionWildcard(t *testing.T) {
	u := &domain.AuthUser{Role: domain.RoleSuperAdmin, Permissions: PermissionsFor(domain.RoleSuperAdmin)}
	for _, p := range []string{"read", "delete", "assessments:export", "anything-at-all"} {
		if !HasPermission(u, p) {
			t.Errorf("wildcard user should hold %q", p)
		}
	}
}

func TestHasPermission(t *testing.T) {
	u := &domain.AuthUser{Role: domain.RoleViewer, Permissions: PermissionsFor(domain.RoleViewer)}
	if !HasPermission(u, "read") {
		t.Error("viewer should hold read")
	}
	if HasPermission(u, "write") {
		t.Error("viewer should not hold write")
	}
	if HasPermission(nil, "read") {
		t.Error("nil user holds nothing")
	}
}
