package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auth-control-plane/internal/rbac"
	"auth-control-plane/internal/security"
	"auth-control-plane/internal/session/domain"
)

func issueTestToken(t *testing.T, tokens *security.TokenService, role domain.Role) string {
	t.Helper()
	token, err := tokens.Issue(&domain.AuthUser{
		ID:          "user-1",
		Email:       "alice@example.com",
		Role:        role,
		Permissions: rbac.PermissionsFor(role),
	}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	tokens, err := security.NewTokenService("test-secret-0123456789abcdef", "authplane", "authplane-api", false)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	var seen *domain.AuthUser
	h := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d, want 401", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, tokens, domain.RoleManager))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", rr.Code)
	}
	if seen == nil || seen.Role != domain.RoleManager {
		t.Errorf("context user = %+v, want manager", seen)
	}
}

func TestRequirePermission(t *testing.T) {
	tokens, err := security.NewTokenService("test-secret-0123456789abcdef", "authplane", "authplane-api", false)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Auth(tokens)(RequirePermission("manage_users")(next))

	cases := []struct {
		name string
		role domain.Role
		want int
	}{
		{"admin allowed", domain.RoleAdmin, http.StatusOK},
		{"super_admin via wildcard", domain.RoleSuperAdmin, http.StatusOK},
		{"viewer forbidden", domain.RoleViewer, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+issueTestToken(t, tokens, tc.role))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}

	// Without Auth in front there is no user in the context.
	rr := httptest.NewRecorder()
	RequirePermission("manage_users")(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no user: status = %d, want 401", rr.Code)
	}
}
