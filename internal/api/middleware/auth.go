package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"auth-control-plane/internal/api/response"
	"auth-control-plane/internal/rbac"
	"auth-control-plane/internal/security"
	"auth-control-plane/internal/session/domain"
)

const userKey contextKey = "authUser"

// Auth is middleware that verifies the Authorization bearer token and
// puts the reconstructed user into the request context. Missing or
// invalid tokens return 401; an expired token gets a distinct code so
// clients know to refresh.
func Auth(tokens *security.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header is required", requestID)
				return
			}
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header must use the Bearer scheme", requestID)
				return
			}

			user, err := tokens.Verify(token)
			if err != nil {
				if errors.Is(err, security.ErrTokenExpired) {
					response.Err(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token has expired", requestID)
					return
				}
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid access token", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser retrieves the authenticated user from the request context.
func GetUser(ctx context.Context) *domain.AuthUser {
	if u, ok := ctx.Value(userKey).(*domain.AuthUser); ok {
		return u
	}
	return nil
}

// RequirePermission gates a route on one permission of the
// authenticated user. Must run after Auth.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			u := GetUser(r.Context())
			if u == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
				return
			}
			if !rbac.HasPermission(u, permission) {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", requestID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
