// Package domain holds the core auth entities: users, sessions, and the
// transient sign-in credentials.
package domain

import "time"

// Role is the coarse authorization level attached to a user.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleUser       Role = "user"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// AuthUser is the identity and authorization snapshot carried by a session.
// Permissions are derived from Role via the rbac package; they are only set
// independently when reconstructing a user from verified token claims.
type AuthUser struct {
	ID             string
	Email          string // normalized lowercase
	Name           string
	Role           Role
	OrganizationID string
	Permissions    []string // may contain the wildcard "*"
	EmailVerified  bool
	LastLogin      *time.Time // nil when the backend reports none
}

// AuthSession is a time-bounded grant for one user.
type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         AuthUser
}

// Valid reports whether the session has not expired at the given instant.
// A session whose ExpiresAt equals now is already expired.
func (s *AuthSession) Valid(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

// Copy returns a deep copy so callers can hand sessions out without
// sharing the permissions slice.
func (s *AuthSession) Copy() *AuthSession {
	if s == nil {
		return nil
	}
	dup := *s
	dup.User.Permissions = append([]string(nil), s.User.Permissions...)
	return &dup
}

// Credentials is the transient sign-in input. Never persisted.
type Credentials struct {
	Email      string
	Password   string
	RememberMe bool
}
