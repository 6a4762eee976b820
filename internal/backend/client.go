// Package backend defines the credential backend contract: the external
// identity service that verifies passwords, issues refresh tokens, and
// stores profile rows. The core only depends on this interface.
package backend

import (
	"context"
	"errors"
	"time"

	"auth-control-plane/internal/session/domain"
)

// ErrInvalidCredentials is returned when the backend rejects the email or
// password. Callers must not reveal which factor was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SignInResult is the backend's answer to a successful password sign-in.
type SignInResult struct {
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
	UserID         string
	Email          string
	EmailConfirmed bool
}

// RefreshResult carries the rotated token pair from a refresh call.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Profile is the backend-held profile row for a user.
type Profile struct {
	Name           string
	Role           domain.Role
	OrganizationID string
}

// ProfileUpdate names the profile fields a caller may change. Nil fields are
// left untouched.
type ProfileUpdate struct {
	Name           *string
	OrganizationID *string
}

// Client is the credential backend collaborator. Implementations must honor
// context cancellation on every call.
type Client interface {
	SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error)
	RefreshSession(ctx context.Context, refreshToken string) (*RefreshResult, error)
	SignUp(ctx context.Context, email, password string, profile Profile) error
	// SignOut invalidates the remote session. Best-effort; failures are logged
	// by the caller, never fatal.
	SignOut(ctx context.Context) error
	// FetchProfile returns (nil, nil) when no profile row exists.
	FetchProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, fields ProfileUpdate) error
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
}
