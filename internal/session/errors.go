package session

import (
	"fmt"
	"time"
)

// AuthErrorKind classifies sign-in/refresh failures.
type AuthErrorKind string

const (
	AuthRateLimited        AuthErrorKind = "rate_limited"
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthInvalidInput       AuthErrorKind = "invalid_input"
	AuthServiceUnavailable AuthErrorKind = "service_unavailable"
)

// AuthError is the typed failure returned by the session manager. Its
// message never reveals which credential factor was wrong; rate-limited
// errors carry a retry-after hint.
type AuthError struct {
	Kind       AuthErrorKind
	Field      string        // set for AuthInvalidInput
	RetryAfter time.Duration // set for AuthRateLimited
	cause      error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthRateLimited:
		return fmt.Sprintf("too many attempts; retry in %s", e.RetryAfter.Round(time.Second))
	case AuthInvalidCredentials:
		return "invalid email or password"
	case AuthInvalidInput:
		return fmt.Sprintf("invalid input: %s", e.Field)
	default:
		return "authentication service unavailable"
	}
}

// Unwrap exposes the underlying cause for logging; user-facing surfaces
// must render Error() only.
func (e *AuthError) Unwrap() error { return e.cause }
