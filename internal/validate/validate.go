// Package validate normalizes and validates credential input before it
// reaches the network, and sanitizes user-supplied display text.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies a validation failure.
type Kind string

const (
	InvalidEmail Kind = "invalid_email"
	WeakPassword Kind = "weak_password"
	InvalidName  Kind = "invalid_name"
)

// Error is a typed validation failure with the offending field.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validate: %s: %s", e.Field, e.Msg)
}

const maxEmailLen = 254

// Local part, @, domain with at least one dot. Deliberately conservative.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var (
	jsSchemePattern     = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+\s*=`)
)

// NormalizeEmail lowercases and trims raw and validates it against a
// conservative pattern. Returns the normalized email or an InvalidEmail error.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", &Error{Kind: InvalidEmail, Field: "email", Msg: "email is required"}
	}
	if len(email) > maxEmailLen {
		return "", &Error{Kind: InvalidEmail, Field: "email", Msg: "email is too long"}
	}
	if !emailPattern.MatchString(email) {
		return "", &Error{Kind: InvalidEmail, Field: "email", Msg: "invalid email format"}
	}
	return email, nil
}

// Password validates password strength. strict applies the production policy
// (upper, lower, digit, symbol); otherwise only length plus at least one
// letter and one digit are required.
func Password(password string, strict bool) error {
	if len(password) < 8 {
		return &Error{Kind: WeakPassword, Field: "password", Msg: "password must be at least 8 characters"}
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !strict {
		if !(hasUpper || hasLower) || !hasDigit {
			return &Error{Kind: WeakPassword, Field: "password", Msg: "password must mix letters and numbers"}
		}
		return nil
	}
	if !hasUpper {
		return &Error{Kind: WeakPassword, Field: "password", Msg: "password must contain an uppercase letter"}
	}
	if !hasLower {
		return &Error{Kind: WeakPassword, Field: "password", Msg: "password must contain a lowercase letter"}
	}
	if !hasDigit {
		return &Error{Kind: WeakPassword, Field: "password", Msg: "password must contain a number"}
	}
	if !hasSymbol {
		return &Error{Kind: WeakPassword, Field: "password", Msg: "password must contain a symbol"}
	}
	return nil
}

// SanitizeFreeText strips angle brackets, the javascript: scheme, and inline
// event-handler patterns from user-supplied display text (names, org names)
// before it is stored or rendered.
func SanitizeFreeText(raw string) string {
	s := strings.NewReplacer("<", "", ">", "").Replace(raw)
	s = jsSchemePattern.ReplaceAllString(s, "")
	s = eventHandlerPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DisplayName sanitizes and validates an optional display name.
func DisplayName(raw string) (string, error) {
	name := SanitizeFreeText(raw)
	if len(name) > 100 {
		return "", &Error{Kind: InvalidName, Field: "name", Msg: "name is too long"}
	}
	return name, nil
}
