package security

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"auth-control-plane/internal/session/domain"
)

// Sentinel errors for token issuance and verification.
var (
	// ErrMissingSecret is returned when no signing secret is configured and
	// the demo fallback is not allowed.
	ErrMissingSecret = errors.New("token signing secret is not configured")
	// ErrTokenExpired is returned for structurally valid tokens past their exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenMalformed is returned for tokens that cannot be decoded.
	ErrTokenMalformed = errors.New("malformed token")
)

// Claims is the session token claim set. Role and permissions travel inside
// the token so verification is self-contained and does not re-derive them.
type Claims struct {
	jwt.RegisteredClaims
	Email          string   `json:"email"`
	Name           string   `json:"name,omitempty"`
	Role           string   `json:"role"`
	Permissions    []string `json:"permissions"`
	OrganizationID string   `json:"org_id,omitempty"`
	EmailVerified  bool     `json:"email_verified"`
}

// demoPrefix marks the reversible demo encoding. A demo token can never carry
// a valid HS256 signature, and Verify rejects the prefix outright whenever a
// real secret is configured.
const demoPrefix = "demo."

// demoToken is the demo-mode payload: the user snapshot plus expiry, base64
// encoded without any cryptography. It keeps a backend-less deployment
// functional and is never a security boundary.
type demoToken struct {
	User      demoUser `json:"user"`
	ExpiresAt int64    `json:"exp"` // epoch seconds
}

type demoUser struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Name           string   `json:"name,omitempty"`
	Role           string   `json:"role"`
	Permissions    []string `json:"permissions"`
	OrganizationID string   `json:"org_id,omitempty"`
	EmailVerified  bool     `json:"email_verified"`
}

// TokenService signs and verifies session tokens with a symmetric secret
// (HS256). With no secret configured it either refuses to construct
// (production) or degrades to the demo encoding (local mode).
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	demoMode bool
	nowF     func() time.Time
}

// NewTokenService returns a TokenService for the given secret. issuer and
// audience are stamped on claims and checked on verify when non-empty.
// An empty secret is a construction error unless allowDemoFallback is set.
func NewTokenService(secret, issuer, audience string, allowDemoFallback bool) (*TokenService, error) {
	if secret == "" && !allowDemoFallback {
		return nil, ErrMissingSecret
	}
	return &TokenService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		demoMode: secret == "" && allowDemoFallback,
		nowF:     time.Now,
	}, nil
}

// Issue builds and signs a session token for user with the given ttl.
func (s *TokenService) Issue(user *domain.AuthUser, ttl time.Duration) (string, error) {
	now := s.nowF().UTC()
	expiresAt := now.Add(ttl)
	if s.demoMode {
		return s.issueDemo(user, expiresAt)
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:          user.Email,
		Name:           user.Name,
		Role:           string(user.Role),
		Permissions:    user.Permissions,
		OrganizationID: user.OrganizationID,
		EmailVerified:  user.EmailVerified,
	}
	if s.issuer != "" {
		claims.Issuer = s.issuer
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Verify decodes and validates token (signature, exp, and iss/aud when
// configured) and reconstructs the AuthUser from the claim set.
func (s *TokenService) Verify(token string) (*domain.AuthUser, error) {
	if strings.HasPrefix(token, demoPrefix) {
		if !s.demoMode {
			return nil, ErrInvalidSignature
		}
		return s.verifyDemo(token)
	}
	if s.demoMode {
		// No secret to verify against; anything unsigned and non-demo is junk.
		return nil, ErrTokenMalformed
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.nowF().UTC() }))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if s.issuer != "" {
		if claims.Issuer != s.issuer {
			return nil, ErrInvalidSignature
		}
		audOk := false
		for _, a := range claims.Audience {
			if a == s.audience {
				audOk = true
				break
			}
		}
		if !audOk {
			return nil, ErrInvalidSignature
		}
	}
	return &domain.AuthUser{
		ID:             claims.Subject,
		Email:          claims.Email,
		Name:           claims.Name,
		Role:           domain.Role(claims.Role),
		OrganizationID: claims.OrganizationID,
		Permissions:    claims.Permissions,
		EmailVerified:  claims.EmailVerified,
	}, nil
}

func (s *TokenService) issueDemo(user *domain.AuthUser, expiresAt time.Time) (string, error) {
	raw, err := json.Marshal(demoToken{
		User: demoUser{
			ID:             user.ID,
			Email:          user.Email,
			Name:           user.Name,
			Role:           string(user.Role),
			Permissions:    user.Permissions,
			OrganizationID: user.OrganizationID,
			EmailVerified:  user.EmailVerified,
		},
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return "", err
	}
	return demoPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

func (s *TokenService) verifyDemo(token string) (*domain.AuthUser, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, demoPrefix))
	if err != nil {
		return nil, ErrTokenMalformed
	}
	var dt demoToken
	if err := json.Unmarshal(raw, &dt); err != nil {
		return nil, ErrTokenMalformed
	}
	if !time.Unix(dt.ExpiresAt, 0).After(s.nowF()) {
		return nil, ErrTokenExpired
	}
	return &domain.AuthUser{
		ID:             dt.User.ID,
		Email:          dt.User.Email,
		Name:           dt.User.Name,
		Role:           domain.Role(dt.User.Role),
		OrganizationID: dt.User.OrganizationID,
		Permissions:    dt.User.Permissions,
		EmailVerified:  dt.User.EmailVerified,
	}, nil
}
