package backend

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"auth-control-plane/internal/rbac"
	"auth-control-plane/internal/security"
	"auth-control-plane/internal/session/domain"
)

// Demo-mode fixed credential. Reachable only when the composition root runs
// in local mode, which config.Load refuses in production.
const (
	DemoEmail    = "demo@example.com"
	demoPassword = "Demo123!@#"
	demoUserID   = "demo-user"
	demoOrgID    = "demo-org"
)

// DemoClient is the local-mode Client: it matches a single fixed credential
// pair and synthesizes tokens through the TokenService instead of calling a
// network backend. The UI stays functional without any identity service.
type DemoClient struct {
	tokens *security.TokenService
	hasher *security.Hasher
	ttl    time.Duration
	nowF   func() time.Time

	mu           sync.Mutex
	passwordHash string
	profile      Profile
	refreshToken string
}

// NewDemoClient returns a DemoClient issuing sessions of the given ttl.
func NewDemoClient(tokens *security.TokenService, hasher *security.Hasher, ttl time.Duration) (*DemoClient, error) {
	// The password is hashed at construction so sign-in goes through the same
	// bcrypt comparison as a real backend would.
	hash, err := hasher.Hash([]byte(demoPassword))
	if err != nil {
		return nil, err
	}
	return &DemoClient{
		tokens:       tokens,
		hasher:       hasher,
		ttl:          ttl,
		nowF:         time.Now,
		passwordHash: hash,
		profile: Profile{
			Name:           "Demo Admin",
			Role:           domain.RoleAdmin,
			OrganizationID: demoOrgID,
		},
	}, nil
}

// SignInWithPassword accepts exactly the fixed demo credential pair.
func (d *DemoClient) SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if email != DemoEmail {
		return nil, ErrInvalidCredentials
	}
	if err := d.hasher.Compare(d.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	expiresAt := d.nowF().Add(d.ttl)
	access, err := d.tokens.Issue(d.demoUser(), d.ttl)
	if err != nil {
		return nil, err
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	d.refreshToken = refresh
	return &SignInResult{
		AccessToken:    access,
		RefreshToken:   refresh,
		ExpiresAt:      expiresAt,
		UserID:         demoUserID,
		Email:          DemoEmail,
		EmailConfirmed: true,
	}, nil
}

// RefreshSession extends the session: a fresh access token and expiry for
// the same demo user, with the refresh token rotated.
func (d *DemoClient) RefreshSession(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if refreshToken == "" || refreshToken != d.refreshToken {
		return nil, ErrInvalidCredentials
	}
	expiresAt := d.nowF().Add(d.ttl)
	access, err := d.tokens.Issue(d.demoUser(), d.ttl)
	if err != nil {
		return nil, err
	}
	rotated, err := randomToken()
	if err != nil {
		return nil, err
	}
	d.refreshToken = rotated
	return &RefreshResult{AccessToken: access, RefreshToken: rotated, ExpiresAt: expiresAt}, nil
}

// SignUp is accepted and discarded; demo mode has exactly one account.
func (d *DemoClient) SignUp(ctx context.Context, email, password string, profile Profile) error {
	return nil
}

// SignOut drops the outstanding refresh token.
func (d *DemoClient) SignOut(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshToken = ""
	return nil
}

// FetchProfile returns the demo profile for the demo user, absent otherwise.
func (d *DemoClient) FetchProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID != demoUserID {
		return nil, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.profile
	return &p, nil
}

// UpdateProfile applies the named fields to the in-memory demo profile.
func (d *DemoClient) UpdateProfile(ctx context.Context, userID string, fields ProfileUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fields.Name != nil {
		d.profile.Name = *fields.Name
	}
	if fields.OrganizationID != nil {
		d.profile.OrganizationID = *fields.OrganizationID
	}
	return nil
}

// ResetPasswordForEmail is a no-op; the demo password is fixed.
func (d *DemoClient) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	return nil
}

func (d *DemoClient) demoUser() *domain.AuthUser {
	return &domain.AuthUser{
		ID:             demoUserID,
		Email:          DemoEmail,
		Name:           d.profile.Name,
		Role:           d.profile.Role,
		OrganizationID: d.profile.OrganizationID,
		Permissions:    rbac.PermissionsFor(d.profile.Role),
		EmailVerified:  true,
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
