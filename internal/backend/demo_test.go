package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"auth-control-plane/internal/security"
	"auth-control-plane/internal/session/domain"
)

func newDemoClient(t *testing.T) *DemoClient {
	t.Helper()
	tokens, err := security.NewTokenService("", "", "", true)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	c, err := NewDemoClient(tokens, security.NewHasher(4), 8*time.Hour)
	if err != nil {
		t.Fatalf("NewDemoClient: %v", err)
	}
	return c
}

func TestDemoSignIn(t *testing.T) {
	c := newDemoClient(t)
	ctx := context.Background()

	res, err := c.SignInWithPassword(ctx, DemoEmail, "Demo123!@#")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if res.UserID != demoUserID || !res.EmailConfirmed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("tokens missing")
	}
	if !res.ExpiresAt.After(time.Now()) {
		t.Fatal("session should expire in the future")
	}
}

func TestDemoSignInRejects(t *testing.T) {
	c := newDemoClient(t)
	ctx := context.Background()

	_, err := c.SignInWithPassword(ctx, "other@example.com", "Demo123!@#")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong email: want ErrInvalidCredentials, got %v", err)
	}
	_, err = c.SignInWithPassword(ctx, DemoEmail, "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
}

func TestDemoRefreshRotates(t *testing.T) {
	c := newDemoClient(t)
	ctx := context.Background()

	res, err := c.SignInWithPassword(ctx, DemoEmail, "Demo123!@#")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	ref, err := c.RefreshSession(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}
	if ref.RefreshToken == res.RefreshToken {
		t.Fatal("refresh token should rotate")
	}
	// The old token is dead after rotation.
	if _, err := c.RefreshSession(ctx, res.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("stale refresh token: want ErrInvalidCredentials, got %v", err)
	}
}

func TestDemoSignOutKillsRefresh(t *testing.T) {
	c := newDemoClient(t)
	ctx := context.Background()

	res, _ := c.SignInWithPassword(ctx, DemoEmail, "Demo123!@#")
	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := c.RefreshSession(ctx, res.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("refresh after sign-out: want ErrInvalidCredentials, got %v", err)
	}
}

func TestDemoProfile(t *testing.T) {
	c := newDemoClient(t)
	ctx := context.Background()

	p, err := c.FetchProfile(ctx, demoUserID)
	if err != nil || p == nil {
		t.Fatalf("FetchProfile: (%+v, %v)", p, err)
	}
	if p.Role != domain.RoleAdmin {
		t.Fatalf("demo profile role: want admin, got %s", p.Role)
	}
	if p2, err := c.FetchProfile(ctx, "someone-else"); err != nil || p2 != nil {
		t.Fatalf("unknown user: want absent, got (%+v, %v)", p2, err)
	}

	name := "Renamed"
	if err := c.UpdateProfile(ctx, demoUserID, ProfileUpdate{Name: &name}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	p, _ = c.FetchProfile(ctx, demoUserID)
	if p.Name != "Renamed" {
		t.Fatalf("profile update not applied: %+v", p)
	}
}
