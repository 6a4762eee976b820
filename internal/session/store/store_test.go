package store

import (
	"context"
	"testing"
	"time"

	"auth-control-plane/internal/session/domain"
)

func testSession(expiresAt time.Time) *domain.AuthSession {
	return &domain.AuthSession{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expiresAt,
		User: domain.AuthUser{
			ID:          "u-1",
			Email:       "user@example.com",
			Role:        domain.RoleUser,
			Permissions: []string{"read", "write"},
		},
	}
}

func TestMemoryStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.nowF = func() time.Time { return now }

	if err := m.Save(ctx, testSession(now.Add(time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.User.ID != "u-1" {
		t.Fatalf("Load: want session for u-1, got %+v", got)
	}
}

func TestMemoryStoreLoadEmpty(t *testing.T) {
	got, err := NewMemoryStore().Load(context.Background())
	if err != nil || got != nil {
		t.Fatalf("empty store: want (nil, nil), got (%+v, %v)", got, err)
	}
}

func TestMemoryStoreLazyEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.nowF = func() time.Time { return now }

	// Persisted with expires in the past.
	if err := m.Save(ctx, testSession(now.Add(-time.Minute))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := m.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("expired record: want absent, got (%+v, %v)", got, err)
	}
	// The record is gone, not merely ignored: the next Load sees an empty
	// store without re-running eviction.
	if m.session != nil {
		t.Fatal("expired record should be evicted on read")
	}
	got, err = m.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("second Load after eviction: want absent, got (%+v, %v)", got, err)
	}
}

func TestMemoryStoreExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.nowF = func() time.Time { return now }

	// expiresAt == now is already expired, not valid-until.
	if err := m.Save(ctx, testSession(now)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, _ := m.Load(ctx); got != nil {
		t.Fatal("session expiring exactly now must be absent")
	}
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.nowF = func() time.Time { return now }

	_ = m.Save(ctx, testSession(now.Add(time.Hour)))
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := m.Load(ctx); got != nil {
		t.Fatal("Clear should drop the session")
	}
}

func TestMemoryStoreSaveCopies(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.nowF = func() time.Time { return now }

	s := testSession(now.Add(time.Hour))
	_ = m.Save(ctx, s)
	s.AccessToken = "mutated"

	got, _ := m.Load(ctx)
	if got.AccessToken != "access" {
		t.Fatal("Save must copy, not alias, the caller's session")
	}
}
