// Package store persists the current session with an expiry-aware read:
// an expired record is treated as absent and actively cleared.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"auth-control-plane/internal/session/domain"
)

// Sentinel errors wrapped by store implementations so callers can classify
// failures without knowing the backing storage.
var (
	ErrReadFailed  = errors.New("session store read failed")
	ErrWriteFailed = errors.New("session store write failed")
)

// Store is the secure session store contract. Load returns (nil, nil) when
// no valid session is stored; an expired record counts as absent and is
// evicted on read. The store has no opinion on where data lives.
type Store interface {
	Save(ctx context.Context, s *domain.AuthSession) error
	Load(ctx context.Context) (*domain.AuthSession, error)
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process Store. Used in local mode and tests.
type MemoryStore struct {
	mu      sync.Mutex
	session *domain.AuthSession
	nowF    func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nowF: time.Now}
}

// Save stores a copy of s.
func (m *MemoryStore) Save(ctx context.Context, s *domain.AuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

// Load returns the stored session if present and unexpired. An expired
// record is cleared and reported absent.
func (m *MemoryStore) Load(ctx context.Context) (*domain.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	if !m.session.Valid(m.nowF()) {
		m.session = nil
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

// Clear drops the stored session unconditionally.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
