package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auth-control-plane/internal/session/domain"
)

// DefaultStoreKey is the row key used when one session per deployment is kept.
const DefaultStoreKey = "current"

// userSnapshot is the persisted form of domain.AuthUser.
type userSnapshot struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name,omitempty"`
	Role           string     `json:"role"`
	OrganizationID string     `json:"org_id,omitempty"`
	Permissions    []string   `json:"permissions"`
	EmailVerified  bool       `json:"email_verified"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// PostgresStore persists the session in the auth_sessions table, one row per
// store key, tagged with its own expiry so reads can self-evict.
type PostgresStore struct {
	db   *sql.DB
	key  string
	nowF func() time.Time
}

// NewPostgresStore returns a store bound to the given db and store key.
// An empty key selects DefaultStoreKey.
func NewPostgresStore(db *sql.DB, key string) *PostgresStore {
	if key == "" {
		key = DefaultStoreKey
	}
	return &PostgresStore{db: db, key: key, nowF: time.Now}
}

// Save upserts the session row keyed by the store key.
func (p *PostgresStore) Save(ctx context.Context, s *domain.AuthSession) error {
	snapshot, err := json.Marshal(userSnapshot{
		ID:             s.User.ID,
		Email:          s.User.Email,
		Name:           s.User.Name,
		Role:           string(s.User.Role),
		OrganizationID: s.User.OrganizationID,
		Permissions:    s.User.Permissions,
		EmailVerified:  s.User.EmailVerified,
		LastLogin:      s.User.LastLogin,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding user snapshot: %v", ErrWriteFailed, err)
	}
	const q = `
		INSERT INTO auth_sessions (store_key, access_token, refresh_token, expires_at, user_snapshot, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (store_key) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			user_snapshot = EXCLUDED.user_snapshot,
			updated_at = EXCLUDED.updated_at`
	if _, err := p.db.ExecContext(ctx, q, p.key, s.AccessToken, s.RefreshToken, s.ExpiresAt.UTC(), snapshot, p.nowF().UTC()); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// Load returns the stored session for the store key if present and unexpired.
// An expired row is deleted and reported absent.
func (p *PostgresStore) Load(ctx context.Context) (*domain.AuthSession, error) {
	const q = `
		SELECT access_token, refresh_token, expires_at, user_snapshot
		FROM auth_sessions
		WHERE store_key = $1`
	var (
		s       domain.AuthSession
		rawUser []byte
	)
	err := p.db.QueryRowContext(ctx, q, p.key).Scan(&s.AccessToken, &s.RefreshToken, &s.ExpiresAt, &rawUser)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	if !s.Valid(p.nowF()) {
		if err := p.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	var u userSnapshot
	if err := json.Unmarshal(rawUser, &u); err != nil {
		// Corrupt snapshot: evict rather than surface a broken session.
		_ = p.Clear(ctx)
		return nil, nil
	}
	s.User = domain.AuthUser{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           domain.Role(u.Role),
		OrganizationID: u.OrganizationID,
		Permissions:    u.Permissions,
		EmailVerified:  u.EmailVerified,
		LastLogin:      u.LastLogin,
	}
	return &s, nil
}

// Clear removes the session row unconditionally.
func (p *PostgresStore) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE store_key = $1`, p.key); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}
