// Package audit records authentication events best-effort: a failure to
// write an audit row is logged and never fails the auth operation itself.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Auth event actions recorded by the session manager.
const (
	ActionSignInSuccess     = "sign_in_success"
	ActionSignInFailure     = "sign_in_failure"
	ActionSignInRateLimited = "sign_in_rate_limited"
	ActionRefresh           = "session_refresh"
	ActionRefreshFailure    = "session_refresh_failure"
	ActionSignOut           = "sign_out"
	ActionSignUp            = "sign_up"
	ActionPasswordReset     = "password_reset_requested"
)

// Event is one audit log row. UserID may be empty for failed sign-ins;
// ClientKey is the rate-limit client identifier, not a network address.
type Event struct {
	ID        string
	UserID    string
	Action    string
	ClientKey string
	Metadata  string
	CreatedAt time.Time
}

// Repository persists audit events.
type Repository interface {
	Create(ctx context.Context, e *Event) error
}

// Logger writes audit events through a Repository. A nil repo disables
// auditing entirely.
type Logger struct {
	repo Repository
	log  *slog.Logger
}

// NewLogger returns a Logger over repo. logger may be nil for slog.Default.
func NewLogger(repo Repository, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{repo: repo, log: logger}
}

// LogEvent records one event. Best-effort: errors are logged, not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, clientKey, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	e := &Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		ClientKey: clientKey,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, e); err != nil {
		l.log.Error("audit: failed to record event", "action", action, "error", err)
	}
}

// MemoryRepository keeps events in memory. Local mode and tests.
type MemoryRepository struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Create appends a copy of e.
func (r *MemoryRepository) Create(ctx context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

// Events returns a snapshot of recorded events.
func (r *MemoryRepository) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
