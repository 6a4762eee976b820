package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"auth-control-plane/internal/audit"
	"auth-control-plane/internal/backend"
	"auth-control-plane/internal/ratelimit"
	"auth-control-plane/internal/rbac"
	"auth-control-plane/internal/session/domain"
	"auth-control-plane/internal/session/store"
	"auth-control-plane/internal/telemetry"
	"auth-control-plane/internal/validate"
)

// State is the session lifecycle phase.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateRestoring     State = "restoring"
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
	StateRefreshing    State = "refreshing"
)

const (
	defaultRefreshSkew     = 5 * time.Minute
	defaultMinRefreshDelay = time.Minute
)

// Subscriber receives the new session on every transition; nil means
// signed out.
type Subscriber func(*domain.AuthSession)

// Config tunes manager behavior. Zero durations fall back to defaults.
type Config struct {
	StrictPasswordPolicy bool
	RefreshSkew          time.Duration
	MinRefreshDelay      time.Duration
}

// Manager owns the session state machine: it signs users in through the
// credential backend, schedules token refresh ahead of expiry, persists
// the session when asked to, and notifies subscribers of changes.
type Manager struct {
	client  backend.Client
	store   store.Store
	limiter *ratelimit.Limiter
	auditor *audit.Logger
	metrics *telemetry.Metrics
	log     *slog.Logger

	strictPassword  bool
	refreshSkew     time.Duration
	minRefreshDelay time.Duration

	nowF      func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer

	// opMu serializes backend round-trips so two credential operations
	// never interleave. Never held together with mu acquisitions that
	// wait on opMu.
	opMu sync.Mutex

	mu          sync.Mutex
	state       State
	session     *domain.AuthSession
	remembered  bool
	timer       *time.Timer
	gen         uint64
	closed      bool
	subscribers map[string]Subscriber
}

// NewManager wires the manager; call Start to restore a persisted
// session before serving traffic.
func NewManager(
	client backend.Client,
	st store.Store,
	limiter *ratelimit.Limiter,
	auditor *audit.Logger,
	metrics *telemetry.Metrics,
	log *slog.Logger,
	cfg Config,
) *Manager {
	if log == nil {
		log = slog.Default()
	}
	skew := cfg.RefreshSkew
	if skew <= 0 {
		skew = defaultRefreshSkew
	}
	minDelay := cfg.MinRefreshDelay
	if minDelay <= 0 {
		minDelay = defaultMinRefreshDelay
	}
	return &Manager{
		client:          client,
		store:           st,
		limiter:         limiter,
		auditor:         auditor,
		metrics:         metrics,
		log:             log,
		strictPassword:  cfg.StrictPasswordPolicy,
		refreshSkew:     skew,
		minRefreshDelay: minDelay,
		nowF:            time.Now,
		afterFunc:       time.AfterFunc,
		state:           StateUninitialized,
		subscribers:     make(map[string]Subscriber),
	}
}

// State reports the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start restores a persisted session if one exists and is still valid.
// A missing, expired, or unreadable session leaves the manager
// anonymous; restore never fails the caller.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return
	}
	m.state = StateRestoring
	m.mu.Unlock()

	sess, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("session restore failed", "error", err)
	}

	m.mu.Lock()
	if sess != nil && sess.Valid(m.nowF()) {
		m.session = sess
		m.remembered = true
		m.state = StateAuthenticated
		m.scheduleRefreshLocked()
		subs := m.snapshotSubscribersLocked()
		m.mu.Unlock()
		m.notify(subs, sess)
		m.log.Info("session restored", "user_id", sess.User.ID)
		return
	}
	m.state = StateAnonymous
	m.mu.Unlock()

	if sess != nil {
		// Stored session outlived its expiry; drop it.
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn("clearing stale session failed", "error", err)
		}
	}
}

// SignIn validates credentials, authenticates against the backend, and
// installs the resulting session. clientKey identifies the caller for
// rate limiting, typically the remote address.
func (m *Manager) SignIn(ctx context.Context, creds domain.Credentials, clientKey string) (*domain.AuthSession, error) {
	if m.limiter != nil {
		res := m.limiter.Allow(clientKey)
		if !res.Allowed {
			retry := res.ResetTime.Sub(m.nowF())
			if retry < 0 {
				retry = 0
			}
			m.auditor.LogEvent(ctx, "", audit.ActionSignInRateLimited, clientKey, "")
			m.metrics.RecordSignIn(ctx, telemetry.OutcomeRateLimited)
			return nil, &AuthError{Kind: AuthRateLimited, RetryAfter: retry}
		}
	}

	email, err := validate.NormalizeEmail(creds.Email)
	if err != nil {
		m.metrics.RecordSignIn(ctx, telemetry.OutcomeInvalidInput)
		return nil, &AuthError{Kind: AuthInvalidInput, Field: "email", cause: err}
	}
	if err := validate.Password(creds.Password, m.strictPassword); err != nil {
		m.metrics.RecordSignIn(ctx, telemetry.OutcomeInvalidInput)
		return nil, &AuthError{Kind: AuthInvalidInput, Field: "password", cause: err}
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	res, err := m.client.SignInWithPassword(ctx, email, creds.Password)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidCredentials) {
			m.auditor.LogEvent(ctx, "", audit.ActionSignInFailure, clientKey, "")
			m.metrics.RecordSignIn(ctx, telemetry.OutcomeInvalidCredentials)
			return nil, &AuthError{Kind: AuthInvalidCredentials, cause: err}
		}
		m.metrics.RecordSignIn(ctx, telemetry.OutcomeUnavailable)
		return nil, &AuthError{Kind: AuthServiceUnavailable, cause: err}
	}

	user, err := m.buildUser(ctx, res)
	if err != nil {
		m.metrics.RecordSignIn(ctx, telemetry.OutcomeUnavailable)
		return nil, &AuthError{Kind: AuthServiceUnavailable, cause: err}
	}

	sess := &domain.AuthSession{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		User:         *user,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, &AuthError{Kind: AuthServiceUnavailable, cause: errors.New("manager closed")}
	}
	m.session = sess
	m.remembered = creds.RememberMe
	m.state = StateAuthenticated
	m.scheduleRefreshLocked()
	subs := m.snapshotSubscribersLocked()
	m.mu.Unlock()

	if creds.RememberMe {
		if err := m.store.Save(ctx, sess); err != nil {
			m.log.Warn("session persist failed", "error", err, "user_id", user.ID)
		}
	} else {
		// A previously remembered session must not survive this one.
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn("clearing persisted session failed", "error", err)
		}
	}

	m.notify(subs, sess)
	m.auditor.LogEvent(ctx, user.ID, audit.ActionSignInSuccess, clientKey, "")
	m.metrics.RecordSignIn(ctx, telemetry.OutcomeSuccess)
	m.log.Info("sign-in", "user_id", user.ID, "role", user.Role)
	return sess.Copy(), nil
}

func (m *Manager) buildUser(ctx context.Context, res *backend.SignInResult) (*domain.AuthUser, error) {
	profile, err := m.client.FetchProfile(ctx, res.UserID)
	if err != nil {
		return nil, err
	}
	role := domain.RoleUser
	name := ""
	orgID := ""
	if profile != nil {
		if profile.Role != "" {
			role = profile.Role
		}
		name = validate.SanitizeFreeText(profile.Name)
		orgID = profile.OrganizationID
	}
	now := m.nowF()
	return &domain.AuthUser{
		ID:             res.UserID,
		Email:          res.Email,
		Name:           name,
		Role:           role,
		OrganizationID: orgID,
		Permissions:    rbac.PermissionsFor(role),
		EmailVerified:  res.EmailConfirmed,
		LastLogin:      &now,
	}, nil
}

// Refresh exchanges the refresh token for fresh credentials. A failure
// clears the session and leaves the manager anonymous; there is no
// retry. A refresh that completes after sign-out is discarded.
func (m *Manager) Refresh(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil
	}
	gen := m.gen
	refreshToken := m.session.RefreshToken
	m.state = StateRefreshing
	m.mu.Unlock()

	res, err := m.client.RefreshSession(ctx, refreshToken)

	m.mu.Lock()
	if m.gen != gen {
		// Signed out while the refresh was in flight; the sign-out wins.
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.session = nil
		m.remembered = false
		m.state = StateAnonymous
		m.cancelTimerLocked()
		subs := m.snapshotSubscribersLocked()
		m.mu.Unlock()

		if cerr := m.store.Clear(ctx); cerr != nil {
			m.log.Warn("clearing session after refresh failure", "error", cerr)
		}
		m.notify(subs, nil)
		m.auditor.LogEvent(ctx, "", audit.ActionRefreshFailure, "", "")
		m.metrics.RecordRefresh(ctx, false)
		m.log.Warn("session refresh failed", "error", err)
		return &AuthError{Kind: AuthServiceUnavailable, cause: err}
	}

	sess := m.session.Copy()
	sess.AccessToken = res.AccessToken
	sess.RefreshToken = res.RefreshToken
	sess.ExpiresAt = res.ExpiresAt
	m.session = sess
	m.state = StateAuthenticated
	m.scheduleRefreshLocked()
	remembered := m.remembered
	subs := m.snapshotSubscribersLocked()
	userID := sess.User.ID
	m.mu.Unlock()

	if remembered {
		if err := m.store.Save(ctx, sess); err != nil {
			m.log.Warn("session persist failed", "error", err, "user_id", userID)
		}
	}
	m.notify(subs, sess)
	m.auditor.LogEvent(ctx, userID, audit.ActionRefresh, "", "")
	m.metrics.RecordRefresh(ctx, true)
	return nil
}

// SignOut clears the session locally, cancels any scheduled refresh,
// and invalidates in-flight refresh results. The remote revocation is
// best effort; local clearing never depends on it.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.gen++
	userID := ""
	if m.session != nil {
		userID = m.session.User.ID
	}
	m.session = nil
	m.remembered = false
	m.state = StateAnonymous
	m.cancelTimerLocked()
	subs := m.snapshotSubscribersLocked()
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn("clearing persisted session failed", "error", err)
	}
	if err := m.client.SignOut(ctx); err != nil {
		m.log.Warn("remote sign-out failed", "error", err)
	}

	m.notify(subs, nil)
	m.auditor.LogEvent(ctx, userID, audit.ActionSignOut, "", "")
	m.metrics.RecordSignOut(ctx)
	m.log.Info("sign-out", "user_id", userID)
}

// SignUp registers a new account. Registration always enforces the
// strict password policy regardless of mode.
func (m *Manager) SignUp(ctx context.Context, email, password, name string) error {
	normalized, err := validate.NormalizeEmail(email)
	if err != nil {
		return &AuthError{Kind: AuthInvalidInput, Field: "email", cause: err}
	}
	if err := validate.Password(password, true); err != nil {
		return &AuthError{Kind: AuthInvalidInput, Field: "password", cause: err}
	}
	clean, err := validate.DisplayName(name)
	if err != nil {
		return &AuthError{Kind: AuthInvalidInput, Field: "name", cause: err}
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	if err := m.client.SignUp(ctx, normalized, password, backend.Profile{Name: clean, Role: domain.RoleUser}); err != nil {
		return &AuthError{Kind: AuthServiceUnavailable, cause: err}
	}
	m.auditor.LogEvent(ctx, "", audit.ActionSignUp, "", "")
	return nil
}

// ResetPassword asks the backend to start a password-reset flow. The
// outcome never reveals whether the address has an account.
func (m *Manager) ResetPassword(ctx context.Context, email, redirectURL string) error {
	normalized, err := validate.NormalizeEmail(email)
	if err != nil {
		return &AuthError{Kind: AuthInvalidInput, Field: "email", cause: err}
	}
	if err := m.client.ResetPasswordForEmail(ctx, normalized, redirectURL); err != nil {
		m.log.Warn("password reset request failed", "error", err)
		return &AuthError{Kind: AuthServiceUnavailable, cause: err}
	}
	m.auditor.LogEvent(ctx, "", audit.ActionPasswordReset, "", "")
	return nil
}

// UpdateProfile changes mutable profile fields on the backend and in
// the live session. Role and permissions are not caller-editable.
func (m *Manager) UpdateProfile(ctx context.Context, update backend.ProfileUpdate) error {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return &AuthError{Kind: AuthInvalidCredentials, cause: errors.New("not authenticated")}
	}
	userID := m.session.User.ID
	m.mu.Unlock()

	if update.Name != nil {
		clean, err := validate.DisplayName(*update.Name)
		if err != nil {
			return &AuthError{Kind: AuthInvalidInput, Field: "name", cause: err}
		}
		update.Name = &clean
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	if err := m.client.UpdateProfile(ctx, userID, update); err != nil {
		return &AuthError{Kind: AuthServiceUnavailable, cause: err}
	}

	m.mu.Lock()
	if m.session == nil || m.session.User.ID != userID {
		m.mu.Unlock()
		return nil
	}
	sess := m.session.Copy()
	if update.Name != nil {
		sess.User.Name = *update.Name
	}
	if update.OrganizationID != nil {
		sess.User.OrganizationID = *update.OrganizationID
	}
	m.session = sess
	remembered := m.remembered
	subs := m.snapshotSubscribersLocked()
	m.mu.Unlock()

	if remembered {
		if err := m.store.Save(ctx, sess); err != nil {
			m.log.Warn("session persist failed", "error", err, "user_id", userID)
		}
	}
	m.notify(subs, sess)
	return nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *Manager) CurrentUser() *domain.AuthUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || !m.session.Valid(m.nowF()) {
		return nil
	}
	u := m.session.User
	u.Permissions = append([]string(nil), u.Permissions...)
	return &u
}

// CurrentSession returns a copy of the live session, or nil.
func (m *Manager) CurrentSession() *domain.AuthSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || !m.session.Valid(m.nowF()) {
		return nil
	}
	return m.session.Copy()
}

// IsAuthenticated checks the expiry against the clock on every call; a
// session at or past its expiry instant reports false.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.session.Valid(m.nowF())
}

// HasPermission reports whether the signed-in user holds the permission.
func (m *Manager) HasPermission(permission string) bool {
	return rbac.HasPermission(m.CurrentUser(), permission)
}

// HasRole reports whether the signed-in user has exactly the role.
func (m *Manager) HasRole(role domain.Role) bool {
	u := m.CurrentUser()
	return u != nil && u.Role == role
}

// OnSessionChange registers a subscriber and returns its unsubscribe
// function. Each transition invokes every subscriber exactly once.
func (m *Manager) OnSessionChange(fn Subscriber) func() {
	id := uuid.New().String()
	m.mu.Lock()
	m.subscribers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// Close cancels the refresh timer and invalidates in-flight operations.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.gen++
	m.cancelTimerLocked()
}

func (m *Manager) scheduleRefreshLocked() {
	m.cancelTimerLocked()
	if m.session == nil {
		return
	}
	delay := m.session.ExpiresAt.Sub(m.nowF()) - m.refreshSkew
	if delay < m.minRefreshDelay {
		delay = m.minRefreshDelay
	}
	m.timer = m.afterFunc(delay, func() {
		if err := m.Refresh(context.Background()); err != nil {
			m.log.Warn("scheduled refresh failed", "error", err)
		}
	})
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) snapshotSubscribersLocked() []Subscriber {
	subs := make([]Subscriber, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func (m *Manager) notify(subs []Subscriber, sess *domain.AuthSession) {
	for _, fn := range subs {
		if sess == nil {
			fn(nil)
			continue
		}
		fn(sess.Copy())
	}
}
