package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auth-control-plane/internal/backend"
	"auth-control-plane/internal/ratelimit"
	"auth-control-plane/internal/security"
	"auth-control-plane/internal/session"
	"auth-control-plane/internal/session/store"
)

type testEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"requestId"`
	} `json:"meta"`
}

type testSession struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        struct {
		Email       string   `json:"email"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	} `json:"user"`
}

func newTestRouter(t *testing.T, authMax int) http.Handler {
	t.Helper()
	tokens, err := security.NewTokenService("test-secret-0123456789abcdef", "authplane", "authplane-api", false)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	demo, err := backend.NewDemoClient(tokens, security.NewHasher(4), time.Hour)
	if err != nil {
		t.Fatalf("NewDemoClient: %v", err)
	}
	limiter := ratelimit.New(authMax, time.Minute)
	t.Cleanup(limiter.Close)

	manager := session.NewManager(demo, store.NewMemoryStore(), limiter, nil, nil,
		slog.New(slog.DiscardHandler), session.Config{})
	t.Cleanup(manager.Close)

	return NewRouter(RouterDeps{
		Manager: manager,
		Tokens:  tokens,
		Mode:    "local",
		Version: "test",
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body, bearer string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var env testEnvelope
	if rr.Code != http.StatusNoContent && rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decoding envelope: %v\n%s", method, path, err, rr.Body.String())
		}
	}
	return rr, env
}

func signInDemo(t *testing.T, h http.Handler) testSession {
	t.Helper()
	rr, env := doJSON(t, h, http.MethodPost, "/v1/auth/signin",
		`{"email":"demo@example.com","password":"Demo123!@#"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("signin status = %d, body %s", rr.Code, rr.Body.String())
	}
	var sess testSession
	if err := json.Unmarshal(env.Data, &sess); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	return sess
}

func TestSignInEndpoint(t *testing.T) {
	h := newTestRouter(t, 5)

	sess := signInDemo(t, h)
	if sess.AccessToken == "" {
		t.Error("empty access token")
	}
	if sess.User.Role != "admin" {
		t.Errorf("role = %q, want admin", sess.User.Role)
	}
	if len(sess.User.Permissions) == 0 {
		t.Error("no permissions in payload")
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Errorf("expiresAt %v not in the future", sess.ExpiresAt)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	h := newTestRouter(t, 5)

	rr, env := doJSON(t, h, http.MethodPost, "/v1/auth/signin",
		`{"email":"demo@example.com","password":"WrongPass1!"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if env.Error == nil || env.Error.Code != "INVALID_CREDENTIALS" {
		t.Errorf("error = %+v, want INVALID_CREDENTIALS", env.Error)
	}
	if strings.Contains(env.Error.Message, "password was wrong") {
		t.Errorf("message %q reveals the failing factor", env.Error.Message)
	}
}

func TestSignInValidation(t *testing.T) {
	h := newTestRouter(t, 5)

	rr, env := doJSON(t, h, http.MethodPost, "/v1/auth/signin",
		`{"email":"not-an-email","password":"Demo123!@#"}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
	}

	rr, env = doJSON(t, h, http.MethodPost, "/v1/auth/signin", `{not json`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if env.Error == nil || env.Error.Code != "INVALID_JSON" {
		t.Errorf("error = %+v, want INVALID_JSON", env.Error)
	}
}

func TestSignInRateLimited(t *testing.T) {
	h := newTestRouter(t, 3)

	for i := 0; i < 3; i++ {
		rr, _ := doJSON(t, h, http.MethodPost, "/v1/auth/signin",
			`{"email":"demo@example.com","password":"WrongPass1!"}`, "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, rr.Code)
		}
	}

	rr, env := doJSON(t, h, http.MethodPost, "/v1/auth/signin",
		`{"email":"demo@example.com","password":"WrongPass1!"}`, "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if env.Error == nil || env.Error.Code != "RATE_LIMITED" {
		t.Errorf("error = %+v, want RATE_LIMITED", env.Error)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestSessionEndpoint(t *testing.T) {
	h := newTestRouter(t, 5)

	rr, env := doJSON(t, h, http.MethodGet, "/v1/auth/session", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rr.Code)
	}
	if env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Errorf("error = %+v, want UNAUTHORIZED", env.Error)
	}

	sess := signInDemo(t, h)
	rr, env = doJSON(t, h, http.MethodGet, "/v1/auth/session", "", sess.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var got testSession
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	if got.User.Email != "demo@example.com" {
		t.Errorf("email = %q", got.User.Email)
	}

	rr, _ = doJSON(t, h, http.MethodGet, "/v1/auth/session", "", "garbage-token")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rr.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	h := newTestRouter(t, 5)
	sess := signInDemo(t, h)

	rr, env := doJSON(t, h, http.MethodPost, "/v1/auth/refresh", "", sess.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var rotated testSession
	if err := json.Unmarshal(env.Data, &rotated); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	if rotated.AccessToken == "" {
		t.Error("empty rotated access token")
	}
}

func TestSignOutEndpoint(t *testing.T) {
	h := newTestRouter(t, 5)
	sess := signInDemo(t, h)

	rr, _ := doJSON(t, h, http.MethodPost, "/v1/auth/signout", "", sess.AccessToken)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}

	// The bearer token still verifies, but there is no session behind it.
	rr, _ = doJSON(t, h, http.MethodGet, "/v1/auth/session", "", sess.AccessToken)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("post-signout status = %d, want 401", rr.Code)
	}
}

func TestUpdateProfileEndpoint(t *testing.T) {
	h := newTestRouter(t, 5)
	sess := signInDemo(t, h)

	rr, env := doJSON(t, h, http.MethodPatch, "/v1/auth/profile",
		`{"name":"Demo Renamed"}`, sess.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var user struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(env.Data, &user); err != nil {
		t.Fatalf("decoding user: %v", err)
	}
	if user.Name != "Demo Renamed" {
		t.Errorf("name = %q, want updated", user.Name)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter(t, 5)

	rr, env := doJSON(t, h, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var data struct {
		Status string `json:"status"`
		Mode   string `json:"mode"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if data.Status != "healthy" || data.Mode != "local" {
		t.Errorf("health = %+v", data)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}
