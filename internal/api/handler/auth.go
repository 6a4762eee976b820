// Package handler implements the HTTP endpoints of the auth API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"auth-control-plane/internal/api/middleware"
	"auth-control-plane/internal/api/response"
	"auth-control-plane/internal/backend"
	"auth-control-plane/internal/session"
	"auth-control-plane/internal/session/domain"
)

type signInRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type passwordResetRequest struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl"`
}

type updateProfileRequest struct {
	Name           *string `json:"name"`
	OrganizationID *string `json:"organizationId"`
}

type userPayload struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name,omitempty"`
	Role           string     `json:"role"`
	OrganizationID string     `json:"organizationId,omitempty"`
	Permissions    []string   `json:"permissions"`
	EmailVerified  bool       `json:"emailVerified"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
}

type sessionPayload struct {
	AccessToken string      `json:"accessToken"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	User        userPayload `json:"user"`
}

func toSessionPayload(s *domain.AuthSession) sessionPayload {
	return sessionPayload{
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
		User: userPayload{
			ID:             s.User.ID,
			Email:          s.User.Email,
			Name:           s.User.Name,
			Role:           string(s.User.Role),
			OrganizationID: s.User.OrganizationID,
			Permissions:    s.User.Permissions,
			EmailVerified:  s.User.EmailVerified,
			LastLogin:      s.User.LastLogin,
		},
	}
}

// AuthHandler exposes the session manager over HTTP.
type AuthHandler struct {
	manager *session.Manager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(manager *session.Manager) *AuthHandler {
	return &AuthHandler{manager: manager}
}

// SignIn handles POST /v1/auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	sess, err := h.manager.SignIn(r.Context(), domain.Credentials{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	}, middleware.ClientIP(r))
	if err != nil {
		writeAuthError(w, err, requestID)
		return
	}
	response.Success(w, http.StatusOK, toSessionPayload(sess), requestID)
}

// SignUp handles POST /v1/auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	if err := h.manager.SignUp(r.Context(), req.Email, req.Password, req.Name); err != nil {
		writeAuthError(w, err, requestID)
		return
	}
	response.Success(w, http.StatusAccepted, nil, requestID)
}

// Refresh handles POST /v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if err := h.manager.Refresh(r.Context()); err != nil {
		writeAuthError(w, err, requestID)
		return
	}
	sess := h.manager.CurrentSession()
	if sess == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "No active session", requestID)
		return
	}
	response.Success(w, http.StatusOK, toSessionPayload(sess), requestID)
}

// SignOut handles POST /v1/auth/signout.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.manager.SignOut(r.Context())
	response.NoContent(w)
}

// PasswordReset handles POST /v1/auth/password-reset.
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	if err := h.manager.ResetPassword(r.Context(), req.Email, req.RedirectURL); err != nil {
		writeAuthError(w, err, requestID)
		return
	}
	response.Success(w, http.StatusAccepted, nil, requestID)
}

// Session handles GET /v1/auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	sess := h.manager.CurrentSession()
	if sess == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "No active session", requestID)
		return
	}
	response.Success(w, http.StatusOK, toSessionPayload(sess), requestID)
}

// UpdateProfile handles PATCH /v1/auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	err := h.manager.UpdateProfile(r.Context(), backend.ProfileUpdate{
		Name:           req.Name,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		writeAuthError(w, err, requestID)
		return
	}
	sess := h.manager.CurrentSession()
	if sess == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "No active session", requestID)
		return
	}
	response.Success(w, http.StatusOK, toSessionPayload(sess).User, requestID)
}

func writeAuthError(w http.ResponseWriter, err error, requestID string) {
	var ae *session.AuthError
	if !errors.As(err, &ae) {
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", requestID)
		return
	}
	switch ae.Kind {
	case session.AuthRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(int(ae.RetryAfter.Seconds())+1))
		response.Err(w, http.StatusTooManyRequests, "RATE_LIMITED", ae.Error(), requestID)
	case session.AuthInvalidCredentials:
		response.Err(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", ae.Error(), requestID)
	case session.AuthInvalidInput:
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", ae.Error(),
			map[string]string{"field": ae.Field}, requestID)
	default:
		response.Err(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", ae.Error(), requestID)
	}
}
