package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"auth-control-plane/internal/session/domain"
)

const defaultTimeout = 15 * time.Second

// HTTPClient talks to the credential backend over JSON/HTTP.
type HTTPClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewHTTPClient returns a client for the backend at baseURL authenticating
// with apiKey.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
	ExpiresAt      int64  `json:"expiresAt"` // epoch milliseconds
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"emailConfirmed"`
}

// SignInWithPassword verifies the password remotely and returns the
// backend-issued token pair. A 401 or 403 maps to ErrInvalidCredentials.
func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error) {
	var resp signInResponse
	err := c.do(ctx, http.MethodPost, "/auth/signin", signInRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &SignInResult{
		AccessToken:    resp.AccessToken,
		RefreshToken:   resp.RefreshToken,
		ExpiresAt:      time.UnixMilli(resp.ExpiresAt),
		UserID:         resp.UserID,
		Email:          resp.Email,
		EmailConfirmed: resp.EmailConfirmed,
	}, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// RefreshSession exchanges the refresh token for a rotated pair.
func (c *HTTPClient) RefreshSession(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	var resp refreshResponse
	err := c.do(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.UnixMilli(resp.ExpiresAt),
	}, nil
}

type signUpRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Name           string `json:"name,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// SignUp registers a new account; the backend answers with a pending
// confirmation, so no tokens are returned.
func (c *HTTPClient) SignUp(ctx context.Context, email, password string, profile Profile) error {
	return c.do(ctx, http.MethodPost, "/auth/signup", signUpRequest{
		Email:          email,
		Password:       password,
		Name:           profile.Name,
		OrganizationID: profile.OrganizationID,
	}, nil)
}

// SignOut asks the backend to invalidate the remote session.
func (c *HTTPClient) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/signout", nil, nil)
}

type profileResponse struct {
	Name           string `json:"name"`
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId"`
}

// FetchProfile returns the profile row for userID, or (nil, nil) when the
// backend has none.
func (c *HTTPClient) FetchProfile(ctx context.Context, userID string) (*Profile, error) {
	var resp profileResponse
	err := c.do(ctx, http.MethodGet, "/auth/profile/"+url.PathEscape(userID), nil, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &Profile{
		Name:           resp.Name,
		Role:           domain.Role(resp.Role),
		OrganizationID: resp.OrganizationID,
	}, nil
}

type profileUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	OrganizationID *string `json:"organizationId,omitempty"`
}

// UpdateProfile patches the named fields on the backend profile row.
func (c *HTTPClient) UpdateProfile(ctx context.Context, userID string, fields ProfileUpdate) error {
	return c.do(ctx, http.MethodPatch, "/auth/profile/"+url.PathEscape(userID), profileUpdateRequest{
		Name:           fields.Name,
		OrganizationID: fields.OrganizationID,
	}, nil)
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// ResetPasswordForEmail asks the backend to send a reset link.
func (c *HTTPClient) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset", resetPasswordRequest{Email: email, RedirectURL: redirectURL}, nil)
}

// statusError carries a non-2xx backend status.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend: request failed status=%d body=%s", e.code, e.body)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrInvalidCredentials
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: string(b)}
	}
	if respBody == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}
