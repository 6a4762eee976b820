// Package api assembles the HTTP surface: router, middleware chain, and
// endpoint handlers.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"auth-control-plane/internal/api/handler"
	"auth-control-plane/internal/api/middleware"
	"auth-control-plane/internal/ratelimit"
	"auth-control-plane/internal/security"
	"auth-control-plane/internal/session"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Manager    *session.Manager
	Tokens     *security.TokenService
	APILimiter *ratelimit.Limiter
	DBPinger   handler.DBPinger
	Mode       string
	Version    string
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	if deps.APILimiter != nil {
		r.Use(middleware.RateLimit(deps.APILimiter))
	}

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Mode, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	authHandler := handler.NewAuthHandler(deps.Manager)
	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/signin", authHandler.SignIn)
		r.Post("/signup", authHandler.SignUp)
		r.Post("/password-reset", authHandler.PasswordReset)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Tokens))
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/signout", authHandler.SignOut)
			r.Get("/session", authHandler.Session)
			r.Patch("/profile", authHandler.UpdateProfile)
		})
	})

	return r
}
