package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth-control-plane/internal/api"
	"auth-control-plane/internal/audit"
	"auth-control-plane/internal/backend"
	"auth-control-plane/internal/config"
	"auth-control-plane/internal/db"
	"auth-control-plane/internal/ratelimit"
	"auth-control-plane/internal/security"
	"auth-control-plane/internal/session"
	"auth-control-plane/internal/session/store"
	"auth-control-plane/internal/telemetry"
	"auth-control-plane/internal/telemetry/otel"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "auth-control-plane", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	tokens, err := security.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.IsLocalMode())
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	var (
		database     *sql.DB
		sessionStore store.Store
		auditRepo    audit.Repository
		client       backend.Client
	)
	if cfg.IsLocalMode() {
		sessionStore = store.NewMemoryStore()
		auditRepo = audit.NewMemoryRepository()
		hasher := security.NewHasher(cfg.BcryptCost)
		client, err = backend.NewDemoClient(tokens, hasher, cfg.SessionTTL())
		if err != nil {
			log.Fatalf("demo backend: %v", err)
		}
		logger.Warn("running in local mode with the fixed demo credential")
	} else {
		database, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer database.Close()
		sessionStore = store.NewPostgresStore(database, store.DefaultStoreKey)
		auditRepo = audit.NewPostgresRepository(database)
		client = backend.NewHTTPClient(cfg.BackendURL, cfg.BackendKey)
	}

	authLimiter := ratelimit.New(cfg.AuthRateMax, cfg.AuthRateWindow())
	defer authLimiter.Close()
	apiLimiter := ratelimit.New(cfg.APIRateMax, cfg.APIRateWindow())
	defer apiLimiter.Close()

	manager := session.NewManager(client, sessionStore, authLimiter,
		audit.NewLogger(auditRepo, logger), metrics, logger, session.Config{
			StrictPasswordPolicy: !cfg.IsLocalMode(),
			RefreshSkew:          cfg.RefreshSkew(),
			MinRefreshDelay:      cfg.MinRefreshDelay(),
		})
	defer manager.Close()
	manager.Start(ctx)

	deps := api.RouterDeps{
		Manager:    manager,
		Tokens:     tokens,
		APILimiter: apiLimiter,
		Mode:       cfg.AuthMode,
		Version:    version,
	}
	if database != nil {
		deps.DBPinger = database
	}
	router := api.NewRouter(deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "mode", cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")
}
