// Package config loads and validates app config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Mode selects how credentials are verified.
const (
	// ModeBackend verifies credentials against the remote identity backend.
	ModeBackend = "backend"
	// ModeLocal runs without a backend: one fixed demo credential, demo
	// token fallback. Refused in production.
	ModeLocal = "local"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// AuthMode selects backend-integrated vs local/demo behavior.
	AuthMode string `mapstructure:"AUTH_MODE"`
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; required in backend mode.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret signs session tokens (HS256). Required in production; its
	// absence is tolerated only in local mode, where the demo fallback
	// encoding takes over.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim stamped on backend-mode tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim stamped on backend-mode tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// SessionTTLRaw is the session lifetime (e.g. "8h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// RefreshSkewRaw is how long before expiry a refresh fires (e.g. "5m").
	RefreshSkewRaw string `mapstructure:"REFRESH_SKEW"`
	// MinRefreshDelayRaw is the floor on the refresh timer (e.g. "1m") so
	// short-lived tokens cannot cause tight refresh loops.
	MinRefreshDelayRaw string `mapstructure:"MIN_REFRESH_DELAY"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// BackendURL is the credential backend base URL; required in backend mode.
	BackendURL string `mapstructure:"AUTH_BACKEND_URL"`
	// BackendKey authenticates this service to the credential backend.
	BackendKey string `mapstructure:"AUTH_BACKEND_KEY"`
	// OTLPEndpoint enables OpenTelemetry export when non-empty.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// AuthRateMax / AuthRateWindowRaw bound sign-in attempts per client key.
	AuthRateMax       int    `mapstructure:"AUTH_RATE_MAX"`
	AuthRateWindowRaw string `mapstructure:"AUTH_RATE_WINDOW"`
	// APIRateMax / APIRateWindowRaw bound generic API calls per client key.
	APIRateMax       int    `mapstructure:"API_RATE_MAX"`
	APIRateWindowRaw string `mapstructure:"API_RATE_WINDOW"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI); env vars
// override .env. Returns an error for misconfigurations that must stop
// startup, notably production mode without a signing secret.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("AUTH_MODE", ModeLocal)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "authplane")
	v.SetDefault("JWT_AUDIENCE", "authplane-api")
	v.SetDefault("SESSION_TTL", "8h")
	v.SetDefault("REFRESH_SKEW", "5m")
	v.SetDefault("MIN_REFRESH_DELAY", "1m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("AUTH_BACKEND_URL", "")
	v.SetDefault("AUTH_BACKEND_KEY", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("AUTH_RATE_MAX", 5)
	v.SetDefault("AUTH_RATE_WINDOW", "15m")
	v.SetDefault("API_RATE_MAX", 100)
	v.SetDefault("API_RATE_WINDOW", "15m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.AuthMode != ModeBackend && cfg.AuthMode != ModeLocal {
		return nil, errors.New("config: AUTH_MODE must be backend or local")
	}
	if cfg.IsProduction() {
		if cfg.JWTSecret == "" {
			return nil, errors.New("config: JWT_SECRET must be set when APP_ENV=production")
		}
		if cfg.AuthMode == ModeLocal {
			return nil, errors.New("config: AUTH_MODE=local must not be used when APP_ENV=production")
		}
	}
	if cfg.AuthMode == ModeBackend {
		if cfg.BackendURL == "" {
			return nil, errors.New("config: AUTH_BACKEND_URL must be set when AUTH_MODE=backend")
		}
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when AUTH_MODE=backend")
		}
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// IsLocalMode reports whether credentials are verified locally (demo mode).
func (c *Config) IsLocalMode() bool { return c.AuthMode == ModeLocal }

// SessionTTL parses SESSION_TTL. Returns 8h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.SessionTTLRaw, 8*time.Hour)
}

// RefreshSkew parses REFRESH_SKEW. Returns 5m if unset or invalid.
func (c *Config) RefreshSkew() time.Duration {
	return parseDuration(c.RefreshSkewRaw, 5*time.Minute)
}

// MinRefreshDelay parses MIN_REFRESH_DELAY. Returns 1m if unset or invalid.
func (c *Config) MinRefreshDelay() time.Duration {
	return parseDuration(c.MinRefreshDelayRaw, time.Minute)
}

// AuthRateWindow parses AUTH_RATE_WINDOW. Returns 15m if unset or invalid.
func (c *Config) AuthRateWindow() time.Duration {
	return parseDuration(c.AuthRateWindowRaw, 15*time.Minute)
}

// APIRateWindow parses API_RATE_WINDOW. Returns 15m if unset or invalid.
func (c *Config) APIRateWindow() time.Duration {
	return parseDuration(c.APIRateWindowRaw, 15*time.Minute)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
