// Package config loads gateway settings from FLUENT_-prefixed environment
// variables, with validation at startup so misconfiguration fails fast.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	// APIKey authorizes calls to the generative-audio and scoring
	// endpoints.
	APIKey string

	// DatabaseURL is the postgres DSN. Empty selects the in-memory store,
	// for credential-free local runs.
	DatabaseURL string

	AuthMode AuthMode

	// WorkOS AuthKit settings, required when AuthMode is required.
	WorkOSAPIKey    string
	WorkOSClientID  string
	AuthRedirectURI string
	SessionTTL      time.Duration

	// Stripe checkout settings. Empty StripeSecretKey disables the
	// checkout endpoint.
	StripeSecretKey    string
	StripePriceID      string
	CheckoutSuccessURL string
	CheckoutCancelURL  string

	// TopUpCreditSeconds is the credit grant attached to one checkout
	// purchase.
	TopUpCreditSeconds int

	// SignupCreditSeconds is the free allowance for new accounts.
	SignupCreditSeconds int

	// HistoryLimit caps session-history listings.
	HistoryLimit int

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("FLUENT_GATEWAY_ADDR", ":8080"),
		APIKey:              strings.TrimSpace(os.Getenv("FLUENT_API_KEY")),
		DatabaseURL:         strings.TrimSpace(os.Getenv("FLUENT_DATABASE_URL")),
		AuthMode:            AuthMode(envOr("FLUENT_AUTH_MODE", string(AuthModeRequired))),
		WorkOSAPIKey:        strings.TrimSpace(os.Getenv("FLUENT_WORKOS_API_KEY")),
		WorkOSClientID:      strings.TrimSpace(os.Getenv("FLUENT_WORKOS_CLIENT_ID")),
		AuthRedirectURI:     strings.TrimSpace(os.Getenv("FLUENT_AUTH_REDIRECT_URI")),
		SessionTTL:          envDurationOr("FLUENT_SESSION_TTL", 24*time.Hour),
		StripeSecretKey:     strings.TrimSpace(os.Getenv("FLUENT_STRIPE_SECRET_KEY")),
		StripePriceID:       strings.TrimSpace(os.Getenv("FLUENT_STRIPE_PRICE_ID")),
		CheckoutSuccessURL:  envOr("FLUENT_CHECKOUT_SUCCESS_URL", "http://localhost:3000/credits?status=success"),
		CheckoutCancelURL:   envOr("FLUENT_CHECKOUT_CANCEL_URL", "http://localhost:3000/credits?status=cancelled"),
		TopUpCreditSeconds:  envIntOr("FLUENT_TOPUP_CREDIT_SECONDS", 1800),
		SignupCreditSeconds: envIntOr("FLUENT_SIGNUP_CREDIT_SECONDS", 300),
		HistoryLimit:        envIntOr("FLUENT_HISTORY_LIMIT", 50),
		CORSAllowedOrigins:  make(map[string]struct{}),
		ReadHeaderTimeout:   envDurationOr("FLUENT_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("FLUENT_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("FLUENT_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("FLUENT_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("FLUENT_AUTH_MODE must be one of required|disabled")
	}

	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("FLUENT_API_KEY must be set")
	}
	if cfg.AuthMode == AuthModeRequired {
		if cfg.WorkOSAPIKey == "" {
			return Config{}, fmt.Errorf("FLUENT_WORKOS_API_KEY must be set when FLUENT_AUTH_MODE=required")
		}
		if cfg.WorkOSClientID == "" {
			return Config{}, fmt.Errorf("FLUENT_WORKOS_CLIENT_ID must be set when FLUENT_AUTH_MODE=required")
		}
		if cfg.AuthRedirectURI == "" {
			return Config{}, fmt.Errorf("FLUENT_AUTH_REDIRECT_URI must be set when FLUENT_AUTH_MODE=required")
		}
	}
	if cfg.StripeSecretKey != "" && cfg.StripePriceID == "" {
		return Config{}, fmt.Errorf("FLUENT_STRIPE_PRICE_ID must be set when checkout is enabled")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("FLUENT_SESSION_TTL must be > 0")
	}
	if cfg.TopUpCreditSeconds <= 0 {
		return Config{}, fmt.Errorf("FLUENT_TOPUP_CREDIT_SECONDS must be > 0")
	}
	if cfg.SignupCreditSeconds < 0 {
		return Config{}, fmt.Errorf("FLUENT_SIGNUP_CREDIT_SECONDS must be >= 0")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("FLUENT_HISTORY_LIMIT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("FLUENT_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("FLUENT_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("FLUENT_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

// CheckoutEnabled reports whether credit purchases are configured.
func (c Config) CheckoutEnabled() bool {
	return c.StripeSecretKey != ""
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
