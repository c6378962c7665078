// Package handlers implements the gateway's HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fluentvoice/fluentvoice/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Pinger is implemented by stores that can verify connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ReadyHandler struct {
	Config config.Config

	// Store is nil for the in-memory store, which is always ready.
	Store Pinger

	// Draining reports whether shutdown has begun; nil means never.
	Draining func() bool
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK              bool     `json:"ok"`
		AuthMode        string   `json:"auth_mode"`
		CheckoutEnabled bool     `json:"checkout_enabled"`
		Issues          []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)

	if h.Draining != nil && h.Draining() {
		issues = append(issues, "draining")
	}

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}

	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			issues = append(issues, "store unreachable: "+err.Error())
		}
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:              ok,
		AuthMode:        string(h.Config.AuthMode),
		CheckoutEnabled: h.Config.CheckoutEnabled(),
		Issues:          issues,
	})
}
