package handlers

import (
	"log/slog"
	"net/http"

	"github.com/fluentvoice/fluentvoice/pkg/gateway/mw"
)

// CheckoutService creates hosted payment sessions.
type CheckoutService interface {
	CreateSession(userID string) (string, error)
}

// CheckoutHandler starts a credit top-up purchase and returns the hosted
// payment URL.
type CheckoutHandler struct {
	// Service is nil when checkout is not configured.
	Service CheckoutService
	Logger  *slog.Logger
}

func (h CheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if h.Service == nil {
		writeError(w, r, http.StatusServiceUnavailable, "checkout is not configured")
		return
	}
	identity, ok := mw.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no identity")
		return
	}

	url, err := h.Service.CreateSession(identity.UserID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("create checkout session", "user", identity.UserID, "error", err)
		}
		writeError(w, r, http.StatusBadGateway, "checkout unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
