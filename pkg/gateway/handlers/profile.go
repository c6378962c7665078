package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fluentvoice/fluentvoice/pkg/gateway/mw"
	"github.com/fluentvoice/fluentvoice/pkg/store"
)

// ProfileHandler returns the caller's profile, provisioning it with the
// signup allowance on first access.
type ProfileHandler struct {
	Store               store.Store
	SignupCreditSeconds int
	Logger              *slog.Logger
}

func (h ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	identity, ok := mw.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no identity")
		return
	}

	profile, err := h.Store.GetProfile(r.Context(), identity.UserID)
	if errors.Is(err, store.ErrNotFound) {
		profile, err = h.Store.EnsureProfile(r.Context(), store.Profile{
			ID:            identity.UserID,
			Email:         identity.Email,
			DisplayName:   identity.DisplayName,
			CreditSeconds: h.SignupCreditSeconds,
		})
	}
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("load profile", "user", identity.UserID, "error", err)
		}
		writeError(w, r, http.StatusInternalServerError, "profile unavailable")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
