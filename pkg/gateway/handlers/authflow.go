package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fluentvoice/fluentvoice/pkg/auth"
	"github.com/fluentvoice/fluentvoice/pkg/store"
)

// AuthService drives the hosted login flow. *auth.Service satisfies it.
type AuthService interface {
	LoginURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (auth.Identity, error)
}

// LoginHandler redirects the browser to the hosted sign-in page.
type LoginHandler struct {
	Auth   AuthService
	Logger *slog.Logger
}

func (h LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.Auth == nil {
		writeError(w, r, http.StatusServiceUnavailable, "auth is not configured")
		return
	}
	url, err := h.Auth.LoginURL(r.URL.Query().Get("state"))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("build login url", "error", err)
		}
		writeError(w, r, http.StatusBadGateway, "login unavailable")
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// CallbackHandler completes the login: it exchanges the code, provisions
// the profile with the signup allowance on first sign-in, and issues the
// gateway session token.
type CallbackHandler struct {
	Auth                AuthService
	Sessions            *auth.Sessions
	Store               store.Store
	SignupCreditSeconds int
	Logger              *slog.Logger
}

func (h CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.Auth == nil {
		writeError(w, r, http.StatusServiceUnavailable, "auth is not configured")
		return
	}
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "missing code parameter")
		return
	}

	identity, err := h.Auth.ExchangeCode(r.Context(), code)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("exchange auth code", "error", err)
		}
		writeError(w, r, http.StatusUnauthorized, "sign-in failed")
		return
	}

	if _, err := h.Store.EnsureProfile(r.Context(), store.Profile{
		ID:            identity.UserID,
		Email:         identity.Email,
		DisplayName:   identity.DisplayName,
		CreditSeconds: h.SignupCreditSeconds,
	}); err != nil {
		if h.Logger != nil {
			h.Logger.Error("provision profile", "user", identity.UserID, "error", err)
		}
		writeError(w, r, http.StatusInternalServerError, "profile unavailable")
		return
	}

	token := h.Sessions.Issue(identity)
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  token,
		"userId": identity.UserID,
		"email":  identity.Email,
	})
}

// LogoutHandler revokes the caller's session token.
type LogoutHandler struct {
	Sessions *auth.Sessions
}

func (h LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(raw, "Bearer "); ok {
		h.Sessions.Revoke(strings.TrimSpace(token))
	}
	w.WriteHeader(http.StatusNoContent)
}
