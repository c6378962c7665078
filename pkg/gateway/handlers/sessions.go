package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fluentvoice/fluentvoice/pkg/gateway/mw"
	"github.com/fluentvoice/fluentvoice/pkg/store"
)

// SessionsHandler lists the caller's finished sessions, newest first.
type SessionsHandler struct {
	Store  store.Store
	Limit  int
	Logger *slog.Logger
}

func (h SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	identity, ok := mw.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no identity")
		return
	}

	limit := h.Limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	records, err := h.Store.ListSessionRecords(r.Context(), identity.UserID, limit)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("list sessions", "user", identity.UserID, "error", err)
		}
		writeError(w, r, http.StatusInternalServerError, "session history unavailable")
		return
	}
	if records == nil {
		records = []store.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": records})
}
