package handlers

import (
	"net/http"

	"github.com/fluentvoice/fluentvoice/pkg/avatar"
)

// AvatarsHandler lists the tutor catalog. The system instruction stays
// server-side; clients only need presentation fields.
type AvatarsHandler struct{}

type avatarView struct {
	Name        string `json:"name"`
	Accent      string `json:"accent"`
	VoiceName   string `json:"voiceName"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

func (AvatarsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	all := avatar.All()
	views := make([]avatarView, 0, len(all))
	for _, a := range all {
		views = append(views, avatarView{
			Name:        a.Name,
			Accent:      a.Accent,
			VoiceName:   a.VoiceName,
			Description: a.Description,
			ImageURL:    a.ImageURL,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"avatars": views})
}
