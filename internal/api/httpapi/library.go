package httpapi

import (
	"net/http"

	"github.com/osa030/19remote/internal/domain/track"
)

// trackResponse is a library track with its resolved playable URL.
type trackResponse struct {
	track.Track
	PlayableURL string `json:"playable_url,omitempty"`
}

func (h *Handler) trackResponses(tracks []track.Track) []trackResponse {
	baseURL := h.manager.Settings().BaseURL()
	out := make([]trackResponse, len(tracks))
	for i, t := range tracks {
		out[i] = trackResponse{
			Track:       t,
			PlayableURL: t.PlayableURL(baseURL),
		}
	}
	return out
}

// LibraryHandler returns the catalog, read from its sources per request.
func (h *Handler) LibraryHandler(w http.ResponseWriter, r *http.Request) {
	lib := h.manager.Library().Browse(r.Context())
	writeJSON(w, http.StatusOK, h.trackResponses(lib.All()))
}

// SearchHandler returns tracks matching the q parameter, best first.
func (h *Handler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	results := h.manager.Library().Current().Search(query)
	writeJSON(w, http.StatusOK, h.trackResponses(results))
}

// refreshResponse is the body returned after a library refresh.
type refreshResponse struct {
	Source string `json:"source"`
	Tracks int    `json:"tracks"`
}

// RefreshHandler reloads the library used by the command processor.
func (h *Handler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	lib, err := h.manager.Library().Refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Source: lib.Source(),
		Tracks: lib.Len(),
	})
}
