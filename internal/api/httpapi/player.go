package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/osa030/19remote/internal/app/playback"
	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/track"
)

// PlayerHandler returns the session snapshot.
func (h *Handler) PlayerHandler(w http.ResponseWriter, r *http.Request) {
	key, err := sessionKeyVar(r)
	if err != nil {
		writeError(w, err)
		return
	}

	st, err := h.manager.Processor().Snapshot(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ControlHandler applies a named command and returns the new snapshot.
func (h *Handler) ControlHandler(w http.ResponseWriter, r *http.Request) {
	key, err := sessionKeyVar(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cmd, err := playback.ParseCommand(mux.Vars(r)["command"])
	if err != nil {
		writeError(w, err)
		return
	}

	payload := playback.Payload{}
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	st, err := h.manager.Processor().Apply(r.Context(), key, cmd, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// playResponse is the body of the play and playurl routes.
type playResponse struct {
	Status string          `json:"status"`
	Track  *track.Track    `json:"track,omitempty"`
	State  *playback.State `json:"state,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func writePlayError(w http.ResponseWriter, err error) {
	writeJSON(w, fault.HTTPStatus(err), playResponse{Status: "error", Error: err.Error()})
}

// PlayHandler starts a library track from a {track_id} body.
func (h *Handler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	key, err := sessionKeyVar(r)
	if err != nil {
		writePlayError(w, err)
		return
	}

	payload := playback.Payload{}
	if err := decodeBody(r, &payload); err != nil {
		writePlayError(w, err)
		return
	}
	if _, ok := payload["track_id"]; !ok {
		if _, ok := payload["trackId"]; !ok {
			writePlayError(w, fault.InvalidArgumentf("track_id is required"))
			return
		}
	}

	st, err := h.manager.Processor().Apply(r.Context(), key, playback.CommandPlay, payload)
	if err != nil {
		writePlayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playResponse{Status: "ok", Track: st.CurrentTrack, State: &st})
}

// PlayURLHandler queues an arbitrary http(s) URL from a {url} body.
func (h *Handler) PlayURLHandler(w http.ResponseWriter, r *http.Request) {
	key, err := sessionKeyVar(r)
	if err != nil {
		writePlayError(w, err)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writePlayError(w, err)
		return
	}

	t, st, err := h.manager.Processor().PlayURL(r.Context(), key, req.URL)
	if err != nil {
		writePlayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playResponse{Status: "ok", Track: &t, State: &st})
}
