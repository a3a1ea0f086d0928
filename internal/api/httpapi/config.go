package httpapi

import (
	"net/http"
)

// configBody is the web UI shape of the base URL setting. PollIntervalMs
// is read-only and only reported by GET.
type configBody struct {
	BaseURL        string `json:"baseUrl"`
	PollIntervalMs int64  `json:"pollIntervalMs,omitempty"`
}

// serverBody is the bot shape of the base URL setting.
type serverBody struct {
	ServerURL string `json:"server_url"`
}

// GetConfigHandler returns the base URL setting and the state poll interval.
func (h *Handler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configBody{
		BaseURL:        h.manager.Settings().BaseURL(),
		PollIntervalMs: h.manager.PollInterval().Milliseconds(),
	})
}

// SetConfigHandler replaces the base URL setting.
func (h *Handler) SetConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req configBody
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	baseURL, err := h.manager.Settings().SetBaseURL(req.BaseURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Message string     `json:"message"`
		Config  configBody `json:"config"`
	}{
		Message: "Configuration updated",
		Config:  configBody{BaseURL: baseURL},
	})
}

// GetServerHandler returns the base URL setting in the bot shape.
func (h *Handler) GetServerHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serverBody{ServerURL: h.manager.Settings().BaseURL()})
}

// SetServerHandler replaces the base URL setting from a {url} body.
func (h *Handler) SetServerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	serverURL, err := h.manager.Settings().SetServerURL(req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serverBody{ServerURL: serverURL})
}
