// Package httpapi provides the HTTP JSON API of the control server.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/app/session"
	"github.com/osa030/19remote/internal/domain/fault"
	sessionkey "github.com/osa030/19remote/internal/domain/session"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Options holds router configuration.
type Options struct {
	CORSOrigins []string // "*" allows any origin
	MusicDir    string   // Served under /music/ when it exists
}

// Handler serves the HTTP API.
type Handler struct {
	manager  *session.Manager
	options  Options
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler.
func NewHandler(manager *session.Manager, options Options) *Handler {
	h := &Handler{
		manager: manager,
		options: options,
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      func(r *http.Request) bool { return h.originAllowed(r.Header.Get("Origin")) },
	}
	return h
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.corsMiddleware)
	router.Use(accessLogMiddleware)

	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)

	// Library
	router.HandleFunc("/api/music", h.LibraryHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/library", h.LibraryHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/search", h.SearchHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/library/refresh", h.RefreshHandler).Methods(http.MethodPost)

	// Settings
	router.HandleFunc("/api/config", h.GetConfigHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/config", h.SetConfigHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/server", h.GetServerHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/server", h.SetServerHandler).Methods(http.MethodPost)

	// Player
	router.HandleFunc("/api/status", h.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/player/{sessionKey}", h.PlayerHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/control/{sessionKey}/{command}", h.ControlHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/play/{sessionKey}", h.PlayHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playurl/{sessionKey}", h.PlayURLHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/ws/{sessionKey}", h.WebSocketHandler).Methods(http.MethodGet)

	// Preflight requests for every route
	router.PathPrefix("/api/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	h.mountMusic(router)
	return router
}

// mountMusic serves the music directory when it exists.
func (h *Handler) mountMusic(router *mux.Router) {
	dir := h.options.MusicDir
	if dir == "" {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		zlog.Warn().Msgf("music directory not found, /music is not served: dir=%s", dir)
		return
	}
	router.PathPrefix("/music/").Handler(http.StripPrefix("/music/", http.FileServer(http.Dir(dir))))
	zlog.Info().Msgf("serving music files: dir=%s", dir)
}

// corsMiddleware adds CORS headers for allowed origins.
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && h.originAllowed(origin) {
			if h.allowAnyOrigin() {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowAnyOrigin() bool {
	for _, o := range h.options.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (h *Handler) originAllowed(origin string) bool {
	if origin == "" || h.allowAnyOrigin() {
		return true
	}
	for _, o := range h.options.CORSOrigins {
		if strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	return false
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zlog.Debug().Msgf("%s %s status=%d duration=%v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Msgf("failed to write response: %v", err)
	}
}

// errorBody is the JSON body of every error response. Code names the error
// class, see fault.Code.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps err to a status code and writes an error body.
func writeError(w http.ResponseWriter, err error) {
	status := fault.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		zlog.Error().Msgf("request failed: %+v", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: fault.Code(err)})
}

// decodeBody decodes a JSON request body into out. An empty body leaves out
// untouched.
func decodeBody(r *http.Request, out any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "failed to read request body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fault.InvalidArgumentf("invalid JSON body: %v", err)
	}
	return nil
}

// sessionKeyVar parses the session key path variable.
func sessionKeyVar(r *http.Request) (sessionkey.Key, error) {
	return sessionkey.ParseKey(mux.Vars(r)["sessionKey"])
}

// HealthHandler reports liveness.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusHandler reports the manager status.
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}
