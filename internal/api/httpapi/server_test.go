package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19remote/internal/app/notification"
	"github.com/osa030/19remote/internal/app/playback"
	"github.com/osa030/19remote/internal/app/session"
	"github.com/osa030/19remote/internal/infra/config"
)

const testCatalog = `[
  {"id": "t1", "title": "Blue Train", "artist": "John Coltrane", "album": "Blue Train", "duration": 643, "file_path": "music/blue_train.mp3"},
  {"id": "t2", "title": "So What", "artist": "Miles Davis", "album": "Kind of Blue", "duration": "562", "url": "https://cdn.example.com/so_what.mp3"},
  {"id": "t3", "title": "Naima", "artist": "John Coltrane", "album": "Giant Steps", "duration": "Unknown"}
]`

type testEnv struct {
	manager     *session.Manager
	router      http.Handler
	catalogPath string
	musicDir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "library.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o644))

	musicDir := filepath.Join(dir, "music")
	require.NoError(t, os.Mkdir(musicDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(musicDir, "a.mp3"), []byte("ID3"), 0o644))

	t.Setenv("REMOTE_CATALOG_PATH", catalogPath)
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	cfg.Filters = map[string]config.FilterConfig{
		"duplicate_track_filter": {Enabled: true},
	}

	m, err := session.NewManager(cfg, session.Dependencies{})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	m.Start(context.Background())

	h := NewHandler(m, Options{CORSOrigins: []string{"http://ui.local"}, MusicDir: musicDir})
	return &testEnv{
		manager:     m,
		router:      h.Router(),
		catalogPath: catalogPath,
		musicDir:    musicDir,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLibraryRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/music", "/api/library"} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			items := decode[[]map[string]any](t, rec)
			require.Len(t, items, 3)
			assert.Equal(t, "t1", items[0]["id"])
			assert.Equal(t, "http://localhost:3000/music/blue_train.mp3", items[0]["playable_url"])
			assert.Equal(t, "https://cdn.example.com/so_what.mp3", items[1]["playable_url"])
			assert.EqualValues(t, 562, items[1]["duration"])
			assert.EqualValues(t, 0, items[2]["duration"])
		})
	}
}

func TestLibrary_FallsBackToBuiltin(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Remove(env.catalogPath))

	rec := env.do(t, http.MethodGet, "/api/music", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]map[string]any](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "track_001", items[0]["id"])
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		want  []string
	}{
		{query: "coltrane", want: []string{"t1", "t3"}},
		{query: "blue", want: []string{"t1", "t2"}},
		{query: "", want: []string{"t1", "t2", "t3"}},
		{query: "nothing", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/search?q="+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)
			items := decode[[]map[string]any](t, rec)
			ids := make([]string, 0, len(items))
			for _, it := range items {
				ids = append(ids, it["id"].(string))
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/library/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "file", body["source"])
	assert.EqualValues(t, 3, body["tracks"])

	require.NoError(t, os.Remove(env.catalogPath))
	rec = env.do(t, http.MethodPost, "/api/library/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, decode[map[string]any](t, rec)["error"])

	// The previous library stays in use.
	rec = env.do(t, http.MethodPost, "/api/control/g/play", `{"track_id":"t3"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfigRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"baseUrl":"http://localhost:3000","pollIntervalMs":2000}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/config", `{"baseUrl":"http://media.local:8080"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Configuration updated","config":{"baseUrl":"http://media.local:8080"}}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/config", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"baseUrl is required","code":"invalid_argument"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/config", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/config", "")
	assert.JSONEq(t, `{"baseUrl":"http://media.local:8080","pollIntervalMs":2000}`, rec.Body.String())
}

func TestServerRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/server", `{"url":"https://files.example.com/"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"server_url":"https://files.example.com"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/server", `{"url":"ftp://files.example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/server", "")
	assert.JSONEq(t, `{"server_url":"https://files.example.com"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/config", "")
	assert.JSONEq(t, `{"baseUrl":"https://files.example.com","pollIntervalMs":2000}`, rec.Body.String())
}

func TestPlayerSnapshot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/player/123456789", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"current_track":null,"queue":[],"is_playing":false,"volume":1,"loop_mode":0}`, rec.Body.String())
}

func TestControl(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		body       string
		wantStatus int
		check      func(t *testing.T, st playback.State)
	}{
		{
			name:       "play by id",
			command:    "play",
			body:       `{"track_id":"t2"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, st playback.State) {
				require.NotNil(t, st.CurrentTrack)
				assert.Equal(t, "t2", st.CurrentTrack.ID)
				assert.True(t, st.IsPlaying)
			},
		},
		{
			name:       "play camel case id",
			command:    "play",
			body:       `{"trackId":"t1"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, st playback.State) {
				require.NotNil(t, st.CurrentTrack)
				assert.Equal(t, "t1", st.CurrentTrack.ID)
			},
		},
		{
			name:       "play without body on idle session",
			command:    "play",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, st playback.State) {
				assert.Nil(t, st.CurrentTrack)
				assert.False(t, st.IsPlaying)
			},
		},
		{
			name:       "volume clamped",
			command:    "volume",
			body:       `{"volume":500}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, st playback.State) {
				assert.InDelta(t, 2.0, st.Volume, 1e-9)
			},
		},
		{
			name:       "loop queue",
			command:    "LOOP",
			body:       `{"mode":2}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, st playback.State) {
				assert.Equal(t, playback.LoopQueue, st.LoopMode)
			},
		},
		{name: "unknown track", command: "play", body: `{"track_id":"nope"}`, wantStatus: http.StatusNotFound},
		{name: "unknown command", command: "rewind", wantStatus: http.StatusBadRequest},
		{name: "bad loop mode", command: "loop", body: `{"mode":3}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", command: "volume", body: `{"volume":`, wantStatus: http.StatusBadRequest},
		{name: "enqueue without id", command: "enqueue", body: `{}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/api/control/g/"+tt.command, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, decode[playback.State](t, rec))
				return
			}
			body := decode[map[string]any](t, rec)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, map[int]string{
				http.StatusBadRequest: "invalid_argument",
				http.StatusNotFound:   "not_found",
			}[tt.wantStatus], body["code"])
		})
	}
}

func TestControl_QueueFlow(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"t1", "t2"} {
		rec := env.do(t, http.MethodPost, "/api/control/g/enqueue", `{"track_id":"`+id+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/control/g/enqueue", `{"track_id":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "duplicate rejected by filter")

	rec = env.do(t, http.MethodPost, "/api/control/g/skip", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[playback.State](t, rec)
	require.NotNil(t, st.CurrentTrack)
	assert.Equal(t, "t1", st.CurrentTrack.ID)
	require.Len(t, st.Queue, 1)

	rec = env.do(t, http.MethodGet, "/api/player/g", "")
	assert.Equal(t, st, decode[playback.State](t, rec))

	rec = env.do(t, http.MethodGet, "/api/player/other", "")
	assert.Nil(t, decode[playback.State](t, rec).CurrentTrack, "sessions are independent")
}

func TestPlayRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/play/g", `{"track_id":"t1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])

	rec = env.do(t, http.MethodPost, "/api/play/g", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decode[map[string]any](t, rec)["status"])

	rec = env.do(t, http.MethodPost, "/api/play/g", `{"track_id":"zzz"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlayURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/playurl/g", `{"url":"https://example.com/audio/song.mp3"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string         `json:"status"`
		Track  map[string]any `json:"track"`
		State  playback.State `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "song.mp3", body.Track["title"])
	assert.Equal(t, "URL Source", body.Track["artist"])
	assert.True(t, strings.HasPrefix(body.Track["id"].(string), "url_"))
	require.NotNil(t, body.State.CurrentTrack)
	assert.True(t, body.State.IsPlaying)

	rec = env.do(t, http.MethodPost, "/api/playurl/g", `{"url":"file:///etc/passwd"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decode[map[string]any](t, rec)
	assert.Equal(t, "error", errBody["status"])
	assert.NotEmpty(t, errBody["error"])
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/control/g/play", http.NoBody)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://ui.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodGet, "/api/config", http.NoBody)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMusicAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/music/a.mp3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ID3", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[session.Status](t, rec)
	assert.Equal(t, "file", status.LibrarySource)
	assert.Equal(t, []string{"duplicate_track_filter"}, status.Filters)
	assert.Equal(t, []string{"file"}, status.LibrarySources)
	assert.Equal(t, int64(2000), status.PollIntervalMs)
}

func TestWebSocket(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/g"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"http://ui.local"}})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first notification.Notification
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, SnapshotEvent, first.Event)
	assert.Nil(t, first.State.CurrentTrack)

	require.Eventually(t, func() bool {
		return env.manager.Notifications().SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/control/g/play", "application/json", strings.NewReader(`{"track_id":"t1"}`))
	require.NoError(t, err)
	resp.Body.Close()

	var pushed notification.Notification
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, "play", pushed.Command)
	require.NotNil(t, pushed.State.CurrentTrack)
	assert.Equal(t, "t1", pushed.State.CurrentTrack.ID)
	assert.Equal(t, uint64(0), first.SequenceNo)
	assert.Equal(t, uint64(1), pushed.SequenceNo, "sequence_no is the session revision")
}

func TestWebSocket_RejectsOrigin(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/g"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"http://evil.local"}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	}
}
