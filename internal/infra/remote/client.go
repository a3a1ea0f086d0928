// Package remote provides an HTTP client for the playback control API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19remote/internal/app/playback"
	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/session"
	"github.com/osa030/19remote/internal/domain/track"
)

const userAgent = "19remote-client/1.0"

// Client is a playback control API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client for the server at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Snapshot fetches the state of a session.
func (c *Client) Snapshot(ctx context.Context, key session.Key) (playback.State, error) {
	var st playback.State
	err := c.do(ctx, http.MethodGet, "/api/player/"+url.PathEscape(key.String()), nil, &st)
	return st, err
}

// Control sends a command and returns the new session state.
func (c *Client) Control(ctx context.Context, key session.Key, cmd string, payload map[string]any) (playback.State, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	var st playback.State
	path := "/api/control/" + url.PathEscape(key.String()) + "/" + url.PathEscape(cmd)
	err := c.do(ctx, http.MethodPost, path, payload, &st)
	return st, err
}

// PlayURLResult is the response of PlayURL.
type PlayURLResult struct {
	Status string          `json:"status"`
	Track  *track.Track    `json:"track,omitempty"`
	State  *playback.State `json:"state,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// PlayURL queues an arbitrary URL in a session.
func (c *Client) PlayURL(ctx context.Context, key session.Key, rawURL string) (PlayURLResult, error) {
	var res PlayURLResult
	err := c.do(ctx, http.MethodPost, "/api/playurl/"+url.PathEscape(key.String()), map[string]string{"url": rawURL}, &res)
	if err != nil {
		return res, err
	}
	if res.Status != "ok" {
		return res, errors.Newf("playurl failed: %s", res.Error)
	}
	return res, nil
}

// Library fetches the full catalog.
func (c *Client) Library(ctx context.Context) ([]track.Track, error) {
	var tracks []track.Track
	err := c.do(ctx, http.MethodGet, "/api/music", nil, &tracks)
	return tracks, err
}

// Search runs a library search on the server.
func (c *Client) Search(ctx context.Context, query string) ([]track.Track, error) {
	var tracks []track.Track
	err := c.do(ctx, http.MethodGet, "/api/search?q="+url.QueryEscape(query), nil, &tracks)
	return tracks, err
}

// RefreshResult is the response of RefreshLibrary.
type RefreshResult struct {
	Source string `json:"source"`
	Tracks int    `json:"tracks"`
}

// RefreshLibrary asks the server to reload its library.
func (c *Client) RefreshLibrary(ctx context.Context) (RefreshResult, error) {
	var res RefreshResult
	err := c.do(ctx, http.MethodPost, "/api/library/refresh", nil, &res)
	return res, err
}

type configBody struct {
	BaseURL        string `json:"baseUrl"`
	PollIntervalMs int64  `json:"pollIntervalMs,omitempty"`
}

// BaseURLSetting returns the server's base URL setting.
func (c *Client) BaseURLSetting(ctx context.Context) (string, error) {
	var cfg configBody
	err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg)
	return cfg.BaseURL, err
}

// PollInterval returns the state poll interval the server recommends.
// It is zero when the server does not report one.
func (c *Client) PollInterval(ctx context.Context) (time.Duration, error) {
	var cfg configBody
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg); err != nil {
		return 0, err
	}
	return time.Duration(cfg.PollIntervalMs) * time.Millisecond, nil
}

// SetBaseURLSetting replaces the server's base URL setting.
func (c *Client) SetBaseURLSetting(ctx context.Context, baseURL string) (string, error) {
	var res struct {
		Message string     `json:"message"`
		Config  configBody `json:"config"`
	}
	err := c.do(ctx, http.MethodPost, "/api/config", configBody{BaseURL: baseURL}, &res)
	return res.Config.BaseURL, err
}

// do sends a JSON request and decodes a JSON response into out.
// Error responses are mapped back to fault errors.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Unavailable(err, "server unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// statusError converts an error response into a fault error.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	if body.Error == "" {
		body.Error = resp.Status
	}

	// The error code wins over the status when the server sends one.
	switch {
	case body.Code == fault.Code(fault.ErrNotFound), body.Code == "" && resp.StatusCode == http.StatusNotFound:
		return fault.NotFoundf("%s", body.Error)
	case body.Code == fault.Code(fault.ErrInvalidArgument), body.Code == "" && resp.StatusCode == http.StatusBadRequest:
		return fault.InvalidArgumentf("%s", body.Error)
	case body.Code == fault.Code(fault.ErrUnavailable), body.Code == "" && resp.StatusCode == http.StatusServiceUnavailable:
		return fault.Unavailable(errors.New(body.Error), "server unavailable")
	default:
		return errors.Newf("unexpected status %d: %s", resp.StatusCode, body.Error)
	}
}
