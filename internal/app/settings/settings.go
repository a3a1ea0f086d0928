// Package settings holds process-wide settings shared by every session.
package settings

import (
	"net/url"
	"strings"
	"sync"

	"github.com/osa030/19remote/internal/domain/fault"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:3000"

// Settings guards the base URL used to build playable URLs.
// It follows the same single-writer discipline as session state.
type Settings struct {
	mu      sync.RWMutex
	baseURL string
}

// New creates settings with an explicit initial base URL.
// An empty value falls back to DefaultBaseURL.
func New(baseURL string) *Settings {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Settings{baseURL: strings.TrimSpace(baseURL)}
}

// BaseURL returns the current base URL.
func (s *Settings) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// SetBaseURL replaces the base URL. Any non-empty string is accepted, as
// clients may use relative prefixes.
func (s *Settings) SetBaseURL(baseURL string) (string, error) {
	v := strings.TrimSpace(baseURL)
	if v == "" {
		return "", fault.InvalidArgumentf("baseUrl is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = v
	return s.baseURL, nil
}

// SetServerURL replaces the base URL with an absolute http(s) URL.
// A trailing slash is dropped.
func (s *Settings) SetServerURL(rawURL string) (string, error) {
	v := strings.TrimSpace(rawURL)
	if v == "" {
		return "", fault.InvalidArgumentf("url is required")
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fault.InvalidArgumentf("invalid url %q: must start with http:// or https://", v)
	}
	return s.SetBaseURL(strings.TrimRight(v, "/"))
}
