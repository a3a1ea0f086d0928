// Package session wires the session state store, the command processor and
// the supporting services into one manager.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/app/filter"
	"github.com/osa030/19remote/internal/app/library"
	"github.com/osa030/19remote/internal/app/notification"
	"github.com/osa030/19remote/internal/app/playback"
	"github.com/osa030/19remote/internal/app/session/registry"
	"github.com/osa030/19remote/internal/app/settings"
	"github.com/osa030/19remote/internal/infra/config"
)

// Dependencies holds the optional external collaborators.
type Dependencies struct {
	Fetcher  library.Fetcher   // Remote catalog; nil skips the remote source
	Resolver playback.Resolver // URL metadata lookup; nil disables enrichment
}

// Manager owns every session and the services shared between them.
type Manager struct {
	mu sync.Mutex

	config       *config.Config
	store        *registry.Store
	processor    *playback.Processor
	library      *library.Manager
	settings     *settings.Settings
	notification *notification.Manager
	filterChain  *filter.Chain

	startedAt time.Time
	closed    bool
}

// Status summarizes the manager for diagnostics.
type Status struct {
	Sessions       []string  `json:"sessions"`
	Subscribers    int       `json:"subscribers"`
	LibrarySource  string    `json:"library_source"`
	LibraryTracks  int       `json:"library_tracks"`
	LibrarySources []string  `json:"library_sources"`
	Filters        []string  `json:"filters"`
	BaseURL        string    `json:"base_url"`
	PollIntervalMs int64     `json:"poll_interval_ms"`
	StartedAt      time.Time `json:"started_at"`
}

// NewManager creates a new session manager.
func NewManager(cfg *config.Config, deps Dependencies) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	chain, err := library.NewChainFromConfig(cfg, deps.Fetcher)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create catalog source chain")
	}

	var saver library.Saver
	if cfg.Library.SaveOnRefresh {
		file := library.NewFileSource(cfg.Library.CatalogPath)
		zlog.Info().Msgf("catalog will be saved on refresh: path=%s", file.Path())
		saver = file
	}

	defaultVolume := cfg.Player.Volume()
	m := &Manager{
		config: cfg,
		store: registry.NewStoreWithInitial(func() playback.State {
			s := playback.NewState()
			s.Volume = playback.ClampVolume(defaultVolume)
			return s
		}),
		library:      library.NewManager(chain, saver),
		settings:     settings.New(cfg.Player.BaseURL),
		notification: notification.NewManager(),
		filterChain:  buildFilterChain(cfg),
		startedAt:    time.Now(),
	}

	m.processor = playback.NewProcessor(m.store, m.library, playback.Config{
		Filters:   m.filterChain,
		Resolver:  deps.Resolver,
		Publisher: m.notification,
	})

	return m, nil
}

// buildFilterChain creates the admission filter chain from config.
func buildFilterChain(cfg *config.Config) *filter.Chain {
	filterSettings := make(map[string]filter.Setting, len(cfg.Filters))
	for name, fc := range cfg.Filters {
		filterSettings[name] = filter.Setting{
			Enabled:  fc.Enabled,
			Settings: fc.Settings,
		}
	}
	return filter.BuildChain(filterSettings)
}

// Start loads the library. A library that cannot be loaded is not fatal:
// the built-in library stays in use.
func (m *Manager) Start(ctx context.Context) {
	if _, err := m.library.Refresh(ctx); err != nil {
		zlog.Warn().Msgf("starting with built-in library: %v", err)
	}
}

// Processor returns the command processor.
func (m *Manager) Processor() *playback.Processor {
	return m.processor
}

// Library returns the library manager.
func (m *Manager) Library() *library.Manager {
	return m.library
}

// Settings returns the process-wide settings.
func (m *Manager) Settings() *settings.Settings {
	return m.settings
}

// Notifications returns the notification manager.
func (m *Manager) Notifications() *notification.Manager {
	return m.notification
}

// Status returns a summary of the manager.
func (m *Manager) Status() Status {
	keys := m.store.Keys()
	sessions := make([]string, len(keys))
	for i, k := range keys {
		sessions[i] = k.String()
	}

	filters := make([]string, 0)
	for _, f := range m.filterChain.Filters() {
		filters = append(filters, f.Name())
	}

	lib := m.library.Current()
	return Status{
		Sessions:       sessions,
		Subscribers:    m.notification.SubscriberCount(),
		LibrarySource:  lib.Source(),
		LibraryTracks:  lib.Len(),
		LibrarySources: m.library.Sources(),
		Filters:        filters,
		BaseURL:        m.settings.BaseURL(),
		PollIntervalMs: m.PollInterval().Milliseconds(),
		StartedAt:      m.startedAt,
	}
}

// PollInterval returns the interval clients should poll session state at.
func (m *Manager) PollInterval() time.Duration {
	return m.config.PollInterval()
}

// Close closes the session manager.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.notification.Close()
	zlog.Info().Msgf("session manager closed: sessions=%d", m.store.Len())
}
