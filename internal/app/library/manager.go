package library

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/domain/track"
)

// BuiltinSourceName names the library built from Builtin.
const BuiltinSourceName = "builtin"

// Manager holds the library used by the command processor. It is loaded
// once and replaced only by Refresh.
type Manager struct {
	mu      sync.RWMutex
	current *Library
	chain   *Chain
	saver   Saver // Optional; receives catalogs loaded from other sources
}

// NewManager creates a manager that starts with the built-in library.
// Call Refresh to load from the chain.
func NewManager(chain *Chain, saver Saver) *Manager {
	return &Manager{
		current: New(Builtin(), BuiltinSourceName),
		chain:   chain,
		saver:   saver,
	}
}

// Sources returns the names of the chain's sources in lookup order.
func (m *Manager) Sources() []string {
	sources := m.chain.Sources()
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names
}

// Current returns the library in use.
func (m *Manager) Current() *Library {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// FindByID looks a track up in the current library.
func (m *Manager) FindByID(id string) (track.Track, bool) {
	return m.Current().FindByID(id)
}

// Refresh reloads the library from the chain. When every source fails the
// current library is kept and the error is returned.
func (m *Manager) Refresh(ctx context.Context) (*Library, error) {
	tracks, source, err := m.chain.Load(ctx)
	if err != nil {
		zlog.Warn().Msgf("library refresh failed, keeping current library: source=%s err=%v", m.Current().Source(), err)
		return m.Current(), err
	}

	lib := New(tracks, source)
	m.mu.Lock()
	m.current = lib
	m.mu.Unlock()
	zlog.Info().Msgf("library loaded: source=%s tracks=%d", source, lib.Len())

	if m.saver != nil && source != SourceFile {
		if err := m.saver.Save(lib.All()); err != nil {
			zlog.Warn().Msgf("failed to save catalog: %v", err)
		}
	}
	return lib, nil
}

// Browse loads the catalog from the sources on every call. When every
// source fails it returns the built-in library.
func (m *Manager) Browse(ctx context.Context) *Library {
	tracks, source, err := m.chain.Load(ctx)
	if err != nil {
		zlog.Warn().Msgf("catalog unavailable, serving built-in library: %v", err)
		return New(Builtin(), BuiltinSourceName)
	}
	return New(tracks, source)
}
