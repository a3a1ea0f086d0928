// Package registry holds the playback state of every session.
package registry

import (
	"sort"
	"sync"

	"github.com/osa030/19remote/internal/app/playback"
	"github.com/osa030/19remote/internal/domain/session"
)

// entry is one session. Its mutex serialises every read and write of state.
// revision counts committed writes and only grows.
type entry struct {
	mu       sync.Mutex
	state    playback.State
	revision uint64
}

// Store manages session states with per-session locking.
// Sessions are created lazily and live until the process exits.
type Store struct {
	mu       sync.RWMutex
	sessions map[session.Key]*entry
	initial  func() playback.State
}

// NewStore creates an empty store. New sessions start from playback.NewState.
func NewStore() *Store {
	return NewStoreWithInitial(playback.NewState)
}

// NewStoreWithInitial creates an empty store whose new sessions start from
// initial(), e.g. to apply a configured default volume.
func NewStoreWithInitial(initial func() playback.State) *Store {
	return &Store{
		sessions: make(map[session.Key]*entry),
		initial:  initial,
	}
}

// entry returns the entry for key, inserting a fresh one if absent.
func (s *Store) entry(key session.Key) *entry {
	s.mu.RLock()
	e, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[key]; ok {
		return e
	}
	e = &entry{state: s.initial().Normalize()}
	s.sessions[key] = e
	return e
}

// Get returns a snapshot of the session state, creating the session if absent.
func (s *Store) Get(key session.Key) playback.State {
	st, _ := s.Snapshot(key)
	return st
}

// Snapshot returns the session state together with its revision, read under
// the same lock so the pair is consistent.
func (s *Store) Snapshot(key session.Key) (playback.State, uint64) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), e.revision
}

// Set replaces the session state as one committed write.
func (s *Store) Set(key session.Key, state playback.State) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state.Clone().Normalize()
	e.revision++
}

// Commit runs fn against a copy of the session state under the session lock.
// The result is committed only when fn returns nil, and the revision it was
// stored under is returned with it. On error the stored state and revision
// are left untouched and the current snapshot is returned with the error.
func (s *Store) Commit(key session.Key, fn func(playback.State) (playback.State, error)) (playback.State, uint64, error) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(e.state.Clone())
	if err != nil {
		return e.state.Clone(), e.revision, err
	}
	e.state = next.Clone().Normalize()
	e.revision++
	return e.state.Clone(), e.revision, nil
}

// Keys returns the known session keys in sorted order.
func (s *Store) Keys() []session.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]session.Key, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
