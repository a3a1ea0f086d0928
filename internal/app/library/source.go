// Package library provides the read-only track catalog and the sources it
// is loaded from.
package library

import (
	"context"

	"github.com/osa030/19remote/internal/domain/track"
)

// Source names used in config.
const (
	SourceRemote = "remote"
	SourceFile   = "file"
)

// Source is the interface for catalog sources.
// Different implementations load the catalog from different places
// (e.g., a remote API, a local JSON file).
type Source interface {
	// Load returns the full catalog in source order.
	Load(ctx context.Context) ([]track.Track, error)

	// Name returns the source name (used in config).
	Name() string
}

// Fetcher retrieves a catalog from a remote server.
type Fetcher interface {
	Library(ctx context.Context) ([]track.Track, error)
}

// Saver persists a catalog.
type Saver interface {
	Save(tracks []track.Track) error
}
