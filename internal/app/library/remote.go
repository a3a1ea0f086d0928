package library

import (
	"context"
	"time"

	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/track"
)

// RemoteSource loads the catalog from another server's library API.
type RemoteSource struct {
	fetcher Fetcher
	timeout time.Duration
}

// NewRemoteSource creates a new remote source. A zero timeout means the
// caller's context alone bounds the request.
func NewRemoteSource(fetcher Fetcher, timeout time.Duration) *RemoteSource {
	return &RemoteSource{
		fetcher: fetcher,
		timeout: timeout,
	}
}

// Name returns the source name.
func (s *RemoteSource) Name() string {
	return SourceRemote
}

// Load fetches the catalog.
func (s *RemoteSource) Load(ctx context.Context) ([]track.Track, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tracks, err := s.fetcher.Library(ctx)
	if err != nil {
		return nil, fault.Unavailable(err, "failed to fetch remote catalog")
	}
	return tracks, nil
}
