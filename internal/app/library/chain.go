package library

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/track"
)

// Chain tries multiple sources in order until one returns tracks.
type Chain struct {
	sources []Source
}

// NewChain creates a new source chain.
func NewChain(sources ...Source) *Chain {
	return &Chain{
		sources: sources,
	}
}

// Sources returns the sources in the chain.
func (c *Chain) Sources() []Source {
	return c.sources
}

// Load returns the tracks of the first source that yields a non-empty
// catalog, and that source's name.
func (c *Chain) Load(ctx context.Context) ([]track.Track, string, error) {
	var errs error
	for i, src := range c.sources {
		zlog.Debug().Msgf("trying catalog source: index=%d total=%d name=%s", i+1, len(c.sources), src.Name())

		tracks, err := src.Load(ctx)
		if err != nil {
			zlog.Warn().Msgf("catalog source failed, trying next: source=%s error=%v", src.Name(), err)
			errs = errors.CombineErrors(errs, err)
			continue
		}

		if len(tracks) == 0 {
			zlog.Debug().Msgf("catalog source returned no tracks: source=%s", src.Name())
			continue
		}

		zlog.Debug().Msgf("catalog source returned tracks: source=%s count=%d", src.Name(), len(tracks))
		return tracks, src.Name(), nil
	}

	if errs == nil {
		errs = errors.New("no catalog source returned tracks")
	}
	return nil, "", fault.Unavailable(errs, "all catalog sources failed")
}
