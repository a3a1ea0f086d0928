package library

import (
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/infra/config"
)

// NewChainFromConfig creates a source chain from configuration.
// fetcher may be nil when no remote library is configured; the remote
// source is then skipped.
func NewChainFromConfig(cfg *config.Config, fetcher Fetcher) (*Chain, error) {
	var sources []Source

	for i, name := range cfg.Library.Sources {
		switch name {
		case SourceRemote:
			if fetcher == nil || cfg.Library.RemoteURL == "" {
				zlog.Debug().Msgf("remote catalog source skipped: no remote_url configured")
				continue
			}
			timeout := time.Duration(cfg.Library.FetchTimeoutSec) * time.Second
			sources = append(sources, NewRemoteSource(fetcher, timeout))

		case SourceFile:
			sources = append(sources, NewFileSource(cfg.Library.CatalogPath))

		default:
			return nil, errors.Newf("unsupported catalog source: %s (source index %d)", name, i)
		}

		zlog.Info().Msgf("registered catalog source: index=%d name=%s", i+1, name)
	}

	if len(sources) == 0 {
		zlog.Warn().Msg("no catalog sources configured, the built-in library will be served")
	}
	return NewChain(sources...), nil
}
