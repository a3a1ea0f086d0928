// Package poller provides the periodic state observer used by clients that
// mirror a session without holding any state of their own.
package poller

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/app/playback"
	"github.com/osa030/19remote/internal/domain/session"
)

// DefaultInterval is the refresh period used when none is configured.
const DefaultInterval = 2 * time.Second

// Snapshotter returns the current state of a session.
type Snapshotter interface {
	Snapshot(ctx context.Context, key session.Key) (playback.State, error)
}

// Config holds poller configuration.
type Config struct {
	Interval   time.Duration        // Time between fetches
	OnState    func(playback.State) // Receives every fetched snapshot
	OnError    func(error)          // Receives fetch errors; polling continues
	OnlyChange bool                 // Deliver a snapshot only when it differs from the last one
	Timeout    time.Duration        // Per-fetch deadline; defaults to Interval
}

// Poller fetches a session snapshot on a fixed schedule and hands it to a
// callback.
type Poller struct {
	source Snapshotter
	key    session.Key
	config Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	last    *playback.State
	fetches int
}

// New creates a new poller for one session.
func New(source Snapshotter, key session.Key, config Config) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = config.Interval
	}
	return &Poller{
		source: source,
		key:    key,
		config: config,
	}
}

// Start begins polling. The first fetch happens immediately. Calling Start
// on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	zlog.Debug().Msgf("poller started: key=%s interval=%v", p.key, p.config.Interval)
	go p.run(ctx, p.done)
}

// Stop halts polling and waits for an in-flight fetch to return.
// It is safe to call more than once, but not from a callback.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	zlog.Debug().Msgf("poller stopped: key=%s fetches=%d", p.key, p.Fetches())
}

// Poll fetches one snapshot and delivers it as the scheduled loop would.
func (p *Poller) Poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	st, err := p.source.Snapshot(ctx, p.key)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		zlog.Debug().Msgf("poll failed: key=%s err=%v", p.key, err)
		if p.config.OnError != nil {
			p.config.OnError(err)
		}
		return
	}

	p.mu.Lock()
	p.fetches++
	changed := p.last == nil || !reflect.DeepEqual(*p.last, st)
	if changed {
		snap := st.Clone()
		p.last = &snap
	}
	p.mu.Unlock()

	if p.config.OnlyChange && !changed {
		return
	}
	if p.config.OnState != nil {
		p.config.OnState(st)
	}
}

// Fetches returns the number of successful fetches so far.
func (p *Poller) Fetches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}
