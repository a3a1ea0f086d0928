package playback

import (
	"context"
	"math/rand"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/app/filter"
	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/session"
	"github.com/osa030/19remote/internal/domain/track"
)

// Store is the session state store the processor writes through. Every
// successful Commit advances the session revision under the session lock.
type Store interface {
	Get(key session.Key) State
	Snapshot(key session.Key) (State, uint64)
	Commit(key session.Key, fn func(State) (State, error)) (State, uint64, error)
}

// Library looks up tracks by id.
type Library interface {
	FindByID(id string) (track.Track, bool)
}

// Resolver fills in metadata for URLs it recognises. It returns nil, nil
// for URLs it does not handle.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (*track.Track, error)
}

// Config holds processor configuration. Every field is optional.
type Config struct {
	Filters   *filter.Chain                    // Admission filters for queue additions
	Resolver  Resolver                         // Metadata lookup for PlayURL
	Publisher Publisher                        // Receives an event after every commit
	Shuffle   func(n int, swap func(i, j int)) // Defaults to math/rand
}

// Processor applies control commands to session state. It is the only
// writer of the store.
type Processor struct {
	store   Store
	library Library
	config  Config
}

// mutation is a command bound to its decoded payload.
type mutation func(ctx context.Context, key session.Key, s State) (State, error)

// NewProcessor creates a new command processor.
func NewProcessor(store Store, library Library, config Config) *Processor {
	if config.Shuffle == nil {
		config.Shuffle = rand.Shuffle
	}
	return &Processor{
		store:   store,
		library: library,
		config:  config,
	}
}

// Snapshot returns the current state of a session.
func (p *Processor) Snapshot(ctx context.Context, key session.Key) (State, error) {
	return p.store.Get(key), nil
}

// Revision returns the current state of a session and the revision it was
// committed under. Events carry the same revision.
func (p *Processor) Revision(ctx context.Context, key session.Key) (State, uint64, error) {
	st, rev := p.store.Snapshot(key)
	return st, rev, nil
}

// Apply runs a command against a session and returns the new state.
// On error nothing is changed.
func (p *Processor) Apply(ctx context.Context, key session.Key, cmd Command, payload Payload) (State, error) {
	m, err := p.prepare(cmd, payload)
	if err != nil {
		zlog.Debug().Msgf("command rejected: key=%s command=%s err=%v", key, cmd, err)
		return State{}, err
	}
	return p.commit(ctx, key, cmd, m)
}

// PlayURL queues a track built from an arbitrary URL. An idle session starts
// playing it straight away.
func (p *Processor) PlayURL(ctx context.Context, key session.Key, rawURL string) (track.Track, State, error) {
	t, err := URLTrack(rawURL)
	if err != nil {
		return track.Track{}, State{}, err
	}

	if p.config.Resolver != nil {
		resolved, err := p.config.Resolver.Resolve(ctx, t.URL)
		if err != nil {
			zlog.Warn().Msgf("failed to resolve url metadata, using defaults: url=%s err=%v", t.URL, err)
		} else if resolved != nil {
			t = mergeMetadata(t, *resolved)
		}
	}

	state, err := p.commit(ctx, key, CommandEnqueue, func(ctx context.Context, key session.Key, s State) (State, error) {
		if err := p.admit(ctx, key, filter.OriginURL, t, s); err != nil {
			return s, err
		}
		s.Queue = append(s.Queue, t)
		if s.CurrentTrack == nil {
			s = Advance(s)
		}
		return s, nil
	})
	if err != nil {
		return track.Track{}, State{}, err
	}
	zlog.Info().Msgf("url queued: key=%s track_id=%s title=%s", key, t.ID, t.Title)
	return t, state, nil
}

// commit runs m under the session lock and publishes the result.
func (p *Processor) commit(ctx context.Context, key session.Key, cmd Command, m mutation) (State, error) {
	var before State
	after, rev, err := p.store.Commit(key, func(s State) (State, error) {
		before = s.Clone()
		return m(ctx, key, s)
	})
	if err != nil {
		zlog.Debug().Msgf("command failed: key=%s command=%s err=%v", key, cmd, err)
		return State{}, err
	}

	zlog.Debug().Msgf("command applied: key=%s command=%s revision=%d status=%s queue=%d volume=%.2f loop=%s",
		key, cmd, rev, after.Status(), len(after.Queue), after.Volume, after.LoopMode)

	if p.config.Publisher != nil {
		p.config.Publisher.Publish(Event{
			Type:       classify(cmd, before, after),
			SessionKey: key,
			Command:    cmd,
			Revision:   rev,
			State:      after.Clone(),
		})
	}
	return after, nil
}

// prepare decodes the payload and binds it to the command's mutation.
// Library lookups happen here, outside the session lock.
func (p *Processor) prepare(cmd Command, payload Payload) (mutation, error) {
	switch cmd {
	case CommandPlay:
		return p.preparePlay(payload)
	case CommandPause:
		return func(_ context.Context, _ session.Key, s State) (State, error) {
			s.IsPlaying = false
			return s, nil
		}, nil
	case CommandStop:
		return func(_ context.Context, _ session.Key, s State) (State, error) {
			s.IsPlaying = false
			s.CurrentTrack = nil
			return s, nil
		}, nil
	case CommandSkip, CommandEnded:
		return func(_ context.Context, _ session.Key, s State) (State, error) {
			return Advance(s), nil
		}, nil
	case CommandClear:
		return func(_ context.Context, _ session.Key, s State) (State, error) {
			s.Queue = []track.Track{}
			return s, nil
		}, nil
	case CommandVolume:
		return prepareVolume(payload)
	case CommandLoop:
		return prepareLoop(payload)
	case CommandEnqueue, CommandPlayNext:
		return p.prepareEnqueue(cmd, payload)
	case CommandRemove:
		return prepareRemove(payload)
	case CommandShuffle:
		return func(_ context.Context, _ session.Key, s State) (State, error) {
			p.config.Shuffle(len(s.Queue), func(i, j int) {
				s.Queue[i], s.Queue[j] = s.Queue[j], s.Queue[i]
			})
			return s, nil
		}, nil
	default:
		return nil, fault.InvalidArgumentf("unknown command %q", string(cmd))
	}
}

func (p *Processor) preparePlay(payload Payload) (mutation, error) {
	var pl trackPayload
	if err := decodePayload(payload, &pl); err != nil {
		return nil, err
	}

	id := pl.id()
	if id == "" {
		// Resume; a session without a track stays idle.
		return func(_ context.Context, _ session.Key, s State) (State, error) {
			if s.CurrentTrack != nil {
				s.IsPlaying = true
			}
			return s, nil
		}, nil
	}

	t, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, _ session.Key, s State) (State, error) {
		s.CurrentTrack = &t
		s.IsPlaying = true
		return s, nil
	}, nil
}

func (p *Processor) prepareEnqueue(cmd Command, payload Payload) (mutation, error) {
	var pl trackPayload
	if err := decodePayload(payload, &pl); err != nil {
		return nil, err
	}
	id := pl.id()
	if id == "" {
		return nil, fault.InvalidArgumentf("%s requires track_id", cmd)
	}

	t, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, key session.Key, s State) (State, error) {
		if err := p.admit(ctx, key, filter.OriginLibrary, t, s); err != nil {
			return s, err
		}
		if cmd == CommandPlayNext {
			s.Queue = append([]track.Track{t}, s.Queue...)
		} else {
			s.Queue = append(s.Queue, t)
		}
		return s, nil
	}, nil
}

func prepareVolume(payload Payload) (mutation, error) {
	var pl volumePayload
	if err := decodePayload(payload, &pl); err != nil {
		return nil, err
	}
	volume := VolumeFromPercent(*pl.Volume)
	return func(_ context.Context, _ session.Key, s State) (State, error) {
		s.Volume = volume
		return s, nil
	}, nil
}

func prepareLoop(payload Payload) (mutation, error) {
	var pl loopPayload
	if err := decodePayload(payload, &pl); err != nil {
		return nil, err
	}
	n, err := wholeNumber("mode", *pl.Mode)
	if err != nil {
		return nil, err
	}
	mode, err := ParseLoopMode(n)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, _ session.Key, s State) (State, error) {
		s.LoopMode = mode
		return s, nil
	}, nil
}

func prepareRemove(payload Payload) (mutation, error) {
	var pl removePayload
	if err := decodePayload(payload, &pl); err != nil {
		return nil, err
	}
	pos, err := wholeNumber("position", *pl.Position)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, _ session.Key, s State) (State, error) {
		if pos < 1 || pos > len(s.Queue) {
			return s, fault.InvalidArgumentf("position %d out of range: queue has %d tracks", pos, len(s.Queue))
		}
		s.Queue = append(s.Queue[:pos-1], s.Queue[pos:]...)
		return s, nil
	}, nil
}

func (p *Processor) lookup(id string) (track.Track, error) {
	if p.library != nil {
		if t, ok := p.library.FindByID(id); ok {
			return t, nil
		}
	}
	return track.Track{}, fault.NotFoundf("track %q not found", id)
}

// admit runs the admission filters for a queue addition.
func (p *Processor) admit(ctx context.Context, key session.Key, origin filter.Origin, t track.Track, s State) error {
	result := p.config.Filters.Execute(ctx, filter.Request{
		SessionKey: key,
		Origin:     origin,
		Track:      t,
		Current:    s.CurrentTrack,
		Queue:      s.Queue,
	})
	if !result.Accepted {
		zlog.Info().Msgf("track rejected by filter: key=%s track_id=%s code=%s", key, t.ID, result.Code)
		return fault.InvalidArgumentf("track %q rejected: %s", t.ID, result.Code)
	}
	return nil
}
