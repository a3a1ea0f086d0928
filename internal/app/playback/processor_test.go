package playback_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19remote/internal/app/filter"
	"github.com/osa030/19remote/internal/app/playback"
	"github.com/osa030/19remote/internal/app/session/registry"
	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/session"
	"github.com/osa030/19remote/internal/domain/track"
)

type mapLibrary map[string]track.Track

func (l mapLibrary) FindByID(id string) (track.Track, bool) {
	t, ok := l[id]
	return t, ok
}

type recorder struct {
	mu     sync.Mutex
	events []playback.Event
}

func (r *recorder) Publish(e playback.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type stubResolver struct {
	track *track.Track
	err   error
}

func (r stubResolver) Resolve(ctx context.Context, rawURL string) (*track.Track, error) {
	return r.track, r.err
}

var library = mapLibrary{
	"a": {ID: "a", Title: "Alpha", Artist: "One", Duration: 200},
	"b": {ID: "b", Title: "Beta", Artist: "Two", Duration: 180},
	"c": {ID: "c", Title: "Gamma", Artist: "Three", Duration: 30},
}

const key = session.Key("guild-1")

func newProcessor(t *testing.T, config playback.Config) (*playback.Processor, *registry.Store) {
	t.Helper()
	store := registry.NewStore()
	return playback.NewProcessor(store, library, config), store
}

func apply(t *testing.T, p *playback.Processor, cmd playback.Command, payload playback.Payload) playback.State {
	t.Helper()
	s, err := p.Apply(context.Background(), key, cmd, payload)
	require.NoError(t, err)
	return s
}

func queueIDs(s playback.State) []string {
	out := []string{}
	for _, t := range s.Queue {
		out = append(out, t.ID)
	}
	return out
}

func assertInvariants(t *testing.T, s playback.State) {
	t.Helper()
	assert.False(t, s.IsPlaying && s.CurrentTrack == nil, "playing without a track")
	assert.GreaterOrEqual(t, s.Volume, playback.MinVolume)
	assert.LessOrEqual(t, s.Volume, playback.MaxVolume)
}

func TestProcessor_Play(t *testing.T) {
	p, _ := newProcessor(t, playback.Config{})

	s := apply(t, p, playback.CommandPlay, nil)
	assert.Nil(t, s.CurrentTrack, "play without id on idle session is a no-op")
	assert.False(t, s.IsPlaying)

	s = apply(t, p, playback.CommandPlay, playback.Payload{"trackId": "b"})
	require.NotNil(t, s.CurrentTrack)
	assert.Equal(t, "b", s.CurrentTrack.ID)
	assert.True(t, s.IsPlaying)

	apply(t, p, playback.CommandPause, nil)
	s = apply(t, p, playback.CommandPlay, playback.Payload{})
	assert.True(t, s.IsPlaying, "play without id resumes")
	assert.Equal(t, "b", s.CurrentTrack.ID)
}

func TestProcessor_UnknownTrackLeavesStateUnchanged(t *testing.T) {
	for _, cmd := range []playback.Command{playback.CommandPlay, playback.CommandEnqueue, playback.CommandPlayNext} {
		t.Run(string(cmd), func(t *testing.T) {
			p, store := newProcessor(t, playback.Config{})
			apply(t, p, playback.CommandPlay, playback.Payload{"track_id": "a"})
			apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "b"})
			before := store.Get(key)

			_, err := p.Apply(context.Background(), key, cmd, playback.Payload{"track_id": "missing"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, fault.ErrNotFound))
			assert.Equal(t, before, store.Get(key))
		})
	}
}

func TestProcessor_PauseIsIdempotent(t *testing.T) {
	p, _ := newProcessor(t, playback.Config{})
	apply(t, p, playback.CommandPlay, playback.Payload{"track_id": "a"})

	first := apply(t, p, playback.CommandPause, nil)
	second := apply(t, p, playback.CommandPause, nil)

	assert.False(t, first.IsPlaying)
	assert.Equal(t, first, second)
	assert.Equal(t, "a", second.CurrentTrack.ID)
}

func TestProcessor_StopKeepsQueue(t *testing.T) {
	setups := map[string][]playback.Command{
		"idle":    nil,
		"playing": {playback.CommandPlay},
		"paused":  {playback.CommandPlay, playback.CommandPause},
	}

	for name, cmds := range setups {
		t.Run(name, func(t *testing.T) {
			p, _ := newProcessor(t, playback.Config{})
			apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "b"})
			apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "c"})
			for _, c := range cmds {
				apply(t, p, c, playback.Payload{"track_id": "a"})
			}

			s := apply(t, p, playback.CommandStop, nil)
			assert.Nil(t, s.CurrentTrack)
			assert.False(t, s.IsPlaying)
			assert.Equal(t, []string{"b", "c"}, queueIDs(s))
		})
	}
}

func TestProcessor_Volume(t *testing.T) {
	tests := []struct {
		input any
		want  float64
	}{
		{0.0, 0},
		{50.0, 0.5},
		{150.0, 1.5},
		{200.0, 2},
		{300.0, 2},
		{-50.0, 0},
		{75, 0.75},
		{55.5, 0.555},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.input), func(t *testing.T) {
			p, _ := newProcessor(t, playback.Config{})
			s := apply(t, p, playback.CommandVolume, playback.Payload{"volume": tt.input})
			assert.InDelta(t, tt.want, s.Volume, 1e-9)
			assertInvariants(t, s)
		})
	}
}

func TestProcessor_Loop(t *testing.T) {
	p, store := newProcessor(t, playback.Config{})

	s := apply(t, p, playback.CommandLoop, playback.Payload{"mode": 2.0})
	assert.Equal(t, playback.LoopQueue, s.LoopMode)

	for _, bad := range []playback.Payload{{"mode": 3.0}, {"mode": -1.0}, {"mode": 1.5}, {"mode": "1"}, {}} {
		_, err := p.Apply(context.Background(), key, playback.CommandLoop, bad)
		assert.True(t, errors.Is(err, fault.ErrInvalidArgument), "payload %v", bad)
	}
	assert.Equal(t, playback.LoopQueue, store.Get(key).LoopMode)
}

func TestProcessor_EnqueueThenSkip(t *testing.T) {
	p, _ := newProcessor(t, playback.Config{})

	s := apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "a"})
	assert.Nil(t, s.CurrentTrack, "enqueue does not start playback")
	assert.Equal(t, []string{"a"}, queueIDs(s))

	s = apply(t, p, playback.CommandSkip, nil)
	require.NotNil(t, s.CurrentTrack)
	assert.Equal(t, "a", s.CurrentTrack.ID)
	assert.True(t, s.IsPlaying)
	assert.Empty(t, s.Queue)

	s = apply(t, p, playback.CommandSkip, nil)
	assert.Nil(t, s.CurrentTrack)
	assert.False(t, s.IsPlaying)
}

func TestProcessor_SkipWhileIdle(t *testing.T) {
	p, store := newProcessor(t, playback.Config{})
	before := store.Get(key)

	s := apply(t, p, playback.CommandSkip, nil)
	assert.Equal(t, before, s)
}

func TestProcessor_QueueCycle(t *testing.T) {
	p, _ := newProcessor(t, playback.Config{})
	apply(t, p, playback.CommandLoop, playback.Payload{"mode": 2})
	apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "a"})
	apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "b"})

	s := apply(t, p, playback.CommandSkip, nil)
	require.Equal(t, "a", s.CurrentTrack.ID)

	s = apply(t, p, playback.CommandSkip, nil)
	assert.Equal(t, "b", s.CurrentTrack.ID)
	s = apply(t, p, playback.CommandEnded, nil)
	assert.Equal(t, "a", s.CurrentTrack.ID)
	assert.Equal(t, []string{"b"}, queueIDs(s))
}

func TestProcessor_ClearKeepsCurrent(t *testing.T) {
	p, _ := newProcessor(t, playback.Config{})
	apply(t, p, playback.CommandPlay, playback.Payload{"track_id": "a"})
	apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "b"})

	s := apply(t, p, playback.CommandClear, nil)
	assert.Empty(t, s.Queue)
	assert.Equal(t, "a", s.CurrentTrack.ID)
	assert.True(t, s.IsPlaying)
}

func TestProcessor_PlayNextRemoveShuffle(t *testing.T) {
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	p, store := newProcessor(t, playback.Config{Shuffle: reverse})

	apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "a"})
	apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "b"})
	s := apply(t, p, playback.CommandPlayNext, playback.Payload{"track_id": "c"})
	assert.Equal(t, []string{"c", "a", "b"}, queueIDs(s))

	s = apply(t, p, playback.CommandShuffle, nil)
	assert.Equal(t, []string{"b", "a", "c"}, queueIDs(s))

	s = apply(t, p, playback.CommandRemove, playback.Payload{"position": 2})
	assert.Equal(t, []string{"b", "c"}, queueIDs(s))

	for _, bad := range []playback.Payload{{"position": 0}, {"position": 3}, {"position": 1.5}, {}} {
		_, err := p.Apply(context.Background(), key, playback.CommandRemove, bad)
		assert.True(t, errors.Is(err, fault.ErrInvalidArgument), "payload %v", bad)
	}
	assert.Equal(t, []string{"b", "c"}, queueIDs(store.Get(key)))
}

func TestProcessor_EnqueueRequiresTrackID(t *testing.T) {
	p, _ := newProcessor(t, playback.Config{})
	_, err := p.Apply(context.Background(), key, playback.CommandEnqueue, playback.Payload{})
	assert.True(t, errors.Is(err, fault.ErrInvalidArgument))
}

func TestProcessor_UnknownCommand(t *testing.T) {
	p, _ := newProcessor(t, playback.Config{})
	_, err := p.Apply(context.Background(), key, playback.Command("rewind"), nil)
	assert.True(t, errors.Is(err, fault.ErrInvalidArgument))
}

func TestProcessor_FilterRejectionIsAtomic(t *testing.T) {
	chain := filter.NewChain()
	chain.Add(filter.NewDuplicateTrackFilter())
	p, store := newProcessor(t, playback.Config{Filters: chain})

	apply(t, p, playback.CommandEnqueue, playback.Payload{"track_id": "a"})
	before := store.Get(key)

	_, err := p.Apply(context.Background(), key, playback.CommandEnqueue, playback.Payload{"track_id": "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "duplicate_track")
	assert.Equal(t, before, store.Get(key))
}

func TestProcessor_InvariantsAfterEveryCommand(t *testing.T) {
	p, _ := newProcessor(t, playback.Config{})
	script := []struct {
		cmd     playback.Command
		payload playback.Payload
	}{
		{playback.CommandEnqueue, playback.Payload{"track_id": "a"}},
		{playback.CommandPlay, nil},
		{playback.CommandSkip, nil},
		{playback.CommandVolume, playback.Payload{"volume": 999}},
		{playback.CommandLoop, playback.Payload{"mode": 1}},
		{playback.CommandEnded, nil},
		{playback.CommandStop, nil},
		{playback.CommandPlay, nil},
		{playback.CommandLoop, playback.Payload{"mode": 0}},
		{playback.CommandSkip, nil},
		{playback.CommandVolume, playback.Payload{"volume": -1}},
		{playback.CommandPause, nil},
		{playback.CommandClear, nil},
	}

	for _, step := range script {
		s := apply(t, p, step.cmd, step.payload)
		assertInvariants(t, s)
	}
}

func TestProcessor_PublishesEvents(t *testing.T) {
	rec := &recorder{}
	p, _ := newProcessor(t, playback.Config{Publisher: rec})

	apply(t, p, playback.CommandPlay, playback.Payload{"track_id": "a"})
	apply(t, p, playback.CommandVolume, playback.Payload{"volume": 50})
	_, _ = p.Apply(context.Background(), key, playback.CommandPlay, playback.Payload{"track_id": "missing"})

	require.Len(t, rec.events, 2)
	assert.Equal(t, playback.EventTrackStarted, rec.events[0].Type)
	assert.Equal(t, key, rec.events[0].SessionKey)
	assert.Equal(t, playback.EventStateChanged, rec.events[1].Type)
	assert.InDelta(t, 0.5, rec.events[1].State.Volume, 1e-9)
	assert.Equal(t, uint64(1), rec.events[0].Revision)
	assert.Equal(t, uint64(2), rec.events[1].Revision)

	st, rev, err := p.Revision(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rev, "rejected command does not advance the revision")
	assert.Equal(t, rec.events[1].State, st)
}

func TestProcessor_PlayURL(t *testing.T) {
	p, _ := newProcessor(t, playback.Config{})

	tr, s, err := p.PlayURL(context.Background(), key, "https://example.com/stream/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "song.mp3", tr.Title)
	require.NotNil(t, s.CurrentTrack, "idle session starts playing the url")
	assert.Equal(t, tr.ID, s.CurrentTrack.ID)
	assert.True(t, s.IsPlaying)
	assert.Empty(t, s.Queue)

	tr2, s, err := p.PlayURL(context.Background(), key, "https://example.com/other.mp3")
	require.NoError(t, err)
	assert.Equal(t, tr.ID, s.CurrentTrack.ID, "busy session queues the url")
	assert.Equal(t, []string{tr2.ID}, queueIDs(s))

	_, _, err = p.PlayURL(context.Background(), key, "file:///etc/passwd")
	assert.True(t, errors.Is(err, fault.ErrInvalidArgument))
}

func TestProcessor_PlayURLResolver(t *testing.T) {
	resolved := &track.Track{ID: "spotify:1", Title: "Real Title", Artist: "Real Artist", Duration: 240}
	p, _ := newProcessor(t, playback.Config{Resolver: stubResolver{track: resolved}})

	tr, _, err := p.PlayURL(context.Background(), key, "https://open.spotify.com/track/1")
	require.NoError(t, err)
	assert.Equal(t, "Real Title", tr.Title)
	assert.Equal(t, "Real Artist", tr.Artist)
	assert.Equal(t, playback.URLTrackAlbum, tr.Album)
	assert.Equal(t, track.Seconds(240), tr.Duration)
	assert.Contains(t, tr.ID, playback.URLTrackIDPrefix)

	p, _ = newProcessor(t, playback.Config{Resolver: stubResolver{err: errors.New("offline")}})
	tr, _, err = p.PlayURL(context.Background(), key, "https://open.spotify.com/track/1")
	require.NoError(t, err, "resolver failures fall back to url metadata")
	assert.Equal(t, "1", tr.Title)
}

func TestProcessor_PlayURLFilterRejection(t *testing.T) {
	chain := filter.NewChain()
	f := filter.NewURLSchemeFilter()
	require.NoError(t, f.ValidateConfig(map[string]any{"allowed_hosts": []any{"cdn.example.com"}}))
	chain.Add(f)
	p, store := newProcessor(t, playback.Config{Filters: chain})

	_, _, err := p.PlayURL(context.Background(), key, "https://evil.test/a.mp3")
	assert.True(t, errors.Is(err, fault.ErrInvalidArgument))
	assert.Nil(t, store.Get(key).CurrentTrack)

	_, _, err = p.PlayURL(context.Background(), key, "https://cdn.example.com/a.mp3")
	assert.NoError(t, err)
}

func TestProcessor_SessionsAreIndependent(t *testing.T) {
	store := registry.NewStore()
	p := playback.NewProcessor(store, library, playback.Config{})
	other := session.Key("guild-2")

	_, err := p.Apply(context.Background(), key, playback.CommandPlay, playback.Payload{"track_id": "a"})
	require.NoError(t, err)
	_, err = p.Apply(context.Background(), key, playback.CommandEnqueue, playback.Payload{"track_id": "b"})
	require.NoError(t, err)
	before := store.Get(key)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			_, _ = p.Apply(ctx, other, playback.CommandVolume, playback.Payload{"volume": float64(i * 10)})
			_, _ = p.Apply(ctx, other, playback.CommandEnqueue, playback.Payload{"track_id": "c"})
			_, _ = p.Apply(ctx, other, playback.CommandSkip, nil)
			_, _ = p.Apply(ctx, other, playback.CommandClear, nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, before, store.Get(key))
	got, err := p.Snapshot(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, before, got)
}

func TestProcessor_ConcurrentCommandsOnOneSession(t *testing.T) {
	p, store := newProcessor(t, playback.Config{})

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Apply(context.Background(), key, playback.CommandEnqueue, playback.Payload{"track_id": "a"})
		}()
	}
	wg.Wait()

	assert.Len(t, store.Get(key).Queue, 30)
}
