package library

import (
	"sort"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/domain/track"
)

// Search limits.
const (
	MaxSearchResults = 15
	BrowseLimit      = 20
)

// Relevance weights for a query found in each field.
const (
	titleWeight  = 10
	artistWeight = 8
	albumWeight  = 5
)

// Library is an immutable, ordered track catalog.
type Library struct {
	tracks []track.Track
	byID   map[string]int
	source string
}

// New builds a library from tracks in order. Tracks without an id are
// dropped and only the first track of a repeated id is kept.
func New(tracks []track.Track, source string) *Library {
	l := &Library{
		tracks: make([]track.Track, 0, len(tracks)),
		byID:   make(map[string]int, len(tracks)),
		source: source,
	}
	for _, t := range tracks {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			zlog.Warn().Msgf("dropping catalog entry without id: title=%s source=%s", t.Title, source)
			continue
		}
		if _, dup := l.byID[t.ID]; dup {
			zlog.Warn().Msgf("dropping duplicate catalog entry: id=%s source=%s", t.ID, source)
			continue
		}
		l.byID[t.ID] = len(l.tracks)
		l.tracks = append(l.tracks, t)
	}
	return l
}

// Source returns the name of the source the library was loaded from.
func (l *Library) Source() string {
	return l.source
}

// Len returns the number of tracks.
func (l *Library) Len() int {
	return len(l.tracks)
}

// All returns a copy of every track in catalog order.
func (l *Library) All() []track.Track {
	out := make([]track.Track, len(l.tracks))
	copy(out, l.tracks)
	return out
}

// FindByID returns the track with the given id.
func (l *Library) FindByID(id string) (track.Track, bool) {
	i, ok := l.byID[id]
	if !ok {
		return track.Track{}, false
	}
	return l.tracks[i], true
}

// Search returns tracks whose title, artist or album contain query,
// case-insensitive, best matches first. Ties keep catalog order. An empty
// query returns the first BrowseLimit tracks.
func (l *Library) Search(query string) []track.Track {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		n := min(BrowseLimit, len(l.tracks))
		out := make([]track.Track, n)
		copy(out, l.tracks[:n])
		return out
	}

	type hit struct {
		track track.Track
		score int
	}
	var hits []hit
	for _, t := range l.tracks {
		if !strings.Contains(t.SearchText(), q) {
			continue
		}
		hits = append(hits, hit{track: t, score: relevance(t, q)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]track.Track, 0, min(MaxSearchResults, len(hits)))
	for i := 0; i < len(hits) && i < MaxSearchResults; i++ {
		out = append(out, hits[i].track)
	}
	return out
}

func relevance(t track.Track, q string) int {
	score := 0
	if strings.Contains(strings.ToLower(t.Title), q) {
		score += titleWeight
	}
	if strings.Contains(strings.ToLower(t.Artist), q) {
		score += artistWeight
	}
	if strings.Contains(strings.ToLower(t.Album), q) {
		score += albumWeight
	}
	return score
}
