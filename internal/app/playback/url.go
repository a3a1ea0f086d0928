package playback

import (
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/track"
)

// Metadata used for tracks built from a bare URL.
const (
	URLTrackIDPrefix = "url_"
	UnknownURLTitle  = "Unknown URL Track"
	URLTrackArtist   = "URL Source"
	URLTrackAlbum    = "Direct URL"
)

// URLTrack builds a track for an arbitrary http(s) URL. The id is derived
// from the URL, so the same URL always yields the same id.
func URLTrack(rawURL string) (track.Track, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return track.Track{}, fault.InvalidArgumentf("url is required")
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return track.Track{}, fault.InvalidArgumentf("invalid url %q: only http and https urls are supported", raw)
	}

	return track.Track{
		ID:       URLTrackIDPrefix + uuid.NewSHA1(uuid.NameSpaceURL, []byte(raw)).String(),
		Title:    urlTitle(u),
		Artist:   URLTrackArtist,
		Album:    URLTrackAlbum,
		URL:      raw,
		FilePath: raw,
	}, nil
}

func urlTitle(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return UnknownURLTitle
	}
	return name
}

// mergeMetadata copies the descriptive fields of resolved onto t.
func mergeMetadata(t, resolved track.Track) track.Track {
	if resolved.Title != "" {
		t.Title = resolved.Title
	}
	if resolved.Artist != "" {
		t.Artist = resolved.Artist
	}
	if resolved.Album != "" {
		t.Album = resolved.Album
	}
	if resolved.Duration > 0 {
		t.Duration = resolved.Duration
	}
	if resolved.Year != "" {
		t.Year = resolved.Year
	}
	if resolved.Genre != "" {
		t.Genre = resolved.Genre
	}
	return t
}
