package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/19remote/internal/domain/track"
)

// DuplicateTrackFilter rejects tracks that are already loaded or queued.
// Detects:
// - Exact track ID matches
// - Remasters and alternate versions (normalized title + same artist)
// Excludes:
// - Cover songs (same title but different artist)
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already in the session (remasters included); covers by other artists are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo returns which origins this filter applies to.
func (f *DuplicateTrackFilter) AppliesTo(origin Origin) bool {
	return true
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, req Request) Result {
	for _, queued := range req.Queued() {
		if queued.ID == req.Track.ID {
			return Reject("duplicate_track")
		}
		if isRemaster(queued, req.Track) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s+-\s*live$`),             // "- Live"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// isRemaster reports whether two tracks are versions of the same song.
func isRemaster(a, b track.Track) bool {
	titleA := normalizeTitle(a.Title)
	if titleA == "" || titleA != normalizeTitle(b.Title) {
		return false
	}
	return isSameArtist(a, b)
}

// normalizeTitle removes remaster information and version details.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

// isSameArtist compares the main artist of both tracks, case-insensitive.
// "A feat. B" and "A, B" count as artist A.
func isSameArtist(a, b track.Track) bool {
	artistA := mainArtist(a.Artist)
	if artistA == "" {
		return false
	}
	return strings.EqualFold(artistA, mainArtist(b.Artist))
}

func mainArtist(artist string) string {
	lower := strings.ToLower(artist)
	for _, sep := range []string{" feat. ", " ft. ", " & ", ", "} {
		if i := strings.Index(lower, sep); i >= 0 {
			artist = artist[:i]
			lower = lower[:i]
		}
	}
	return strings.TrimSpace(artist)
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
