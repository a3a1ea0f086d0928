package library

import "github.com/osa030/19remote/internal/domain/track"

// Builtin returns the single example track served when no source has data.
func Builtin() []track.Track {
	return []track.Track{
		{
			ID:       "track_001",
			Title:    "Example Song",
			Artist:   "Example Artist",
			Album:    "Example Album",
			Duration: 180,
			URL:      "http://localhost:3000/music/example.mp3",
			FilePath: "/music/example.mp3",
			Genre:    "Example",
			Year:     "2023",
		},
	}
}
