// Package track provides the Track domain entity.
package track

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Track is a library entry. Values are immutable once loaded.
type Track struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	Duration Seconds `json:"duration"`
	URL      string  `json:"url,omitempty"`
	FilePath string  `json:"file_path,omitempty"`
	Genre    string  `json:"genre,omitempty"`
	Year     string  `json:"year,omitempty"`
}

// Seconds is a non-negative whole number of seconds.
//
// Catalog files in the wild carry durations as numbers, numeric strings or
// placeholders such as "Unknown". Anything that is not a finite number
// decodes as 0 and negative values clamp to 0.
type Seconds int

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	*s = Seconds(ClampSeconds(parseNumber(data)))
	return nil
}

// String formats s as m:ss.
func (s Seconds) String() string {
	return strconv.Itoa(int(s)/60) + ":" + twoDigits(int(s)%60)
}

// ClampSeconds converts an arbitrary float into a valid Seconds value.
func ClampSeconds(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}

// UnmarshalJSON accepts year as a string or a number.
func (t *Track) UnmarshalJSON(data []byte) error {
	type plain Track
	var aux struct {
		plain
		Year json.RawMessage `json:"year,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Track(aux.plain)
	t.Year = decodeText(aux.Year)
	return nil
}

// PlayableURL resolves the URL the playback engine should open.
// Tracks without an absolute URL are served relative to baseURL.
func (t Track) PlayableURL(baseURL string) string {
	if t.URL != "" {
		return t.URL
	}
	if t.FilePath == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(t.FilePath, "/")
}

// SearchText returns the lower-cased text matched by library search.
func (t Track) SearchText() string {
	return strings.ToLower(t.Title + " " + t.Artist + " " + t.Album)
}

func parseNumber(data []byte) float64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0
		}
		data = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 0
	}
	return v
}

func decodeText(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}
	return ""
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
