// Package playback provides playback control with integrated queue management.
package playback

import (
	"math"

	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/track"
)

// Volume bounds. The UI shows volume as 0-200%.
const (
	MinVolume     = 0.0
	MaxVolume     = 2.0
	DefaultVolume = 1.0
)

// LoopMode is the policy applied when a track ends or is skipped.
type LoopMode int

const (
	LoopOff   LoopMode = iota // Consume the queue
	LoopTrack                 // Repeat the current track
	LoopQueue                 // Cycle the whole queue
)

// String returns the string representation of the loop mode.
func (m LoopMode) String() string {
	switch m {
	case LoopOff:
		return "off"
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the defined modes.
func (m LoopMode) Valid() bool {
	return m >= LoopOff && m <= LoopQueue
}

// ParseLoopMode converts the wire value (0, 1, 2) to a LoopMode.
func ParseLoopMode(v int) (LoopMode, error) {
	m := LoopMode(v)
	if !m.Valid() {
		return LoopOff, fault.InvalidArgumentf("invalid loop mode %d: use 0=off, 1=track, 2=queue", v)
	}
	return m, nil
}

// Status summarises a State for display.
type Status int

const (
	StatusIdle    Status = iota // No current track
	StatusPlaying               // Track is playing
	StatusPaused                // Track is loaded but paused
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// State is the playback state of one session. Values handed out by the
// store are snapshots: they share nothing with the stored copy.
type State struct {
	CurrentTrack *track.Track  `json:"current_track"`
	Queue        []track.Track `json:"queue"`
	IsPlaying    bool          `json:"is_playing"`
	Volume       float64       `json:"volume"`
	LoopMode     LoopMode      `json:"loop_mode"`
}

// NewState returns the state of a session that has never been touched.
func NewState() State {
	return State{
		Queue:    []track.Track{},
		Volume:   DefaultVolume,
		LoopMode: LoopOff,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	if s.CurrentTrack != nil {
		t := *s.CurrentTrack
		c.CurrentTrack = &t
	}
	c.Queue = make([]track.Track, len(s.Queue))
	copy(c.Queue, s.Queue)
	return c
}

// Normalize enforces the state invariants: volume within bounds, not
// playing without a track, and a non-nil queue.
func (s State) Normalize() State {
	s.Volume = ClampVolume(s.Volume)
	if s.CurrentTrack == nil {
		s.IsPlaying = false
	}
	if s.Queue == nil {
		s.Queue = []track.Track{}
	}
	if !s.LoopMode.Valid() {
		s.LoopMode = LoopOff
	}
	return s
}

// Status returns the display status of s.
func (s State) Status() Status {
	switch {
	case s.CurrentTrack == nil:
		return StatusIdle
	case s.IsPlaying:
		return StatusPlaying
	default:
		return StatusPaused
	}
}

// VolumePercent returns the volume as the 0-200 integer the UI shows.
func (s State) VolumePercent() int {
	return int(math.Round(s.Volume * 100))
}

// ClampVolume forces v into [MinVolume, MaxVolume]. NaN maps to the default.
func ClampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return DefaultVolume
	case v < MinVolume:
		return MinVolume
	case v > MaxVolume:
		return MaxVolume
	default:
		return v
	}
}

// VolumeFromPercent converts the client's 0-200 percent into a clamped volume.
func VolumeFromPercent(percent float64) float64 {
	return ClampVolume(percent / 100)
}
