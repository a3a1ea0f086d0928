package playback

import "github.com/osa030/19remote/internal/domain/track"

// Advance applies the queue and loop policy for a skipped or finished track.
//
//   - LoopOff: the queue head becomes current; an empty queue leaves the
//     session idle.
//   - LoopTrack: the current track is replayed and the queue is untouched.
//   - LoopQueue: the current track goes to the tail before the head is
//     taken, so the queue cycles.
//
// An idle session with an empty queue is returned unchanged.
func Advance(s State) State {
	next := s.Clone()

	if next.CurrentTrack != nil && next.LoopMode == LoopTrack {
		next.IsPlaying = true
		return next
	}

	if next.CurrentTrack != nil && next.LoopMode == LoopQueue {
		next.Queue = append(next.Queue, *next.CurrentTrack)
	}

	if len(next.Queue) == 0 {
		next.CurrentTrack = nil
		next.IsPlaying = false
		return next
	}

	head := next.Queue[0]
	rest := make([]track.Track, len(next.Queue)-1)
	copy(rest, next.Queue[1:])

	next.CurrentTrack = &head
	next.Queue = rest
	next.IsPlaying = true
	return next
}
