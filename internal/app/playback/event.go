package playback

import "github.com/osa030/19remote/internal/domain/session"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // A track became current and is playing
	EventStateChanged                  // Play/pause, volume or loop mode changed
	EventQueueChanged                  // Queue contents changed
	EventQueueEmpty                    // Advance found nothing to play
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventStateChanged:
		return "state_changed"
	case EventQueueChanged:
		return "queue_changed"
	case EventQueueEmpty:
		return "queue_empty"
	default:
		return "unknown"
	}
}

// Event is published after every committed command.
type Event struct {
	Type       EventType
	SessionKey session.Key
	Command    Command
	Revision   uint64 // Session revision State was committed under
	State      State  // Snapshot after the command
}

// Publisher receives events after commit. Publish runs outside the session
// lock, so events of one session may arrive out of order; Revision orders
// them.
type Publisher interface {
	Publish(Event)
}

// classify picks the event type for a transition.
func classify(cmd Command, before, after State) EventType {
	if after.CurrentTrack != nil && after.IsPlaying {
		if before.CurrentTrack == nil || before.CurrentTrack.ID != after.CurrentTrack.ID {
			return EventTrackStarted
		}
		if cmd == CommandSkip || cmd == CommandEnded {
			return EventTrackStarted
		}
	}
	if (cmd == CommandSkip || cmd == CommandEnded) && after.CurrentTrack == nil {
		return EventQueueEmpty
	}
	switch cmd {
	case CommandEnqueue, CommandPlayNext, CommandRemove, CommandShuffle, CommandClear:
		return EventQueueChanged
	}
	return EventStateChanged
}
