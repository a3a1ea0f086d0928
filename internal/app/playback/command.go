package playback

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/19remote/internal/domain/fault"
)

// Command is a named control command.
type Command string

const (
	CommandPlay     Command = "play"
	CommandPause    Command = "pause"
	CommandStop     Command = "stop"
	CommandSkip     Command = "skip"
	CommandClear    Command = "clear"
	CommandVolume   Command = "volume"
	CommandLoop     Command = "loop"
	CommandEnqueue  Command = "enqueue"
	CommandPlayNext Command = "playnext"
	CommandRemove   Command = "remove"
	CommandShuffle  Command = "shuffle"
	CommandEnded    Command = "ended"
)

// Commands lists every command in help order.
var Commands = []Command{
	CommandPlay, CommandPause, CommandStop, CommandSkip, CommandClear,
	CommandVolume, CommandLoop, CommandEnqueue, CommandPlayNext,
	CommandRemove, CommandShuffle, CommandEnded,
}

// ParseCommand validates a command name. Names are case-insensitive.
func ParseCommand(name string) (Command, error) {
	c := Command(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Commands {
		if c == known {
			return c, nil
		}
	}
	return "", fault.InvalidArgumentf("unknown command %q", name)
}

// Payload is the decoded JSON body of a command.
type Payload map[string]any

// trackPayload carries a library track id. Both spellings used by clients
// are accepted.
type trackPayload struct {
	TrackID      string `mapstructure:"track_id"`
	TrackIDCamel string `mapstructure:"trackId"`
}

func (p trackPayload) id() string {
	if p.TrackID != "" {
		return strings.TrimSpace(p.TrackID)
	}
	return strings.TrimSpace(p.TrackIDCamel)
}

type volumePayload struct {
	Volume *float64 `mapstructure:"volume" validate:"required"`
}

type loopPayload struct {
	Mode *float64 `mapstructure:"mode" validate:"required"`
}

type removePayload struct {
	Position *float64 `mapstructure:"position" validate:"required"`
}

var validate = validator.New()

// decodePayload decodes payload into out and validates it. Any mismatch is
// an InvalidArgument error.
func decodePayload(payload Payload, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(map[string]any(payload)); err != nil {
		return errors.Mark(errors.Wrap(err, "malformed payload"), fault.ErrInvalidArgument)
	}

	if err := validate.Struct(out); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid payload"), fault.ErrInvalidArgument)
	}
	return nil
}

// wholeNumber converts v to an int, rejecting fractions.
func wholeNumber(field string, v float64) (int, error) {
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, fault.InvalidArgumentf("%s must be an integer, got %v", field, v)
	}
	return int(v), nil
}
