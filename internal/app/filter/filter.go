// Package filter provides the admission filter chain for queue additions.
package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/19remote/internal/domain/session"
	"github.com/osa030/19remote/internal/domain/track"
)

// Origin tells where a queued track came from.
type Origin int

const (
	OriginLibrary Origin = iota // Picked from the library by id
	OriginURL                   // Arbitrary URL sent to /api/playurl
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginLibrary:
		return "library"
	case OriginURL:
		return "url"
	default:
		return "unknown"
	}
}

// Request represents a queue addition to be validated.
type Request struct {
	SessionKey session.Key
	Origin     Origin
	Track      track.Track
	Current    *track.Track  // Track loaded in the session, if any
	Queue      []track.Track // Tracks waiting in the session
}

// Queued returns the current track followed by the queue.
func (r Request) Queued() []track.Track {
	out := make([]track.Track, 0, len(r.Queue)+1)
	if r.Current != nil {
		out = append(out, *r.Current)
	}
	return append(out, r.Queue...)
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duplicate_track", "track_too_long"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should run for the given origin.
	AppliesTo(origin Origin) bool
	// Check performs the filter check.
	Check(ctx context.Context, req Request) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// Names returns the registered filter names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeSettings decodes settings into out, applies defaults and validates it.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
