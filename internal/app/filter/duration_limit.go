package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Return codes of DurationLimitFilter.
const (
	CodeTrackTooShort   = "track_too_short"
	CodeTrackTooLong    = "track_too_long"
	CodeUnknownDuration = "duration_unknown"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
// Limits are whole seconds; zero disables a limit.
type DurationLimitConfig struct {
	MinSeconds    int  `yaml:"min_seconds" mapstructure:"min_seconds" validate:"gte=0"`
	MaxSeconds    int  `yaml:"max_seconds" mapstructure:"max_seconds" validate:"gte=0"`
	RejectUnknown bool `yaml:"reject_unknown" mapstructure:"reject_unknown"`
}

// DurationLimitFilter keeps tracks outside a length window out of the queue.
// Catalogs often lack durations and URL tracks never have one, so a zero
// duration passes unless RejectUnknown is set.
type DurationLimitFilter struct {
	config DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Rejects tracks shorter or longer than the configured limits"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{CodeTrackTooShort, CodeTrackTooLong, CodeUnknownDuration}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	if config.MaxSeconds > 0 && config.MinSeconds > config.MaxSeconds {
		return errors.Newf("min_seconds (%d) cannot be greater than max_seconds (%d)", config.MinSeconds, config.MaxSeconds)
	}
	f.config = config
	zlog.Info().Msgf("duration limit filter config: min=%ds max=%ds reject_unknown=%v",
		config.MinSeconds, config.MaxSeconds, config.RejectUnknown)
	return nil
}

func (f *DurationLimitFilter) AppliesTo(origin Origin) bool {
	return true
}

func (f *DurationLimitFilter) Check(ctx context.Context, req Request) Result {
	seconds := int(req.Track.Duration)
	switch {
	case seconds == 0:
		if f.config.RejectUnknown {
			return Reject(CodeUnknownDuration)
		}
	case seconds < f.config.MinSeconds:
		return Reject(CodeTrackTooShort)
	case f.config.MaxSeconds > 0 && seconds > f.config.MaxSeconds:
		return Reject(CodeTrackTooLong)
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return NewDurationLimitFilter()
	})
}
