package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Setting is the configuration of one filter.
type Setting struct {
	Enabled  bool
	Settings map[string]any
}

// BuildChain creates a chain of the enabled registered filters, in name
// order. Filters whose settings do not validate are logged and skipped.
func BuildChain(settings map[string]Setting) *Chain {
	c := NewChain()
	for name := range settings {
		if _, ok := registry[name]; !ok {
			zlog.Warn().Msgf("unknown filter in config: %s", name)
		}
	}

	for _, name := range Names() {
		s, ok := settings[name]
		if !ok || !s.Enabled {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(s.Settings); err != nil {
			zlog.Error().Msgf("failed to validate %s config: %v", name, err)
			continue
		}
		c.Add(f)
		zlog.Info().Msgf("filter enabled: %s", name)
	}
	return c
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the request.
// Filters are only applied if they declare they apply to the request origin.
func (c *Chain) Execute(ctx context.Context, req Request) Result {
	if c == nil {
		return Accept()
	}
	for _, f := range c.filters {
		if !f.AppliesTo(req.Origin) {
			continue
		}

		result := f.Check(ctx, req)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	if c == nil {
		return nil
	}
	return c.filters
}
