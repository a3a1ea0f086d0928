package filter

import (
	"context"
	"net/url"
	"strings"

	zlog "github.com/rs/zerolog/log"
)

// URLSchemeConfig represents the configuration for URLSchemeFilter.
type URLSchemeConfig struct {
	AllowedSchemes []string `yaml:"allowed_schemes" mapstructure:"allowed_schemes" default:"[\"http\",\"https\"]" validate:"min=1,dive,oneof=http https"`
	AllowedHosts   []string `yaml:"allowed_hosts" mapstructure:"allowed_hosts" validate:"dive,hostname_rfc1123"`
}

// URLSchemeFilter restricts direct URL tracks to allowed schemes and hosts.
// An empty host list allows every host.
type URLSchemeFilter struct {
	config URLSchemeConfig
}

// NewURLSchemeFilter creates a filter allowing http and https from any host.
func NewURLSchemeFilter() *URLSchemeFilter {
	return &URLSchemeFilter{
		config: URLSchemeConfig{AllowedSchemes: []string{"http", "https"}},
	}
}

func (f *URLSchemeFilter) Name() string {
	return "url_scheme_filter"
}

func (f *URLSchemeFilter) Description() string {
	return "Restricts direct URL tracks to allowed schemes and hosts"
}

func (f *URLSchemeFilter) ReturnCodes() []string {
	return []string{"url_scheme_not_allowed", "url_host_not_allowed"}
}

func (f *URLSchemeFilter) ValidateConfig(settings map[string]any) error {
	var config URLSchemeConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = config
	zlog.Info().Msgf("url scheme filter config: %+v", config)
	return nil
}

func (f *URLSchemeFilter) AppliesTo(origin Origin) bool {
	return origin == OriginURL
}

func (f *URLSchemeFilter) Check(ctx context.Context, req Request) Result {
	u, err := url.Parse(req.Track.URL)
	if err != nil || !containsFold(f.config.AllowedSchemes, u.Scheme) {
		return Reject("url_scheme_not_allowed")
	}

	if len(f.config.AllowedHosts) == 0 {
		return Accept()
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range f.config.AllowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return Accept()
		}
	}
	return Reject("url_host_not_allowed")
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func init() {
	Register("url_scheme_filter", func() Filter {
		return NewURLSchemeFilter()
	})
}
