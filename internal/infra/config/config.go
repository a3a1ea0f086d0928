// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig            `yaml:"server"`
	Library LibraryConfig           `yaml:"library"`
	Player  PlayerConfig            `yaml:"player"`
	Filters map[string]FilterConfig `yaml:"filters"`
	Spotify SpotifyConfig           `yaml:"spotify"`

	// Path is the file the configuration was read from; empty when only
	// defaults and environment variables apply.
	Path string `yaml:"-"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Addr               string      `yaml:"addr" default:":3000" validate:"required"`
	CORSOrigins        []string    `yaml:"cors_origins" default:"[\"*\"]"`
	MusicDir           string      `yaml:"music_dir" default:"music"`
	ReadTimeoutSec     int         `yaml:"read_timeout_sec" default:"15" validate:"gte=1"`
	WriteTimeoutSec    int         `yaml:"write_timeout_sec" default:"15" validate:"gte=1"`
	ShutdownTimeoutSec int         `yaml:"shutdown_timeout_sec" default:"10" validate:"gte=1"`
	Hooks              HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// LibraryConfig represents track catalog configuration.
type LibraryConfig struct {
	CatalogPath     string   `yaml:"catalog_path" default:"library.json"`
	RemoteURL       string   `yaml:"remote_url" validate:"omitempty,url"`
	FetchTimeoutSec int      `yaml:"fetch_timeout_sec" default:"10" validate:"gte=1,lte=120"`
	Sources         []string `yaml:"sources" default:"[\"remote\",\"file\"]" validate:"dive,oneof=remote file"`
	SaveOnRefresh   bool     `yaml:"save_on_refresh"`
}

// PlayerConfig represents playback session configuration.
type PlayerConfig struct {
	BaseURL        string  `yaml:"base_url" default:"http://localhost:3000"`
	PollIntervalMs int      `yaml:"poll_interval_ms" default:"2000" validate:"gte=100,lte=60000"`
	DefaultVolume  *float64 `yaml:"default_volume" validate:"omitempty,gte=0,lte=2"` // nil means 1.0; 0 starts muted
}

// Volume returns the starting volume of new sessions.
func (p PlayerConfig) Volume() float64 {
	if p.DefaultVolume == nil {
		return 1
	}
	return *p.DefaultVolume
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SpotifyConfig represents Spotify API configuration.
// Only used to resolve metadata of Spotify track links.
type SpotifyConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string `yaml:"client_secret" validate:"required_if=Enabled true"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Load loads configuration from a YAML file.
// A missing file is not an error: defaults apply.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errors.Wrap(err, "failed to parse config file")
			}
			cfg.Path = path
		case os.IsNotExist(err):
			// Defaults only.
		default:
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("REMOTE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("REMOTE_MUSIC_DIR"); v != "" {
		c.Server.MusicDir = v
	}
	if v := os.Getenv("REMOTE_BASE_URL"); v != "" {
		c.Player.BaseURL = v
	}
	if v := os.Getenv("REMOTE_LIBRARY_URL"); v != "" {
		c.Library.RemoteURL = v
	}
	if v := os.Getenv("REMOTE_CATALOG_PATH"); v != "" {
		c.Library.CatalogPath = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return errors.Newf("invalid cors origin %q: use * or an http(s) origin", origin)
		}
	}
	return nil
}

// PollInterval returns the observer poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Player.PollIntervalMs) * time.Millisecond
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}
