// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	productionAPI = "https://api.expo.dev"
	stagingAPI    = "https://staging-api.expo.dev"
	localAPI      = "http://127.0.0.1:3000"
)

// Config holds all application configuration
type Config struct {
	// Beta enables the unstable channel. It also disables the disk cache.
	Beta bool `env:"EXPO_BETA"`
	// NoCache disables the disk cache.
	NoCache bool `env:"EXPO_NO_CACHE"`

	Staging bool   `env:"EXPO_STAGING"`
	Local   bool   `env:"EXPO_LOCAL"`
	APIURL  string `env:"EXPO_API_URL"`

	// Home is where caches and session state live. Defaults to ~/.expo.
	Home  string `env:"EXPO_HOME"`
	Token string `env:"EXPO_TOKEN"`

	Debug       bool          `env:"EXPO_DEBUG"`
	HTTPTimeout time.Duration `env:"EXPO_HTTP_TIMEOUT" envDefault:"30s"`
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Home == "" {
		usr, err := user.Current()
		if err != nil {
			return nil, err
		}
		cfg.Home = filepath.Join(usr.HomeDir, ".expo")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CacheEnabled reports whether the disk cache may be used. Either the beta
// channel or the no-cache switch turns it off.
func (c *Config) CacheEnabled() bool {
	return !c.Beta && !c.NoCache
}

// APIBaseURL returns the root of the remote API, without the version path.
func (c *Config) APIBaseURL() string {
	switch {
	case c.APIURL != "":
		return strings.TrimRight(c.APIURL, "/")
	case c.Local:
		return localAPI
	case c.Staging:
		return stagingAPI
	default:
		return productionAPI
	}
}

// CacheDir returns the directory for a cache namespace under Home.
func (c *Config) CacheDir(namespace string) string {
	return filepath.Join(c.Home, namespace)
}

// StatePath returns the path of the persisted session state.
func (c *Config) StatePath() string {
	return filepath.Join(c.Home, "state.json")
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("EXPO_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.Local && c.Staging {
		return fmt.Errorf("EXPO_LOCAL and EXPO_STAGING cannot both be set")
	}
	return nil
}
