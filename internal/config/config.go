// Package config provides configuration loading and validation for the
// repository inspection server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all environment variables read by the server.
const EnvPrefix = "REPOLENS"

// TokenEnvVar is the environment variable consulted for the git token when
// no token file is configured.
const TokenEnvVar = "REPOLENS_GIT_TOKEN"

const (
	// ProviderGit serves repository data through the local git transport
	// and the on-disk clone cache.
	ProviderGit = "git"

	// ProviderAPI serves repository data through the GitLab REST API.
	ProviderAPI = "api"
)

const (
	defaultAddress      = ":8080"
	defaultCloneTimeout = 10 * time.Minute
	defaultFetchTimeout = 2 * time.Minute
)

// Option configures the loader.
type Option func(*loaderConfig) error

type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file.
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config is the root configuration structure.
type Config struct {
	// Server holds HTTP listener settings.
	Server ServerConfig `yaml:"server,omitempty"`

	// Provider selects how repository data is fetched (git or api).
	// Defaults to git.
	Provider string `yaml:"provider,omitempty"`

	// Cache holds clone cache settings for the git provider.
	Cache CacheConfig `yaml:"cache,omitempty"`

	// Auth holds the default credential applied when a request carries
	// none. Optional; public repositories need no credential at all.
	Auth *AuthConfig `yaml:"auth,omitempty"`

	// Metrics toggles the Prometheus metrics endpoint.
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// ServerConfig defines HTTP listener settings.
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080".
	Address string `yaml:"address,omitempty"`
}

// CacheConfig defines the on-disk clone cache used by the git provider.
type CacheConfig struct {
	// Dir is the base directory holding one bare clone per repository.
	// Defaults to <xdg-cache-home>/repolens.
	Dir string `yaml:"dir,omitempty"`

	// CloneTimeout bounds an initial clone (e.g. "10m").
	CloneTimeout string `yaml:"cloneTimeout,omitempty"`

	// FetchTimeout bounds a fetch of an already cached repository
	// (e.g. "2m").
	FetchTimeout string `yaml:"fetchTimeout,omitempty"`
}

// AuthConfig defines the default git credential.
type AuthConfig struct {
	// Username is the username paired with the token. GitLab accepts
	// "oauth2" for any token-based auth; that is the default.
	Username string `yaml:"username,omitempty"`

	// TokenFile is the path to a file containing the token. This is the
	// recommended way to supply a token in production; the file should
	// contain only the token with optional trailing whitespace.
	TokenFile string `yaml:"tokenFile,omitempty"`
}

// MetricsConfig toggles metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// GetToken returns the configured token using the following priority:
// 1. the token file, if set; 2. the REPOLENS_GIT_TOKEN environment
// variable. Whitespace is trimmed from file contents.
func (a *AuthConfig) GetToken() (string, error) {
	if a.TokenFile != "" {
		data, err := os.ReadFile(filepath.Clean(a.TokenFile))
		if err != nil {
			return "", fmt.Errorf("failed to read token from file %s: %w", a.TokenFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envToken := os.Getenv(TokenEnvVar); envToken != "" {
		return envToken, nil
	}

	return "", fmt.Errorf("no token configured: set auth.tokenFile or %s", TokenEnvVar)
}

// GetUsername returns the configured username, defaulting to "oauth2".
func (a *AuthConfig) GetUsername() string {
	if a == nil || a.Username == "" {
		return "oauth2"
	}
	return a.Username
}

// LoadConfig loads, defaults, and validates configuration from a YAML file.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with all defaults applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Provider == "" {
		c.Provider = ProviderGit
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(xdg.CacheHome, "repolens")
	}
	if c.Cache.CloneTimeout == "" {
		c.Cache.CloneTimeout = defaultCloneTimeout.String()
	}
	if c.Cache.FetchTimeout == "" {
		c.Cache.FetchTimeout = defaultFetchTimeout.String()
	}
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Provider != ProviderGit && c.Provider != ProviderAPI {
		return fmt.Errorf("provider must be %q or %q, got %q", ProviderGit, ProviderAPI, c.Provider)
	}

	if _, err := time.ParseDuration(c.Cache.CloneTimeout); err != nil {
		return fmt.Errorf("cache.cloneTimeout must be a valid duration (e.g. '10m'): %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.FetchTimeout); err != nil {
		return fmt.Errorf("cache.fetchTimeout must be a valid duration (e.g. '2m'): %w", err)
	}

	// An unreadable token file should fail at startup, not on the first
	// authenticated request.
	if c.Auth != nil && c.Auth.TokenFile != "" {
		if _, err := c.Auth.GetToken(); err != nil {
			return err
		}
	}

	return nil
}

// GetCloneTimeout returns the parsed clone timeout, falling back to the
// default when unset or invalid.
func (c *CacheConfig) GetCloneTimeout() time.Duration {
	d, err := time.ParseDuration(c.CloneTimeout)
	if err != nil || d <= 0 {
		return defaultCloneTimeout
	}
	return d
}

// GetFetchTimeout returns the parsed fetch timeout, falling back to the
// default when unset or invalid.
func (c *CacheConfig) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil || d <= 0 {
		return defaultFetchTimeout
	}
	return d
}
