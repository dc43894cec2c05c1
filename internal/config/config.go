// Package config loads sysfacts configuration from a YAML file with
// environment-variable overrides, and resolves platform-dependent default
// paths such as the cache directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rshade/sysfacts/internal/logging"
)

// Defaults and environment variable names.
const (
	// DefaultTTLSeconds is the default fact cache TTL (1 hour).
	DefaultTTLSeconds int64 = 3600

	// EnvCacheDir overrides the cache directory.
	EnvCacheDir = "SYSFACTS_CACHE_DIR"

	// EnvCacheTTL overrides the default cache TTL in seconds.
	EnvCacheTTL = "SYSFACTS_CACHE_TTL"

	// EnvCacheEnabled enables or disables the persistent cache.
	EnvCacheEnabled = "SYSFACTS_CACHE_ENABLED"
)

// Config is the root configuration document.
type Config struct {
	Cache   CacheConfig    `yaml:"cache"`
	Logging logging.Config `yaml:"logging"`
}

// CacheConfig holds the cache section.
type CacheConfig struct {
	// Dir is the cache directory; empty means DefaultCacheDir().
	Dir string `yaml:"dir"`

	// TTL is the default TTL in seconds for resolvers that do not declare
	// their own.
	TTL int64 `yaml:"ttl"`

	// Enabled controls whether the persistent cache is used at all.
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir:     "",
			TTL:     DefaultTTLSeconds,
			Enabled: true,
		},
		Logging: logging.Config{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults are returned unchanged. Environment overrides are
// applied last in all cases.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables on top of file values. Invalid
// values are ignored in favor of what is already configured.
func (c *Config) applyEnv() {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		c.Cache.Dir = dir
	}

	if raw := os.Getenv(EnvCacheTTL); raw != "" {
		if ttl, err := strconv.ParseInt(raw, 10, 64); err == nil && ttl >= -1 {
			c.Cache.TTL = ttl
		}
	}

	if raw := os.Getenv(EnvCacheEnabled); raw != "" {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			c.Cache.Enabled = enabled
		}
	}
}

// CacheDir returns the configured cache directory, falling back to the
// platform default.
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return DefaultCacheDir()
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sysfacts", "config.yaml")
}

// DefaultCacheDir resolves the platform cache directory:
// %LOCALAPPDATA%\sysfacts\cache on Windows, ~/Library/Caches/sysfacts on
// macOS, /var/cache/sysfacts for root on other Unixes, and the user cache
// directory otherwise.
func DefaultCacheDir() string {
	switch runtime.GOOS {
	case "windows":
		if base := os.Getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, "sysfacts", "cache")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Caches", "sysfacts")
		}
	default:
		if os.Geteuid() == 0 {
			return filepath.Join("/var", "cache", "sysfacts")
		}
	}

	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "sysfacts")
	}
	return filepath.Join(os.TempDir(), "sysfacts-cache")
}
