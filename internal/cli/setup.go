package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/sysfacts/internal/cache"
	"github.com/rshade/sysfacts/internal/config"
	"github.com/rshade/sysfacts/internal/facts"
	"github.com/rshade/sysfacts/internal/logging"
)

// loadConfig reads the config file named by --config (or the default
// location) and applies environment overrides plus the --cache-dir flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if dir, _ := cmd.Flags().GetString("cache-dir"); dir != "" {
		cfg.Cache.Dir = dir
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}

	return cfg, nil
}

// setupCache builds the fact cache from the resolved configuration. Returns
// a nil cache when caching is disabled; callers treat that as "resolve
// everything fresh".
func setupCache(cmd *cobra.Command) (*config.Config, *cache.Cache, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	if !cfg.Cache.Enabled {
		return cfg, nil, nil
	}

	store := cache.New(cfg.CacheDir(), cache.WithLogger(logging.FromContext(cmd.Context())))
	return cfg, store, nil
}

// storeOrNil converts a possibly-nil *cache.Cache into a facts.Store
// without producing a non-nil interface around a nil pointer.
func storeOrNil(store *cache.Cache) facts.Store {
	if store == nil {
		return nil
	}
	return store
}
