// Package cli wires the sysfacts commands: fact collection and cache
// maintenance.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/sysfacts/internal/config"
	"github.com/rshade/sysfacts/internal/logging"
)

// NewRootCmd creates the root Cobra command for the sysfacts CLI.
// It wires up logging and the show and cache subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var cleanup func()

	cmd := &cobra.Command{
		Use:     "sysfacts",
		Short:   "Collect and cache system facts",
		Long:    "sysfacts resolves named system facts (hostname, kernel, memory, ...) and caches them across runs with per-fact TTLs",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			loggingCfg := cfg.Logging
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				loggingCfg.Level = "debug"
			}

			logger, loggerCleanup, err := logging.New(loggingCfg)
			if err != nil {
				return err
			}
			cleanup = loggerCleanup

			cmd.SetContext(logging.WithContext(cmd.Context(), logger))
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if cleanup != nil {
				cleanup()
			}
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "path to config file (default ~/.sysfacts/config.yaml)")
	cmd.PersistentFlags().String("cache-dir", "", "cache directory (overrides config file and "+config.EnvCacheDir+")")
	cmd.PersistentFlags().Int64("cache-ttl", 0, "cache TTL in seconds for every fact (-1 = forever, 0 = use per-fact defaults)")
	cmd.PersistentFlags().Bool("no-cache", false, "disable the persistent cache for this run")

	cmd.AddCommand(newShowCmd(), newCacheCmd())

	return cmd
}

const rootCmdExample = `  # Show all facts
  sysfacts show

  # Show selected facts as YAML
  sysfacts show hostname kernel --output yaml

  # Force fresh values, caching them for 5 minutes
  sysfacts show --cache-ttl 300

  # Inspect and empty the cache
  sysfacts cache stats
  sysfacts cache clear`
