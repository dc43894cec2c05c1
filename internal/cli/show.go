package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/sysfacts/internal/facts"
	"github.com/rshade/sysfacts/internal/logging"
)

// newShowCmd creates the "show" command: resolve the named facts (or all of
// them) and print the values.
func newShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show [fact...]",
		Short: "Resolve and print system facts",
		Long:  "Resolve the named facts (all registered facts when none are given), serving cached values while they are fresh",
		Example: `  # All facts as JSON
  sysfacts show

  # Selected facts as YAML
  sysfacts show hostname os --output yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			cfg, store, err := setupCache(cmd)
			if err != nil {
				return err
			}

			var opts []facts.CollectorOption
			if ttl, _ := cmd.Flags().GetInt64("cache-ttl"); ttl != 0 {
				opts = append(opts, facts.WithTTLOverride(ttl))
			}

			registry := facts.DefaultRegistry(cfg.Cache.TTL)
			collector := facts.NewCollector(registry, storeOrNil(store), opts...)

			values, err := collector.Collect(ctx, args...)
			if err != nil {
				return err
			}
			log.Debug().Str("component", "cli").Int("facts", len(values)).Msg("collected facts")

			return render(cmd, output, values)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")

	return cmd
}

// render prints the collected values in the requested format.
func render(cmd *cobra.Command, format string, values map[string]facts.Value) error {
	native := make(map[string]any, len(values))
	for name, value := range values {
		native[name] = value.Native()
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(native, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	case "yaml":
		data, err := yaml.Marshal(native)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
	return nil
}
