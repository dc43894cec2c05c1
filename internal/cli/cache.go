package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// newCacheCmd groups the cache maintenance commands.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the fact cache",
	}
	cmd.AddCommand(newCacheStatsCmd(), newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count and size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, store, err := setupCache(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("cache is disabled")
			}

			count, size, err := store.Stats()
			if err != nil {
				return err
			}

			p := message.NewPrinter(language.English)
			out := cmd.OutOrStdout()
			p.Fprintf(out, "Directory: %s\n", store.Dir())
			p.Fprintf(out, "Entries:   %d\n", count)
			p.Fprintf(out, "Size:      %d bytes\n", size)
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached facts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, store, err := setupCache(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("cache is disabled")
			}

			store.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	}
}
