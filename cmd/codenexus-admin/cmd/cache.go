package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the local dataset cache",
	Long: `Datasets are cached locally after the first fetch and served from the
cache until a refresh or a status change. These commands work without
signing in.`,
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is cached and how old it is",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closer, err := openCache()
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}

		out := cmd.OutOrStdout()
		if cfg.Cache.Disabled {
			fmt.Fprintln(out, "Cache: disabled (in memory for each run)")
		} else {
			fmt.Fprintf(out, "Cache: %s\n", cfg.CachePath())
		}
		fmt.Fprintf(out, "Quota: %s\n\n", formatBytes(cfg.Cache.QuotaBytes))
		printCacheAges(out, c)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closer, err := openCache()
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}
		if err := c.InvalidateAll(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
		return nil
	},
}

func printCacheAges(w io.Writer, c *cache.Store) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tAGE")
	fmt.Fprintln(tw, "───\t───")
	for _, key := range cache.Keys {
		age := "not cached"
		if d, ok := c.Age(key); ok {
			age = formatDuration(d.Truncate(time.Second)) + " old"
		}
		fmt.Fprintf(tw, "%s\t%s\n", key, age)
	}
	tw.Flush()
}

// formatBytes formats a byte count in binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
