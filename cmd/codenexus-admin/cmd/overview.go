package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/stats"
)

var (
	overviewRefresh bool
	overviewJSON    bool
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show dashboard totals",
	Long: `Show totals for users and registrations, today's activity, the most
common college and the latest registrations.

The overview is cached with the datasets. Use --refresh to recompute it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		svc := b.newStats()
		var (
			o         stats.Overview
			fromCache bool
		)
		if overviewRefresh {
			o, err = svc.Refresh(cmd.Context())
		} else {
			o, fromCache, err = svc.Overview(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("overview: %w", err)
		}

		out := cmd.OutOrStdout()
		if overviewJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(o)
		}
		printOverview(out, o, fromCache)
		return nil
	},
}

func printOverview(w io.Writer, o stats.Overview, fromCache bool) {
	source := "computed"
	if fromCache {
		source = "cached"
	}
	fmt.Fprintf(w, "Overview (%s %s)\n", source, o.ComputedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  Users:               %d\n", o.TotalUsers)
	fmt.Fprintf(w, "  New users today:     %d\n", o.NewUsersToday)
	fmt.Fprintf(w, "  Registrations:       %d\n", o.TotalRegistrations)
	fmt.Fprintf(w, "  Registrations today: %d\n", o.RegistrationsToday)
	fmt.Fprintf(w, "  Average per day:     %d\n", o.AvgPerDay)
	fmt.Fprintf(w, "  Top college:         %s\n", record.Display(o.TopCollege))

	if len(o.Recent) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent registrations:")
	for _, r := range o.Recent {
		when := record.NotAvailable
		if t, ok := record.Resolve(r); ok {
			when = t.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "  %s  %s <%s>\n", when, record.Display(r.Name()), record.Display(r.Email()))
	}
}

func init() {
	rootCmd.AddCommand(overviewCmd)
	overviewCmd.Flags().BoolVar(&overviewRefresh, "refresh", false, "recompute instead of using the cache")
	overviewCmd.Flags().BoolVar(&overviewJSON, "json", false, "Output as JSON")
}
