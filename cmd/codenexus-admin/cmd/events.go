package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

var eventsJSON bool

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List events",
	Long: `List the events attendees can register for.

Events are read directly from the document store and are not cached.

Examples:
  codenexus-admin events
  codenexus-admin event-stats <event-id>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		events, err := b.store.List(cmd.Context(), record.EventsCollection)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })

		out := cmd.OutOrStdout()
		if eventsJSON {
			return outputRecordsJSON(out, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No events found.")
			return nil
		}
		outputEventsTable(out, events)
		return nil
	},
}

// eventTitle returns the event's title, falling back to its name field.
func eventTitle(r record.Record) string {
	if t := r.Text("title"); t != "" {
		return t
	}
	return record.Display(r.Name())
}

func outputEventsTable(w io.Writer, events []record.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tREGISTRATION")
	fmt.Fprintln(tw, "──\t─────\t────────────")
	for _, e := range events {
		state := "closed"
		if open, _ := e.Get("isOpen").(bool); open {
			state = "open"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, eventTitle(e), state)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d event(s)\n", len(events))
}

var eventStatsJSON bool

var eventStatsCmd = &cobra.Command{
	Use:   "event-stats <event-id>",
	Short: "Show registration statistics for one event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		es, err := b.newStats().Event(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if eventStatsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(es)
		}

		fmt.Fprintf(out, "Event: %s\n", es.EventID)
		fmt.Fprintf(out, "  Registrations: %d\n", es.Total)
		fmt.Fprintf(out, "  Today:         %d\n", es.Today)
		if es.Total == 0 {
			return nil
		}

		fmt.Fprintln(out, "\nBy college:")
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, c := range es.SortedColleges() {
			fmt.Fprintf(tw, "  %s\t%d\n", c.College, c.Count)
		}
		tw.Flush()

		fmt.Fprintln(out, "\nBy day:")
		for _, d := range es.Daily {
			fmt.Fprintf(out, "  %s  %d\n", d.Date, d.Count)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(eventStatsCmd)
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output as JSON")
	eventStatsCmd.Flags().BoolVar(&eventStatsJSON, "json", false, "Output as JSON")
}
