package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// listOptions holds the flags of a dataset listing command.
type listOptions struct {
	search  string
	page    int
	all     bool
	json    bool
	refresh bool
}

// newListCmd builds the listing command for one dataset.
func newListCmd(kind record.Kind) *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   kind.Name,
		Short: fmt.Sprintf("List %s", kind.Name),
		Long: fmt.Sprintf(`List %[1]s, newest first.

Data is served from the local cache when present. Use --refresh to fetch
the collection again.

Examples:
  codenexus-admin %[1]s
  codenexus-admin %[1]s --search vit --page 2
  codenexus-admin %[1]s --all --json`, kind.Name),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			ctrl, err := b.loadRecords(cmd.Context(), kind, opts.search, opts.refresh)
			if err != nil {
				return err
			}

			var rows []record.Record
			first := 1
			if opts.all {
				rows = ctrl.Filtered()
			} else {
				if opts.page < 1 {
					return fmt.Errorf("--page must be at least 1")
				}
				// Pages past the end show the last page.
				page := ctrl.RenderPage(opts.page, false)
				rows = page.Items
				first = (page.Number-1)*ctrl.PageSize() + 1
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return outputRecordsJSON(out, rows)
			}
			if len(rows) == 0 {
				if opts.search != "" {
					fmt.Fprintf(out, "No %s match %q.\n", kind.Name, opts.search)
				} else {
					fmt.Fprintf(out, "No %s found.\n", kind.Name)
				}
				return nil
			}
			outputRecordsTable(out, kind, rows, first)
			if opts.all {
				fmt.Fprintf(out, "\n%d %s\n", len(rows), kind.Name)
			} else {
				fmt.Fprintf(out, "\nPage %d of %d (%d %s)\n", ctrl.CurrentPage(), ctrl.TotalPages(), len(ctrl.Filtered()), kind.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "only show records matching this text")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 1, "page number")
	cmd.Flags().BoolVar(&opts.all, "all", false, "show every matching record")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore the cache and fetch again")
	return cmd
}

// outputRecordsTable prints rows numbered from first.
func outputRecordsTable(w io.Writer, kind record.Kind, rows []record.Record, first int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tEMAIL\tPHONE\tCOLLEGE\tREGISTERED\tSTATUS")
	fmt.Fprintln(tw, "─\t──\t────\t─────\t─────\t───────\t──────────\t──────")
	for i, r := range rows {
		registered := record.NotAvailable
		if t, ok := record.Resolve(r); ok {
			registered = t.Local().Format("2006-01-02 15:04")
		}
		sent := "pending"
		if r.Sent(kind) {
			sent = "sent"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			first+i, r.ID,
			record.Display(r.Name()), record.Display(r.Email()), record.Display(r.Phone()),
			record.Display(r.College()), registered, sent)
	}
	tw.Flush()
}

func outputRecordsJSON(w io.Writer, rows []record.Record) error {
	if rows == nil {
		rows = []record.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func init() {
	for _, kind := range record.Kinds {
		rootCmd.AddCommand(newListCmd(kind))
	}
}
