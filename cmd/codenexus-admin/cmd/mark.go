package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/status"
)

// newMarkCmd builds mark-sent or mark-unsent.
func newMarkCmd(sent bool) *cobra.Command {
	use, short := "mark-sent", "Mark records' email as sent"
	if !sent {
		use, short = "mark-unsent", "Mark records' email as NOT sent"
	}
	return &cobra.Command{
		Use:   use + " <users|registrations> <id>...",
		Short: short,
		Long: short + `.

Each id must belong to the dataset. One confirmation is asked for the whole
set; pass --yes to skip it.

Examples:
  codenexus-admin ` + use + ` users abc123
  codenexus-admin ` + use + ` registrations r1 r2 r3 --yes`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := record.KindByName(args[0])
			if err != nil {
				return err
			}

			b, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			ctrl, err := b.loadRecords(cmd.Context(), kind, "", false)
			if err != nil {
				return err
			}
			targets, err := lookupRecords(ctrl.All(), args[1:])
			if err != nil {
				return err
			}

			coord := b.newCoordinator()
			var done bool
			if len(targets) == 1 {
				done, err = coord.Toggle(cmd.Context(), kind, targets[0], sent)
			} else {
				ids := make([]string, len(targets))
				for i, r := range targets {
					ids[i] = r.ID
				}
				done, err = coord.ToggleBulk(cmd.Context(), kind, ids, sent)
			}
			return reportMark(cmd.OutOrStdout(), kind, len(targets), sent, done, err)
		},
	}
}

// lookupRecords returns the records with the given ids, in argument order.
// Duplicate ids are collapsed.
func lookupRecords(all []record.Record, ids []string) ([]record.Record, error) {
	byID := make(map[string]record.Record, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}
	var (
		out     []record.Record
		missing []string
	)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, r)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("not found: %s (try --refresh on the listing command)", strings.Join(missing, ", "))
	}
	return out, nil
}

func reportMark(w io.Writer, kind record.Kind, n int, sent, done bool, err error) error {
	var perr *status.PersistenceError
	if errors.As(err, &perr) && len(perr.Failed) < len(perr.IDs) {
		fmt.Fprintf(w, "Updated %d of %d %s; failed: %s\n",
			len(perr.IDs)-len(perr.Failed), len(perr.IDs), kind.Name, strings.Join(perr.Failed, ", "))
		return err
	}
	if err != nil {
		return err
	}
	if !done {
		fmt.Fprintln(w, "Cancelled.")
		return nil
	}
	label := "sent"
	if !sent {
		label = "NOT sent"
	}
	fmt.Fprintf(w, "Marked %d %s as %s.\n", n, kind.Name, label)
	return nil
}

func init() {
	rootCmd.AddCommand(newMarkCmd(true))
	rootCmd.AddCommand(newMarkCmd(false))
}
