package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/export"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

var (
	exportOutput  string
	exportFormat  string
	exportSearch  string
	exportRefresh bool
)

var exportCmd = &cobra.Command{
	Use:   "export <users|registrations>",
	Short: "Export a dataset to CSV, JSON or YAML",
	Long: `Export every record of a dataset, or those matching --search.

The format is taken from --format, else from the output file extension,
else CSV. Without --output the export is written to stdout.

Examples:
  codenexus-admin export users -o users.csv
  codenexus-admin export registrations --search vit --format json`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{record.Users.Name, record.Registrations.Name},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := record.KindByName(args[0])
		if err != nil {
			return err
		}
		format, err := resolveExportFormat(exportFormat, exportOutput)
		if err != nil {
			return err
		}

		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		ctrl, err := b.loadRecords(cmd.Context(), kind, exportSearch, exportRefresh)
		if err != nil {
			return err
		}
		rows := ctrl.Filtered()

		if exportOutput == "" {
			return export.Write(cmd.OutOrStdout(), format, rows)
		}
		if err := export.ToFile(exportOutput, format, rows); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d %s to %s\n", len(rows), kind.Name, exportOutput)
		return nil
	},
}

// resolveExportFormat picks the explicit format, then the file extension,
// then CSV.
func resolveExportFormat(flag, path string) (export.Format, error) {
	if flag != "" {
		return export.ParseFormat(flag)
	}
	if path != "" {
		if f, err := export.FormatFromPath(path); err == nil {
			return f, nil
		}
	}
	return export.FormatCSV, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "csv, json or yaml")
	exportCmd.Flags().StringVarP(&exportSearch, "search", "s", "", "only export records matching this text")
	exportCmd.Flags().BoolVar(&exportRefresh, "refresh", false, "ignore the cache and fetch again")
}
