package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/compose"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/dispatch"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive dashboard",
	Long: `Open the terminal dashboard for users and registrations.

Navigation:
  ↑/k, ↓/j    Move up/down
  PgUp/PgDn   Page up/down
  Tab         Switch between users and registrations
  /           Search by name, email, phone or college
  m           Load the next page
  r           Refresh from Firestore
  s, Space    Toggle the email status of the selected row
  e           Send email to the filtered rows
  ?           Help
  q           Quit

Logs are written to tui.log in the data directory while the dashboard
is open.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The alternate screen would be garbled by log lines on stderr.
		logPath := filepath.Join(cfg.HomeDir, "tui.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		mode, err := dispatch.ParseMode(cfg.Email.Mode)
		if err != nil {
			return err
		}

		model, err := tui.New(tui.Options{
			Cache:        b.cache,
			Store:        b.store,
			Status:       b.newCoordinator(),
			Launcher:     compose.BrowserLauncher{},
			PageSize:     cfg.View.PageSize,
			BatchSize:    cfg.Email.BatchSize,
			Mode:         mode,
			AutoDispatch: cfg.Email.AutoDispatch,
			Logger:       logger,
			Version:      Version,
		})
		if err != nil {
			return err
		}

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("tui error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
