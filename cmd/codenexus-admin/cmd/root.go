package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/config"
)

var (
	cfgFile   string
	homeDir   string
	verbose   bool
	assumeYes bool
	offline   bool // use built-in demo data instead of Firestore
	noCache   bool
	cfg       *config.Config
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "codenexus-admin",
	Short: "Admin console for the CodeNexus registration platform",
	Long: `codenexus-admin manages CodeNexus users and event registrations.

It signs in a single admin Google account, reads users and registrations
from Cloud Firestore, caches them locally until you refresh, and drives
bulk welcome and seminar emails through Gmail's compose window.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if noCache {
			cfg.Cache.Disabled = true
		}

		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.HomeDir, err)
		}
		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// oauthSetupHint returns help text for OAuth configuration issues,
// using the actual config file path so it's clear on all platforms.
func oauthSetupHint() string {
	configPath := "<config file>"
	if cfg != nil {
		configPath = cfg.ConfigPath
	}
	return fmt.Sprintf(`
To sign in, codenexus-admin needs a Google Cloud OAuth client:
  1. Create an OAuth client of type "Desktop app" in the Firebase project
  2. Download the client_secret.json file
  3. Create or edit %s:
       [admin]
       email = "admin@example.com"
       [firestore]
       project_id = "your-project-id"
       [oauth]
       client_secrets = "/path/to/client_secret.json"`, configPath)
}

// tryFindClientSecrets looks for client_secret*.json in common locations
// and returns a hint if found.
func tryFindClientSecrets() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "Downloads", "client_secret*.json"),
		"client_secret*.json",
	}
	if cfg != nil {
		candidates = append(candidates, filepath.Join(cfg.HomeDir, "client_secret*.json"))
	}
	for _, pattern := range candidates {
		matches, _ := filepath.Glob(pattern)
		if len(matches) > 0 {
			return fmt.Sprintf(`

Found OAuth credentials at: %s

To use this file, add to your config:
  [oauth]
  client_secrets = %q`, matches[0], matches[0])
		}
	}
	return ""
}

// wrapConfigError adds setup instructions to configuration and client
// secrets errors.
func wrapConfigError(err error) error {
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("OAuth client secrets file not accessible.%s", oauthSetupHint())
	}
	if hint := tryFindClientSecrets(); hint != "" {
		return fmt.Errorf("%w%s", err, hint)
	}
	return fmt.Errorf("%w%s", err, oauthSetupHint())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.codenexus-admin/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides CODENEXUS_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to confirmation prompts")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "use built-in demo data instead of Firestore")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "keep the dataset cache in memory for this run only")
}
