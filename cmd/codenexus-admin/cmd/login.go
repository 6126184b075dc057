package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in as the admin account",
	Long: `Sign in with Google in your browser.

Only the account configured as [admin].email is accepted. The session is
valid for 24 hours; after that, run login again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newAuthManager()
		if err != nil {
			return err
		}

		if s, err := mgr.Current(); err == nil {
			fmt.Printf("Already signed in as %s (until %s).\n", s.Email, s.ExpiresAt().Local().Format("2006-01-02 15:04"))
			return nil
		}

		s, err := mgr.Login(cmd.Context())
		if errors.Is(err, auth.ErrNotAdmin) {
			return fmt.Errorf("%w\n\nOnly %s may use this tool", err, cfg.Admin.Email)
		}
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		name := s.Name
		if name == "" {
			name = s.Email
		}
		fmt.Printf("Welcome, %s. Signed in as %s.\n", name, s.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
