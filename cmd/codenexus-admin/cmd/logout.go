package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and delete the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newAuthManager()
		if err != nil {
			return err
		}
		if err := mgr.Logout(); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		fmt.Println("Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
