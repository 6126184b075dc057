package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		if offline {
			fmt.Println("Offline demo mode (no account).")
			return nil
		}
		mgr, err := newAuthManager()
		if err != nil {
			return err
		}
		s, err := mgr.Current()
		if err != nil {
			return err
		}
		fmt.Printf("Email:   %s\n", s.Email)
		if s.Name != "" {
			fmt.Printf("Name:    %s\n", s.Name)
		}
		fmt.Printf("Expires: %s\n", s.ExpiresAt().Local().Format("2006-01-02 15:04"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
