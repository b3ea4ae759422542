package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yukitaka/tccretro/internal/auth"
)

var loginTimeoutFlag int

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Open a browser window and log in to TaskChute Cloud by hand",
	RunE: func(cmd *cobra.Command, args []string) error {
		acq := newAcquirer(true)
		defer acq.Close()

		fmt.Println()
		fmt.Println("  A Chrome window will open. Log in to TaskChute Cloud there.")
		fmt.Println("  The login is kept in the local browser profile, so later")
		fmt.Println("  exports run without this step.")
		fmt.Println()

		timeout := loginTimeout()
		if cmd.Flags().Changed("timeout") {
			timeout = time.Duration(loginTimeoutFlag) * time.Second
		}

		if err := acq.EnsureAuthenticated(cmd.Context(), timeout); err != nil {
			var lte *auth.LoginTimeoutError
			if errors.As(err, &lte) {
				return fmt.Errorf("no login detected within %s, run 'tccretro login' again", lte.Timeout)
			}
			return err
		}

		fmt.Println("  ✓ Logged in. You can now run 'tccretro export'.")
		return nil
	},
}

func init() {
	loginCmd.Flags().IntVar(&loginTimeoutFlag, "timeout", 0, "seconds to wait for the manual login (overrides config)")
	rootCmd.AddCommand(loginCmd)
}
