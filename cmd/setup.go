package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yukitaka/tccretro/internal/profile"
	"github.com/yukitaka/tccretro/internal/schedule"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure tccretro (re-run anytime to edit settings)",
	// Bypass the normal PersistentPreRunE so setup works before profile exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(false)
	},
}

// runSetup runs the interactive setup wizard.
// If firstRun is true, a welcome message is shown.
func runSetup(firstRun bool) error {
	if firstRun {
		fmt.Println()
		fmt.Println("  Welcome to tccretro! Let's get you set up.")
	}

	// Load existing profile as defaults if present.
	var existing *profile.Profile
	if profile.Exists() {
		p, err := profile.Load()
		if err == nil {
			existing = p
		}
	}

	prof, err := profile.RunSetup(existing)
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	if err := profile.Save(prof); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	fmt.Println("  ✓ Profile saved.")

	// Wire or unwire the daily export schedule.
	if prof.ScheduleDaily {
		msg, err := schedule.Install(schedule.Options{Time: prof.ScheduleTime})
		if err != nil {
			fmt.Printf("  ⚠ Schedule install failed: %v\n", err)
			fmt.Println("    You can retry with: tccretro setup")
		} else {
			fmt.Println("  ✓ " + msg)
		}
	} else if _, ok := schedule.Installed(schedule.Options{}); ok {
		if err := schedule.Uninstall(schedule.Options{}); err != nil {
			fmt.Printf("  ⚠ Could not remove the old schedule: %v\n", err)
		} else {
			fmt.Println("  ✓ Daily export schedule removed.")
		}
	}

	fmt.Println("  Setup complete. Run 'tccretro login' to connect your TaskChute Cloud account.")
	fmt.Println()
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
