package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/yukitaka/tccretro/internal/acquire"
	"github.com/yukitaka/tccretro/internal/config"
	"github.com/yukitaka/tccretro/internal/profile"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// activeProfile holds the loaded user profile.
var activeProfile *profile.Profile

// logger writes human-readable lines to stderr. Info level by default,
// debug with --debug.
var logger zerolog.Logger

var (
	debugFlag      bool
	headlessFlag   bool
	outputDirFlag  string
	profileDirFlag string
	slowMoFlag     int
)

var rootCmd = &cobra.Command{
	Use:   "tccretro",
	Short: "Export TaskChute Cloud time logs and turn them into retrospective reports",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if debugFlag {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

		// Skip setup check for the setup command itself.
		if cmd.Name() == "setup" {
			return nil
		}

		// First-run: profile missing → run setup wizard automatically.
		// Only do this when stdin is an interactive terminal.
		if !profile.Exists() {
			if term.IsTerminal(os.Stdin.Fd()) {
				fmt.Println()
				fmt.Println("  Welcome to tccretro! Looks like this is your first time.")
				if err := runSetup(true); err != nil {
					return err
				}
			}
			// Non-interactive (tests, pipes): continue with defaults, no profile required.
		}

		// Load profile (optional, may not exist in non-interactive environments).
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		// Load and merge config files.
		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)

		// Profile values fill in config gaps.
		defaults := config.Defaults()
		if activeProfile != nil {
			if cfg.OutputDir == defaults.OutputDir && activeProfile.OutputDir != "" && activeProfile.OutputDir != "." {
				cfg.OutputDir = activeProfile.OutputDir
			}
			if cfg.ModelID == defaults.ModelID && activeProfile.ModelID != "" {
				cfg.ModelID = activeProfile.ModelID
			}
			if cfg.ScheduleTime == defaults.ScheduleTime && activeProfile.ScheduleTime != "" {
				cfg.ScheduleTime = activeProfile.ScheduleTime
			}
		}

		// Flags beat both config files and profile.
		flags := cmd.Root().PersistentFlags()
		if flags.Changed("output-dir") {
			cfg.OutputDir = outputDirFlag
		}
		if flags.Changed("profile-dir") {
			cfg.ProfileDir = profileDirFlag
		}
		if flags.Changed("slow-mo") {
			cfg.SlowMoMs = slowMoFlag
		}

		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// GetProfile returns the active user profile.
func GetProfile() *profile.Profile {
	return activeProfile
}

// newAcquirer builds the acquisition facade from the merged configuration.
// visible forces a headful browser regardless of --headless.
func newAcquirer(visible bool) *acquire.Acquirer {
	return acquire.New(acquire.Options{
		ProfileDir:      cfg.ProfileDir,
		BaseURL:         cfg.BaseURL,
		Visible:         visible || !headlessFlag,
		SlowMo:          time.Duration(cfg.SlowMoMs) * time.Millisecond,
		LoggedInMarker:  cfg.LoggedInMarker,
		LoggedOutMarker: cfg.LoggedOutMarker,
		DownloadTimeout: time.Duration(cfg.DownloadTimeoutSec) * time.Second,
		Debug:           debugFlag,
		Progress: func(elapsed, remaining time.Duration) {
			fmt.Fprintf(os.Stderr, "  waiting for login... %s elapsed, %s left\n",
				elapsed.Round(time.Second), remaining.Round(time.Second))
		},
	}, logger)
}

// loginTimeout returns the configured manual-login timeout.
func loginTimeout() time.Duration {
	return time.Duration(cfg.LoginTimeoutSec) * time.Second
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&debugFlag, "debug", false, "verbose logging and failure screenshots")
	pf.BoolVar(&headlessFlag, "headless", true, "run the browser without a window (login always shows one)")
	pf.StringVar(&outputDirFlag, "output-dir", "", "directory for CSVs and reports (overrides config)")
	pf.StringVar(&profileDirFlag, "profile-dir", "", "Chrome profile directory (overrides config)")
	pf.IntVar(&slowMoFlag, "slow-mo", 0, "milliseconds to pause after each browser action")
}
