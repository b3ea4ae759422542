// Package profile manages the user's persistent tccretro profile.
// The profile is stored at ~/.config/tccretro/profile.json and is created
// once via the interactive setup flow, then referenced on every command.
package profile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yukitaka/tccretro/internal/feedback"
	"github.com/yukitaka/tccretro/internal/schedule"
)

// Profile holds user-level preferences set during first-run setup.
type Profile struct {
	Name          string `json:"name"`
	OutputDir     string `json:"output_dir"`     // where exports and reports land
	EnableAI      bool   `json:"enable_ai"`      // generate feedback via Bedrock
	ModelID       string `json:"model_id"`       // Bedrock model for feedback
	ScheduleDaily bool   `json:"schedule_daily"` // install the daily export timer
	ScheduleTime  string `json:"schedule_time"`  // "HH:MM"
}

// profilePath returns the path to the profile file.
func profilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tccretro", "profile.json"), nil
}

// ConfigDir returns the tccretro config directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tccretro"), nil
}

// Exists reports whether a profile file is present on disk.
func Exists() bool {
	p, err := profilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads the profile from disk. Returns an error if the file is missing or malformed.
func Load() (*Profile, error) {
	p, err := profilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("profile not found, run 'tccretro setup' to configure: %w", err)
	}
	var prof Profile
	if err := json.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("malformed profile at %s: %w", p, err)
	}
	return &prof, nil
}

// Save writes the profile to disk, creating the config directory if needed.
func Save(prof *Profile) error {
	p, err := profilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// RunSetup runs the interactive setup wizard and saves the resulting profile.
// If existing is non-nil, it is used as the default for each prompt (edit mode).
func RunSetup(existing *Profile) (*Profile, error) {
	r := bufio.NewReader(os.Stdin)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Printf("%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Printf("%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askBool := func(prompt string, defaultVal bool) (bool, error) {
		def := "n"
		if defaultVal {
			def = "y"
		}
		ans, err := ask(prompt+" (y/n)", def)
		if err != nil {
			return false, err
		}
		return strings.ToLower(ans) == "y" || strings.ToLower(ans) == "yes", nil
	}

	prof := &Profile{
		OutputDir:    ".",
		EnableAI:     true,
		ModelID:      feedback.DefaultModelID,
		ScheduleTime: schedule.DefaultTime,
	}
	if existing != nil {
		*prof = *existing
	}

	fmt.Println()
	fmt.Println("  ┌─────────────────────────────────┐")
	fmt.Println("  │   tccretro - first-time setup   │")
	fmt.Println("  └─────────────────────────────────┘")
	fmt.Println()

	var err error

	prof.Name, err = ask("  Your name (shown in reports)", prof.Name)
	if err != nil {
		return nil, err
	}

	prof.OutputDir, err = ask("  Output directory for CSVs and reports", prof.OutputDir)
	if err != nil {
		return nil, err
	}

	prof.EnableAI, err = askBool("  Generate AI feedback via AWS Bedrock", prof.EnableAI)
	if err != nil {
		return nil, err
	}

	if prof.EnableAI {
		prof.ModelID, err = ask("  Bedrock model ID", prof.ModelID)
		if err != nil {
			return nil, err
		}
	}

	prof.ScheduleDaily, err = askBool("  Schedule a daily export", prof.ScheduleDaily)
	if err != nil {
		return nil, err
	}

	if prof.ScheduleDaily {
		prof.ScheduleTime, err = ask("  Daily export time (HH:MM)", prof.ScheduleTime)
		if err != nil {
			return nil, err
		}
	}

	fmt.Println()
	return prof, nil
}
