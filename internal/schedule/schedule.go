// Package schedule wires the daily export into the user's machine, through
// a systemd user timer where available and a crontab entry otherwise.
package schedule

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultTime is when the daily export runs.
const DefaultTime = "07:30"

const (
	unitName   = "tccretro-export"
	cronMarker = "# tccretro daily export"
)

// Runner executes a command, optionally feeding it stdin, and returns its
// combined output. This abstraction allows mocking in tests.
type Runner func(stdin string, name string, args ...string) (string, error)

func defaultRunner(stdin string, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Options controls how the schedule is installed.
type Options struct {
	Time    string // "HH:MM", DefaultTime when empty
	Binary  string // path to the executable; defaults to os.Executable
	Mode    string // "auto", "systemd" or "cron"
	UnitDir string // systemd user unit directory; defaults to ~/.config/systemd/user
	Runner  Runner // if nil, runs real subprocesses
}

func (o Options) withDefaults() (Options, error) {
	if o.Time == "" {
		o.Time = DefaultTime
	}
	if o.Binary == "" {
		bin, err := os.Executable()
		if err != nil {
			return o, fmt.Errorf("locate executable: %w", err)
		}
		o.Binary = bin
	}
	if o.Mode == "" {
		o.Mode = "auto"
	}
	if o.UnitDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return o, err
		}
		o.UnitDir = filepath.Join(home, ".config", "systemd", "user")
	}
	if o.Runner == nil {
		o.Runner = defaultRunner
	}
	return o, nil
}

func (o Options) backend() (string, error) {
	switch o.Mode {
	case "systemd", "cron":
		return o.Mode, nil
	case "auto":
		if _, err := exec.LookPath("systemctl"); err == nil {
			return "systemd", nil
		}
		return "cron", nil
	default:
		return "", fmt.Errorf("unknown schedule mode %q (supported: auto, systemd, cron)", o.Mode)
	}
}

// Install schedules the daily export and returns a short description of what
// was set up, for the command layer to print.
func Install(opts Options) (string, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return "", err
	}
	hour, minute, err := parseTime(opts.Time)
	if err != nil {
		return "", err
	}

	backend, err := opts.backend()
	if err != nil {
		return "", err
	}
	switch backend {
	case "systemd":
		return installSystemd(opts, hour, minute)
	default:
		return installCron(opts, hour, minute)
	}
}

// Uninstall removes the daily export schedule from whichever backend holds it.
func Uninstall(opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(opts.UnitDir, unitName+".timer")); err == nil {
		if _, err := opts.Runner("", "systemctl", "--user", "disable", "--now", unitName+".timer"); err != nil {
			return fmt.Errorf("disable timer: %w", err)
		}
		os.Remove(filepath.Join(opts.UnitDir, unitName+".timer"))
		os.Remove(filepath.Join(opts.UnitDir, unitName+".service"))
		if _, err := opts.Runner("", "systemctl", "--user", "daemon-reload"); err != nil {
			return fmt.Errorf("reload systemd: %w", err)
		}
		return nil
	}

	current, err := opts.Runner("", "crontab", "-l")
	if err != nil {
		// No crontab to clean up.
		return nil
	}
	filtered := stripCronEntry(current)
	if filtered == current {
		return nil
	}
	if _, err := opts.Runner(filtered, "crontab", "-"); err != nil {
		return fmt.Errorf("update crontab: %w", err)
	}
	return nil
}

// Installed reports which backend currently has the daily export scheduled.
func Installed(opts Options) (backend string, ok bool) {
	opts, err := opts.withDefaults()
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(filepath.Join(opts.UnitDir, unitName+".timer")); err == nil {
		return "systemd", true
	}
	if out, err := opts.Runner("", "crontab", "-l"); err == nil && strings.Contains(out, cronMarker) {
		return "cron", true
	}
	return "", false
}

func installSystemd(opts Options, hour, minute int) (string, error) {
	if err := os.MkdirAll(opts.UnitDir, 0o755); err != nil {
		return "", fmt.Errorf("create unit directory: %w", err)
	}

	service := fmt.Sprintf(`[Unit]
Description=TaskChute Cloud daily export

[Service]
Type=oneshot
ExecStart=%s export --report
`, opts.Binary)

	timer := fmt.Sprintf(`[Unit]
Description=TaskChute Cloud daily export schedule

[Timer]
OnCalendar=*-*-* %02d:%02d:00
Persistent=true

[Install]
WantedBy=timers.target
`, hour, minute)

	servicePath := filepath.Join(opts.UnitDir, unitName+".service")
	timerPath := filepath.Join(opts.UnitDir, unitName+".timer")
	if err := os.WriteFile(servicePath, []byte(service), 0o644); err != nil {
		return "", fmt.Errorf("write service unit: %w", err)
	}
	if err := os.WriteFile(timerPath, []byte(timer), 0o644); err != nil {
		return "", fmt.Errorf("write timer unit: %w", err)
	}

	if _, err := opts.Runner("", "systemctl", "--user", "daemon-reload"); err != nil {
		return "", fmt.Errorf("reload systemd: %w", err)
	}
	if out, err := opts.Runner("", "systemctl", "--user", "enable", "--now", unitName+".timer"); err != nil {
		return "", fmt.Errorf("enable timer: %w (%s)", err, strings.TrimSpace(out))
	}

	return fmt.Sprintf("systemd user timer %s.timer enabled, daily at %02d:%02d", unitName, hour, minute), nil
}

func installCron(opts Options, hour, minute int) (string, error) {
	current, err := opts.Runner("", "crontab", "-l")
	if err != nil {
		// "no crontab for user" is a fresh start, not a failure.
		current = ""
	}

	entry := fmt.Sprintf("%d %d * * * %s export --report %s", minute, hour, opts.Binary, cronMarker)
	tab := stripCronEntry(current)
	if tab != "" && !strings.HasSuffix(tab, "\n") {
		tab += "\n"
	}
	tab += entry + "\n"

	if _, err := opts.Runner(tab, "crontab", "-"); err != nil {
		return "", fmt.Errorf("update crontab: %w", err)
	}
	return fmt.Sprintf("crontab entry installed, daily at %02d:%02d", hour, minute), nil
}

// stripCronEntry removes any previously installed tccretro line.
func stripCronEntry(tab string) string {
	lines := strings.Split(tab, "\n")
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.Contains(l, cronMarker) {
			continue
		}
		kept = append(kept, l)
	}
	out := strings.Join(kept, "\n")
	return strings.TrimLeft(out, "\n")
}

func parseTime(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q (expected HH:MM)", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
