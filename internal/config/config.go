package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/yukitaka/tccretro/internal/auth"
	"github.com/yukitaka/tccretro/internal/feedback"
	"github.com/yukitaka/tccretro/internal/schedule"
)

// Config holds all configurable tccretro settings.
type Config struct {
	BaseURL            string `json:"base_url"`
	ProfileDir         string `json:"profile_dir"`
	OutputDir          string `json:"output_dir"`
	LoginTimeoutSec    int    `json:"login_timeout_sec"`
	DownloadTimeoutSec int    `json:"download_timeout_sec"`
	SlowMoMs           int    `json:"slow_mo_ms"`
	ModelID            string `json:"model_id"`
	AWSRegion          string `json:"aws_region"`
	PromptTemplate     string `json:"prompt_template"`     // path; empty uses the built-in
	ProjectDefinitions string `json:"project_definitions"` // path to the YAML definitions
	ScheduleTime       string `json:"schedule_time"`       // "HH:MM" for the daily export
	LoggedInMarker     string `json:"logged_in_marker"`    // override auto-detect
	LoggedOutMarker    string `json:"logged_out_marker"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		BaseURL:            auth.DefaultBaseURL,
		ProfileDir:         "chrome-profile",
		OutputDir:          ".",
		LoginTimeoutSec:    300,
		DownloadTimeoutSec: 60,
		ModelID:            feedback.DefaultModelID,
		AWSRegion:          feedback.DefaultRegion,
		ScheduleTime:       schedule.DefaultTime,
	}
}

// LoadGlobal reads ~/.config/tccretro/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "tccretro", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .tccretroconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".tccretroconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer == nil {
			continue
		}
		if layer.BaseURL != "" {
			result.BaseURL = layer.BaseURL
		}
		if layer.ProfileDir != "" {
			result.ProfileDir = layer.ProfileDir
		}
		if layer.OutputDir != "" {
			result.OutputDir = layer.OutputDir
		}
		if layer.LoginTimeoutSec > 0 {
			result.LoginTimeoutSec = layer.LoginTimeoutSec
		}
		if layer.DownloadTimeoutSec > 0 {
			result.DownloadTimeoutSec = layer.DownloadTimeoutSec
		}
		if layer.SlowMoMs > 0 {
			result.SlowMoMs = layer.SlowMoMs
		}
		if layer.ModelID != "" {
			result.ModelID = layer.ModelID
		}
		if layer.AWSRegion != "" {
			result.AWSRegion = layer.AWSRegion
		}
		if layer.PromptTemplate != "" {
			result.PromptTemplate = layer.PromptTemplate
		}
		if layer.ProjectDefinitions != "" {
			result.ProjectDefinitions = layer.ProjectDefinitions
		}
		if layer.ScheduleTime != "" {
			result.ScheduleTime = layer.ScheduleTime
		}
		if layer.LoggedInMarker != "" {
			result.LoggedInMarker = layer.LoggedInMarker
		}
		if layer.LoggedOutMarker != "" {
			result.LoggedOutMarker = layer.LoggedOutMarker
		}
	}
	return result
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
