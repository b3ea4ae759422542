// Package report renders the retrospective for one export as Markdown with
// an embedded machine-readable payload, and parses it back for the viewer.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yukitaka/tccretro/internal/analyze"
)

// Report is everything the retrospective for one date range contains.
type Report struct {
	Token          string          `json:"token"`
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	CSVPath        string          `json:"csv_path"`
	Author         string          `json:"author,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Summary        analyze.Summary `json:"summary"`
	Warnings       []string        `json:"warnings,omitempty"`
	Feedback       string          `json:"feedback"`
	FeedbackFromAI bool            `json:"feedback_from_ai"`
	ModelID        string          `json:"model_id,omitempty"`
}

// Filename returns the report file name for a range token, e.g.
// report_2025-01-15-2025-01-20.md.
func Filename(token string) string {
	return "report_" + token + ".md"
}

// Write saves rendered report bytes to path atomically so a crash cannot
// leave a truncated report behind.
func Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("place report: %w", err)
	}
	return nil
}
