// Package analyze turns a TaskChute Cloud CSV export into per-project,
// per-mode and routine/non-routine aggregates for the retrospective report.
package analyze

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Column headers as TaskChute Cloud writes them.
const (
	colDate     = "タイムライン日付"
	colTask     = "タスク名"
	colProject  = "プロジェクト名"
	colMode     = "モード名"
	colRoutine  = "ルーチン名"
	colEstimate = "見積時間"
	colActual   = "実績時間"
)

// Task is one row of the export, reduced to the fields the analysis uses.
type Task struct {
	Date     string
	Name     string
	Project  string
	Mode     string
	Routine  string // routine name; empty for one-off tasks
	Estimate time.Duration
	Actual   time.Duration
}

// Load reads and parses the CSV file at path. Rows with malformed durations
// are kept with a zero value and reported as warnings rather than failing
// the whole analysis.
func Load(path string) ([]Task, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a TaskChute CSV from r. The header row is mandatory; columns
// are located by name so extra columns and reordering are harmless.
func Parse(r io.Reader) ([]Task, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header row: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	if _, ok := index[colTask]; !ok {
		return nil, nil, fmt.Errorf("column %q not found in export", colTask)
	}
	if _, ok := index[colActual]; !ok {
		return nil, nil, fmt.Errorf("column %q not found in export", colActual)
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var tasks []Task
	var warnings []string
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: %v", line, err))
			continue
		}

		t := Task{
			Date:    field(row, colDate),
			Name:    field(row, colTask),
			Project: field(row, colProject),
			Mode:    field(row, colMode),
			Routine: field(row, colRoutine),
		}

		if raw := field(row, colEstimate); raw != "" {
			d, err := ParseClock(raw)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("row %d: estimate %q: %v", line, raw, err))
			} else {
				t.Estimate = d
			}
		}
		if raw := field(row, colActual); raw != "" {
			d, err := ParseClock(raw)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("row %d: actual %q: %v", line, raw, err))
			} else {
				t.Actual = d
			}
		}

		tasks = append(tasks, t)
	}
	return tasks, warnings, nil
}

// ParseClock parses the "H:MM:SS" (or "H:MM") clock format the export uses
// for durations. Hours may exceed 24 in totals rows.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("not a clock value")
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("bad hours %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minutes %q", parts[1])
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute

	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("bad seconds %q", parts[2])
		}
		d += time.Duration(sec) * time.Second
	}
	return d, nil
}

// FormatClock renders d in the same H:MM:SS form the export uses.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// RelevantSample re-encodes up to max tasks as a compact CSV of the
// analysis-relevant columns, for inclusion in the feedback prompt.
func RelevantSample(tasks []Task, max int) string {
	if max <= 0 || len(tasks) == 0 {
		return ""
	}
	if len(tasks) > max {
		tasks = tasks[:max]
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{colDate, colTask, colProject, colMode, colRoutine, colActual})
	for _, t := range tasks {
		_ = w.Write([]string{
			t.Date, t.Name, t.Project, t.Mode, t.Routine, FormatClock(t.Actual),
		})
	}
	w.Flush()
	return sb.String()
}
