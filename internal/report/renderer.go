package report

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/yukitaka/tccretro/internal/analyze"
)

const barWidth = 20

// Renderer serializes a Report to bytes.
type Renderer interface {
	Render(rep *Report) ([]byte, error)
}

// JSONRenderer renders a Report as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(rep *Report) ([]byte, error) {
	return json.MarshalIndent(rep, "", "  ")
}

// MarkdownRenderer renders a Report as human-readable Markdown with an
// embedded base64 JSON payload for lossless round-trip parsing.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(rep *Report) ([]byte, error) {
	jsonBytes, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder

	// Sentinel and embedded payload.
	sb.WriteString("<!-- tccretro-report-version: 1 -->\n")
	fmt.Fprintf(&sb, "<!-- tccretro-data: %s -->\n\n", encoded)

	// Title.
	fmt.Fprintf(&sb, "# TaskChute Retrospective %s 〜 %s\n\n",
		rep.Start.Format("2006-01-02"),
		rep.End.Format("2006-01-02"),
	)

	// ## Summary
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Tasks: %d\n", rep.Summary.TaskCount)
	fmt.Fprintf(&sb, "- Total hours: %.2f\n", rep.Summary.Routines.TotalHours)
	fmt.Fprintf(&sb, "- Routine share: %.1f%%\n", rep.Summary.Routines.RoutinePercentage)
	if rep.Author != "" {
		fmt.Fprintf(&sb, "- Author: %s\n", rep.Author)
	}
	if rep.CSVPath != "" {
		fmt.Fprintf(&sb, "- Source: %s\n", rep.CSVPath)
	}
	fmt.Fprintf(&sb, "- Generated: %s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if rep.FeedbackFromAI && rep.ModelID != "" {
		fmt.Fprintf(&sb, "- Feedback model: %s\n", rep.ModelID)
	}
	sb.WriteString("\n")

	// ## Projects
	sb.WriteString("## Projects\n\n")
	writeHoursTable(&sb, rep.Summary.Projects.HoursByProject, rep.Summary.Projects.TotalHours)
	sb.WriteString("\n")

	// ## Modes
	sb.WriteString("## Modes\n\n")
	writeHoursTable(&sb, rep.Summary.Modes.HoursByMode, rep.Summary.Modes.TotalHours)
	sb.WriteString("\n")

	// ## Routine
	sb.WriteString("## Routine\n\n")
	rt := rep.Summary.Routines
	if rt.TotalHours <= 0 {
		sb.WriteString("_No recorded time._\n")
	} else {
		fmt.Fprintf(&sb, "- Routine     %s %.2f h (%.1f%%)\n",
			bar(rt.RoutineHours, rt.TotalHours), rt.RoutineHours, rt.RoutinePercentage)
		fmt.Fprintf(&sb, "- Non-routine %s %.2f h (%.1f%%)\n",
			bar(rt.NonRoutineHours, rt.TotalHours), rt.NonRoutineHours, rt.NonRoutinePercentage)
	}
	sb.WriteString("\n")

	// ## Feedback
	sb.WriteString("## Feedback\n\n")
	if rep.Feedback == "" {
		sb.WriteString("_No feedback generated._\n")
	} else {
		sb.WriteString(rep.Feedback)
		if !strings.HasSuffix(rep.Feedback, "\n") {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	// ## Warnings
	if len(rep.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range rep.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
		sb.WriteString("\n")
	}

	return []byte(sb.String()), nil
}

func writeHoursTable(sb *strings.Builder, hours map[string]float64, total float64) {
	if len(hours) == 0 {
		sb.WriteString("_No entries._\n")
		return
	}

	sb.WriteString("| Name | Hours | Share | |\n")
	sb.WriteString("|------|------:|------:|---|\n")
	for _, name := range analyze.RankedKeys(hours) {
		h := hours[name]
		share := 0.0
		if total > 0 {
			share = h / total * 100
		}
		fmt.Fprintf(sb, "| %s | %.2f | %.1f%% | %s |\n", name, h, share, bar(h, total))
	}
}

func bar(value, max float64) string {
	if max <= 0 || value <= 0 {
		return strings.Repeat("░", barWidth)
	}
	n := int(math.Round(value / max * barWidth))
	if n < 1 {
		n = 1
	}
	if n > barWidth {
		n = barWidth
	}
	return strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
}
