package report_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/yukitaka/tccretro/internal/analyze"
	"github.com/yukitaka/tccretro/internal/report"
)

// generateTime produces an arbitrary time.Time value truncated to second
// precision (matches JSON round-trip fidelity via RFC3339).
func generateTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(1_000_000_000, 1_700_000_000).Draw(t, label+"_unix_sec")
	return time.Unix(sec, 0).UTC()
}

// generateHours produces a non-empty name→hours map with two-decimal values,
// the precision Summarize emits, so JSON round trips are exact.
func generateHours(t *rapid.T, label string) map[string]float64 {
	n := rapid.IntRange(1, 5).Draw(t, label+"_n")
	out := make(map[string]float64, n)
	for i := 0; i < n; i++ {
		name := rapid.StringMatching(`[A-Za-z0-9 ぁ-ん]{1,12}`).Draw(t, label+"_name")
		out[name] = float64(rapid.IntRange(1, 4000).Draw(t, label+"_h")) / 100
	}
	return out
}

// generateReport produces a fully-populated *report.Report.
func generateReport(t *rapid.T) *report.Report {
	start := generateTime(t, "start")
	end := start.AddDate(0, 0, rapid.IntRange(0, 30).Draw(t, "span"))

	byProject := generateHours(t, "proj")
	byMode := generateHours(t, "mode")

	var total float64
	for _, h := range byProject {
		total += h
	}

	summary := analyze.Summary{
		TaskCount: rapid.IntRange(1, 200).Draw(t, "tasks"),
		Projects: analyze.ProjectSummary{
			TotalProjects:  len(byProject),
			TotalHours:     total,
			HoursByProject: byProject,
		},
		Modes: analyze.ModeSummary{
			TotalModes:  len(byMode),
			TotalHours:  total,
			HoursByMode: byMode,
		},
		Routines: analyze.RoutineSummary{
			TotalHours:        total,
			RoutineHours:      total,
			RoutinePercentage: 100,
		},
	}

	return &report.Report{
		Token:          start.Format(time.DateOnly) + "-" + end.Format(time.DateOnly),
		Start:          start,
		End:            end,
		CSVPath:        rapid.StringMatching(`[a-z0-9/_-]{1,30}\.csv`).Draw(t, "csv_path"),
		Author:         rapid.StringMatching(`[A-Za-z ]{0,20}`).Draw(t, "author"),
		GeneratedAt:    generateTime(t, "generated"),
		Summary:        summary,
		Warnings:       []string{rapid.StringMatching(`row [0-9]{1,3}: [a-z ]{1,20}`).Draw(t, "warning")},
		Feedback:       rapid.StringMatching(`[A-Za-z0-9 .\n]{1,80}`).Draw(t, "feedback"),
		FeedbackFromAI: rapid.Bool().Draw(t, "from_ai"),
	}
}

// TestMarkdownRoundTrip verifies that any report survives render→parse
// losslessly through the embedded payload.
func TestMarkdownRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rep := generateReport(rt)

		data, err := (&report.MarkdownRenderer{}).Render(rep)
		if err != nil {
			rt.Fatalf("Render: %v", err)
		}

		got, err := (&report.MarkdownParser{}).Parse(data)
		if err != nil {
			rt.Fatalf("Parse: %v", err)
		}
		if !reflect.DeepEqual(got, rep) {
			rt.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, rep)
		}
	})
}

// TestJSONRoundTrip verifies the same property for the JSON renderer/parser
// pair.
func TestJSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rep := generateReport(rt)

		data, err := (&report.JSONRenderer{}).Render(rep)
		if err != nil {
			rt.Fatalf("Render: %v", err)
		}
		got, err := (&report.JSONParser{}).Parse(data)
		if err != nil {
			rt.Fatalf("Parse: %v", err)
		}
		if !reflect.DeepEqual(got, rep) {
			rt.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, rep)
		}
	})
}

// TestMarkdownSections verifies the human-readable structure: every section
// heading present, entries ranked, feedback text carried through.
func TestMarkdownSections(t *testing.T) {
	rep := &report.Report{
		Token:       "2025-01-15-2025-01-15",
		Start:       time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		GeneratedAt: time.Date(2025, 1, 16, 7, 30, 0, 0, time.UTC),
		Summary: analyze.Summary{
			TaskCount: 3,
			Projects: analyze.ProjectSummary{
				TotalProjects:  2,
				TotalHours:     5,
				HoursByProject: map[string]float64{"開発": 4, "運用": 1},
			},
			Modes: analyze.ModeSummary{
				TotalModes:  1,
				TotalHours:  5,
				HoursByMode: map[string]float64{"集中": 5},
			},
			Routines: analyze.RoutineSummary{
				TotalHours:        5,
				RoutineHours:      2,
				NonRoutineHours:   3,
				RoutinePercentage: 40,
			},
		},
		Feedback: "良かった点: 集中時間を確保できた。",
	}

	data, err := (&report.MarkdownRenderer{}).Render(rep)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"# TaskChute Retrospective 2025-01-15 〜 2025-01-15",
		"## Summary",
		"## Projects",
		"## Modes",
		"## Routine",
		"## Feedback",
		"- Tasks: 3",
		"| 開発 | 4.00 | 80.0% |",
		"良かった点: 集中時間を確保できた。",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered markdown missing %q", want)
		}
	}

	// Ranked: the bigger project row must come first.
	if strings.Index(out, "| 開発 |") > strings.Index(out, "| 運用 |") {
		t.Error("projects are not ranked by hours")
	}

	// No warnings → no warnings section.
	if strings.Contains(out, "## Warnings") {
		t.Error("empty warnings rendered a Warnings section")
	}
}

// TestFilename pins the report naming scheme.
func TestFilename(t *testing.T) {
	if got := report.Filename("2025-01-15-2025-01-20"); got != "report_2025-01-15-2025-01-20.md" {
		t.Errorf("Filename = %q", got)
	}
}
