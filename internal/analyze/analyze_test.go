package analyze

import (
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

const sampleCSV = "\uFEFFタイムライン日付,タスク名,プロジェクト名,モード名,ルーチン名,見積時間,実績時間\n" +
	"2025-01-15,朝会,開発,会議,デイリー,0:15,0:20:00\n" +
	"2025-01-15,レビュー,開発,集中,,1:00,1:30:00\n" +
	"2025-01-15,経費精算,,事務,月次処理,0:30,0:25:00\n"

// TestParseSample verifies header-driven parsing: BOM stripped, columns
// located by name, durations parsed in both clock forms.
func TestParseSample(t *testing.T) {
	tasks, warnings, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse returned unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(tasks) != 3 {
		t.Fatalf("parsed %d tasks, want 3", len(tasks))
	}

	first := tasks[0]
	if first.Name != "朝会" || first.Project != "開発" || first.Routine != "デイリー" {
		t.Errorf("first task parsed as %+v", first)
	}
	if first.Estimate != 15*time.Minute {
		t.Errorf("Estimate = %v, want 15m", first.Estimate)
	}
	if first.Actual != 20*time.Minute {
		t.Errorf("Actual = %v, want 20m", first.Actual)
	}
	if tasks[2].Project != "" {
		t.Errorf("empty project parsed as %q", tasks[2].Project)
	}
}

// TestParseReorderedColumns verifies that column order does not matter and
// extra columns are ignored.
func TestParseReorderedColumns(t *testing.T) {
	csv := "実績時間,タスク名,終了日時\n0:45:00,設計,2025-01-15 10:45\n"
	tasks, _, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse returned unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "設計" || tasks[0].Actual != 45*time.Minute {
		t.Errorf("parsed %+v", tasks)
	}
}

// TestParseMissingRequiredColumn verifies that an export without the task or
// actual-time column is rejected outright.
func TestParseMissingRequiredColumn(t *testing.T) {
	if _, _, err := Parse(strings.NewReader("日付,メモ\nx,y\n")); err == nil {
		t.Fatal("expected an error for a CSV without the required columns")
	}
}

// TestParseMalformedDurationWarns verifies that a bad duration keeps the row
// with a zero value and reports a warning instead of failing the file.
func TestParseMalformedDurationWarns(t *testing.T) {
	csv := "タスク名,実績時間\n壊れた行,not-a-clock\n正常な行,0:10:00\n"
	tasks, warnings, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse returned unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("parsed %d tasks, want 2", len(tasks))
	}
	if tasks[0].Actual != 0 {
		t.Errorf("malformed duration parsed as %v, want 0", tasks[0].Actual)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "row 2") {
		t.Errorf("warnings = %v, want one naming row 2", warnings)
	}
}

// TestParseClockCases pins accepted and rejected clock strings.
func TestParseClockCases(t *testing.T) {
	good := map[string]time.Duration{
		"0:00":     0,
		"0:05":     5 * time.Minute,
		"1:30":     90 * time.Minute,
		"1:30:15":  90*time.Minute + 15*time.Second,
		"26:00:00": 26 * time.Hour,
		" 0:10 ":   10 * time.Minute,
	}
	for in, want := range good {
		got, err := ParseClock(in)
		if err != nil {
			t.Errorf("ParseClock(%q) returned unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseClock(%q) = %v, want %v", in, got, want)
		}
	}

	bad := []string{"", "90", "1:60", "1:30:60", "-1:00", "1:2:3:4", "one:two"}
	for _, in := range bad {
		if d, err := ParseClock(in); err == nil {
			t.Errorf("ParseClock(%q) accepted as %v", in, d)
		}
	}
}

// TestClockRoundTrip verifies FormatClock and ParseClock agree for any
// duration up to a few days.
func TestClockRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seconds := rapid.Int64Range(0, 99*3600).Draw(rt, "seconds")
		d := time.Duration(seconds) * time.Second

		back, err := ParseClock(FormatClock(d))
		if err != nil {
			rt.Fatalf("ParseClock(FormatClock(%v)): %v", d, err)
		}
		if back != d {
			rt.Fatalf("round trip %v → %q → %v", d, FormatClock(d), back)
		}
	})
}

// TestRelevantSample verifies the prompt sample: capped row count and only
// the analysis-relevant columns.
func TestRelevantSample(t *testing.T) {
	tasks := []Task{
		{Date: "2025-01-15", Name: "朝会", Project: "開発", Mode: "会議", Routine: "デイリー", Actual: 20 * time.Minute},
		{Date: "2025-01-15", Name: "レビュー", Project: "開発", Mode: "集中", Actual: 90 * time.Minute},
		{Date: "2025-01-15", Name: "経費精算", Mode: "事務", Actual: 25 * time.Minute},
	}

	out := RelevantSample(tasks, 2)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("sample has %d lines, want header + 2 rows:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], colTask) || !strings.Contains(lines[0], colActual) {
		t.Errorf("header %q misses required columns", lines[0])
	}
	if !strings.Contains(lines[1], "0:20:00") {
		t.Errorf("row %q misses the formatted actual time", lines[1])
	}
	if strings.Contains(out, "経費精算") {
		t.Errorf("sample exceeded the cap:\n%s", out)
	}

	if RelevantSample(nil, 10) != "" {
		t.Error("empty task list should produce an empty sample")
	}
	if RelevantSample(tasks, 0) != "" {
		t.Error("zero cap should produce an empty sample")
	}
}
