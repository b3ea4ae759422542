package cmd

import (
	"testing"
	"time"

	"github.com/yukitaka/tccretro/internal/export"
)

// setRangeFlags sets the export date flags for a test and restores them after.
func setRangeFlags(t *testing.T, date, start, end string) {
	t.Helper()
	exportDate, exportStart, exportEnd = date, start, end
	t.Cleanup(func() { exportDate, exportStart, exportEnd = "", "", "" })
}

func TestResolveRangeDefaultsToYesterday(t *testing.T) {
	setRangeFlags(t, "", "", "")

	req, err := resolveRange()
	if err != nil {
		t.Fatalf("resolveRange returned unexpected error: %v", err)
	}
	yesterday := export.Day(time.Now().AddDate(0, 0, -1))
	if !req.Start().Equal(yesterday) || !req.End().Equal(yesterday) {
		t.Errorf("range = %s, want yesterday only (%s)", req, yesterday.Format(time.DateOnly))
	}
}

func TestResolveRangeSingleDate(t *testing.T) {
	setRangeFlags(t, "2025-01-15", "", "")

	req, err := resolveRange()
	if err != nil {
		t.Fatalf("resolveRange returned unexpected error: %v", err)
	}
	if req.Token() != "2025-01-15-2025-01-15" {
		t.Errorf("range = %s, want the single flagged day", req)
	}
}

func TestResolveRangeStartAndEnd(t *testing.T) {
	setRangeFlags(t, "", "2025-01-13", "2025-01-15")

	req, err := resolveRange()
	if err != nil {
		t.Fatalf("resolveRange returned unexpected error: %v", err)
	}
	if req.Token() != "2025-01-13-2025-01-15" {
		t.Errorf("range = %s, want 2025-01-13-2025-01-15", req)
	}
}

// TestResolveRangeLoneStart verifies that --start-date alone runs through
// yesterday.
func TestResolveRangeLoneStart(t *testing.T) {
	yesterday := export.Day(time.Now().AddDate(0, 0, -1))
	setRangeFlags(t, "", yesterday.AddDate(0, 0, -3).Format(time.DateOnly), "")

	req, err := resolveRange()
	if err != nil {
		t.Fatalf("resolveRange returned unexpected error: %v", err)
	}
	if !req.End().Equal(yesterday) {
		t.Errorf("end = %s, want yesterday", req.End().Format(time.DateOnly))
	}
	if len(req.Days()) != 4 {
		t.Errorf("range %s covers %d day(s), want 4", req, len(req.Days()))
	}
}

// TestResolveRangeLoneEnd verifies that --end-date alone is that single day.
func TestResolveRangeLoneEnd(t *testing.T) {
	setRangeFlags(t, "", "", "2025-01-10")

	req, err := resolveRange()
	if err != nil {
		t.Fatalf("resolveRange returned unexpected error: %v", err)
	}
	if req.Token() != "2025-01-10-2025-01-10" {
		t.Errorf("range = %s, want the single end day", req)
	}
}

func TestResolveRangeRejectsConflictingFlags(t *testing.T) {
	setRangeFlags(t, "2025-01-15", "2025-01-13", "")
	if _, err := resolveRange(); err == nil {
		t.Error("expected an error combining --date with --start-date")
	}
}

func TestResolveRangeRejectsBadDates(t *testing.T) {
	setRangeFlags(t, "15/01/2025", "", "")
	if _, err := resolveRange(); err == nil {
		t.Error("expected an error for a non-ISO date")
	}

	setRangeFlags(t, "", "2025-01-15", "2025-01-10")
	if _, err := resolveRange(); err == nil {
		t.Error("expected an error for start after end")
	}
}

func TestHumanSize(t *testing.T) {
	cases := map[int64]string{
		0:         "0 B",
		512:       "512 B",
		1 << 10:   "1.0 KB",
		150 << 10: "150.0 KB",
		1 << 20:   "1.0 MB",
		5<<20 + 1<<19: "5.5 MB",
	}
	for n, want := range cases {
		if got := humanSize(n); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", n, got, want)
		}
	}
}
