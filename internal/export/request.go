// Package export drives the CSV export surface of TaskChute Cloud: it fills
// the date range form, triggers the download, watches it complete, and
// places the file under a deterministic name.
package export

import (
	"os"
	"sort"
	"strings"
	"time"
)

// Request is a validated, inclusive export date range. Construct through
// NewRequest or SingleDay; the zero value is not meaningful.
type Request struct {
	start time.Time
	end   time.Time
}

// Day normalizes t to a date-only value (midnight UTC). All range arithmetic
// works on calendar days, not instants.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewRequest builds a Request covering start through end inclusive.
// Returns ErrInvalidRange when start falls after end.
func NewRequest(start, end time.Time) (Request, error) {
	s, e := Day(start), Day(end)
	if s.After(e) {
		return Request{}, ErrInvalidRange
	}
	return Request{start: s, end: e}, nil
}

// SingleDay builds a Request covering exactly one day.
func SingleDay(day time.Time) Request {
	d := Day(day)
	return Request{start: d, end: d}
}

func (r Request) Start() time.Time { return r.start }
func (r Request) End() time.Time   { return r.end }

// Token is the canonical range identifier, e.g. "2025-01-15-2025-01-20".
func (r Request) Token() string {
	return r.start.Format(time.DateOnly) + "-" + r.end.Format(time.DateOnly)
}

// Filename is the deterministic output name for this range,
// e.g. "tasks_2025-01-15-2025-01-15.csv" for a single day.
func (r Request) Filename() string {
	return "tasks_" + r.Token() + ".csv"
}

// FieldValue is the string the export form's combined date field expects.
func (r Request) FieldValue() string {
	return r.start.Format("2006/01/02") + " - " + r.end.Format("2006/01/02")
}

// Days lists every day of the range in order.
func (r Request) Days() []time.Time {
	var days []time.Time
	for d := r.start; !d.After(r.end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r Request) String() string { return r.Token() }

// Contains reports whether day falls inside the request's range.
func (r Request) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(r.start) && !d.After(r.end)
}

// ParseFilename recovers the Request from an output filename produced by
// Filename. Reports false for anything else.
func ParseFilename(name string) (Request, bool) {
	const prefix, suffix = "tasks_", ".csv"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return Request{}, false
	}
	return ParseToken(strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix))
}

// ParseToken recovers the Request from a range token produced by Token.
func ParseToken(token string) (Request, bool) {
	// Two ISO dates joined by a dash: 10 + 1 + 10.
	if len(token) != 21 || token[10] != '-' {
		return Request{}, false
	}
	start, err := time.Parse(time.DateOnly, token[:10])
	if err != nil {
		return Request{}, false
	}
	end, err := time.Parse(time.DateOnly, token[11:])
	if err != nil {
		return Request{}, false
	}
	req, err := NewRequest(start, end)
	if err != nil {
		return Request{}, false
	}
	return req, true
}

// MissingDays splits the days of req into those already covered by an export
// file in dir and those still missing. Coverage counts any file whose range
// contains the day, so a past multi-day export satisfies its single days. A
// missing dir means nothing is covered.
func MissingDays(dir string, req Request) (have, missing []time.Time) {
	var ranges []Request
	if entries, err := os.ReadDir(dir); err == nil {
		for _, ent := range entries {
			if ent.IsDir() {
				continue
			}
			if r, ok := ParseFilename(ent.Name()); ok {
				ranges = append(ranges, r)
			}
		}
	}

	for _, day := range req.Days() {
		covered := false
		for _, r := range ranges {
			if r.Contains(day) {
				covered = true
				break
			}
		}
		if covered {
			have = append(have, day)
		} else {
			missing = append(missing, day)
		}
	}
	return have, missing
}

// GroupConsecutive packs days into maximal runs of consecutive calendar
// days, one Request per run. Input order does not matter.
func GroupConsecutive(days []time.Time) []Request {
	if len(days) == 0 {
		return nil
	}

	sorted := make([]time.Time, len(days))
	for i, d := range days {
		sorted[i] = Day(d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var groups []Request
	runStart, prev := sorted[0], sorted[0]
	for _, d := range sorted[1:] {
		if d.Equal(prev) {
			continue
		}
		if d.Equal(prev.AddDate(0, 0, 1)) {
			prev = d
			continue
		}
		groups = append(groups, Request{start: runStart, end: prev})
		runStart, prev = d, d
	}
	groups = append(groups, Request{start: runStart, end: prev})
	return groups
}
