package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yukitaka/tccretro/internal/browser"
)

// TestWatcherCompletionEvent verifies the event-driven path: a completion
// event for a file on disk resolves the wait immediately.
func TestWatcherCompletionEvent(t *testing.T) {
	dir := t.TempDir()
	content := []byte("タスク名,実績時間\n")
	if err := os.WriteFile(filepath.Join(dir, "guid-1"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	events := make(chan browser.DownloadEvent, 4)
	events <- browser.DownloadEvent{
		ID:                "guid-1",
		SuggestedFilename: "taskchute.csv",
		State:             browser.DownloadBegan,
	}
	events <- browser.DownloadEvent{ID: "guid-1", State: browser.DownloadCompleted}

	w := &Watcher{Dir: dir, Events: events, Interval: time.Hour, Log: zerolog.Nop()}
	dl, err := w.Await(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Await returned unexpected error: %v", err)
	}
	if dl.Path != filepath.Join(dir, "guid-1") {
		t.Errorf("Path = %q, want the event's file", dl.Path)
	}
	if dl.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", dl.Size, len(content))
	}
	if dl.SuggestedFilename != "taskchute.csv" {
		t.Errorf("SuggestedFilename = %q, want taskchute.csv", dl.SuggestedFilename)
	}
}

// TestWatcherCanceledEvent verifies that a browser-side cancellation becomes
// a DownloadError with the canceled outcome.
func TestWatcherCanceledEvent(t *testing.T) {
	events := make(chan browser.DownloadEvent, 4)
	events <- browser.DownloadEvent{ID: "guid-1", State: browser.DownloadBegan}
	events <- browser.DownloadEvent{ID: "guid-1", State: browser.DownloadCanceled, Received: 512}

	w := &Watcher{Dir: t.TempDir(), Events: events, Interval: time.Hour, Log: zerolog.Nop()}
	_, err := w.Await(context.Background(), 5*time.Second)

	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if dlErr.Outcome != DownloadCanceled {
		t.Errorf("Outcome = %v, want canceled", dlErr.Outcome)
	}
}

// TestWatcherFailedEvent verifies the browser-reported failure path.
func TestWatcherFailedEvent(t *testing.T) {
	events := make(chan browser.DownloadEvent, 4)
	events <- browser.DownloadEvent{ID: "guid-1", State: browser.DownloadFailed}

	w := &Watcher{Dir: t.TempDir(), Events: events, Interval: time.Hour, Log: zerolog.Nop()}
	_, err := w.Await(context.Background(), 5*time.Second)

	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if dlErr.Outcome != DownloadFailed {
		t.Errorf("Outcome = %v, want failed", dlErr.Outcome)
	}
	if dlErr.Reason == "" {
		t.Error("expected a reason on a browser-reported failure")
	}
}

// TestWatcherStabilityFallback verifies that with no events at all, a file
// whose size holds steady across scans counts as complete.
func TestWatcherStabilityFallback(t *testing.T) {
	dir := t.TempDir()
	content := []byte("stable file content")
	if err := os.WriteFile(filepath.Join(dir, "dl"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	w := &Watcher{Dir: dir, Interval: 10 * time.Millisecond, Log: zerolog.Nop()}
	dl, err := w.Await(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Await returned unexpected error: %v", err)
	}
	if dl.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", dl.Size, len(content))
	}
	if dl.SuggestedFilename != "" {
		t.Errorf("SuggestedFilename = %q, want empty without events", dl.SuggestedFilename)
	}
}

// TestWatcherClosedEventStream verifies that the watcher keeps observing the
// directory after the session closes its event stream.
func TestWatcherClosedEventStream(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dl"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	events := make(chan browser.DownloadEvent)
	close(events)

	w := &Watcher{Dir: dir, Events: events, Interval: 10 * time.Millisecond, Log: zerolog.Nop()}
	dl, err := w.Await(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Await returned unexpected error: %v", err)
	}
	if dl == nil || dl.Size == 0 {
		t.Error("expected the stability fallback to find the file")
	}
}

// TestWatcherTimeout verifies that an empty directory times out with the
// timeout outcome and the elapsed wait recorded.
func TestWatcherTimeout(t *testing.T) {
	w := &Watcher{Dir: t.TempDir(), Interval: 5 * time.Millisecond, Log: zerolog.Nop()}
	timeout := 50 * time.Millisecond
	_, err := w.Await(context.Background(), timeout)

	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if dlErr.Outcome != DownloadTimeout {
		t.Errorf("Outcome = %v, want timeout", dlErr.Outcome)
	}
	if dlErr.Elapsed < timeout {
		t.Errorf("Elapsed = %v, want at least %v", dlErr.Elapsed, timeout)
	}
}

// TestWatcherIgnoresPartialFiles verifies that in-flight browser temp files
// never count as completed downloads.
func TestWatcherIgnoresPartialFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"dl.crdownload", "dl.tmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("partial"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w := &Watcher{Dir: dir, Interval: 5 * time.Millisecond, Log: zerolog.Nop()}
	_, err := w.Await(context.Background(), 50*time.Millisecond)

	var dlErr *DownloadError
	if !errors.As(err, &dlErr) || dlErr.Outcome != DownloadTimeout {
		t.Fatalf("expected a timeout while only partial files exist, got %v", err)
	}
}

// TestWatcherVanishedFile verifies that a tracked file disappearing reports a
// failed download. The file stays empty so it can never look stable.
func TestWatcherVanishedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dl")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.Remove(path)
	}()

	w := &Watcher{Dir: dir, Interval: 5 * time.Millisecond, Log: zerolog.Nop()}
	_, err := w.Await(context.Background(), 5*time.Second)

	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if dlErr.Outcome != DownloadFailed {
		t.Errorf("Outcome = %v, want failed", dlErr.Outcome)
	}
}

// TestWatcherCallerCancellation verifies that the caller's context error
// passes through untouched.
func TestWatcherCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w := &Watcher{Dir: t.TempDir(), Interval: 5 * time.Millisecond, Log: zerolog.Nop()}
	_, err := w.Await(ctx, time.Hour)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the context error, got %v", err)
	}
}

// TestDownloadErrorMessages pins the user-facing failure texts.
func TestDownloadErrorMessages(t *testing.T) {
	cases := []struct {
		err  *DownloadError
		want string
	}{
		{
			&DownloadError{Outcome: DownloadCanceled, Elapsed: 1500 * time.Millisecond},
			"download canceled after 1.5s",
		},
		{
			&DownloadError{Outcome: DownloadTimeout, Elapsed: 60 * time.Second, Received: 1024},
			"download did not complete within 1m0s (1024 bytes received)",
		},
		{
			&DownloadError{Outcome: DownloadFailed, Elapsed: 2 * time.Second, Reason: "file dl vanished mid-download"},
			"download failed after 2s: file dl vanished mid-download",
		},
		{
			&DownloadError{Outcome: DownloadFailed, Elapsed: 2 * time.Second},
			"download failed after 2s",
		},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}
