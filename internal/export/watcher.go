package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/yukitaka/tccretro/internal/browser"
)

const defaultScanInterval = 500 * time.Millisecond

// Download describes a completed download inside the watched directory.
type Download struct {
	Path              string
	Size              int64
	SuggestedFilename string
	Elapsed           time.Duration
}

// Watcher waits for exactly one download to finish inside Dir. It listens to
// browser download events when available and independently observes the
// directory (fsnotify wake-ups plus interval scans), so a download whose
// completion event got lost still finishes once its file size holds steady
// across two consecutive checks.
type Watcher struct {
	Dir      string
	Events   <-chan browser.DownloadEvent // nil: observation only
	Interval time.Duration
	Log      zerolog.Logger
}

// Await blocks until a download completes, fails, is cancelled, ctx is
// cancelled, or timeout elapses. Timeout and failure return *DownloadError;
// caller cancellation returns ctx.Err() untouched.
func (w *Watcher) Await(ctx context.Context, timeout time.Duration) (*Download, error) {
	interval := w.Interval
	if interval <= 0 {
		interval = defaultScanInterval
	}

	type observation struct {
		size int64
		at   time.Time
	}

	start := time.Now()
	suggested := make(map[string]string) // event ID → suggested filename
	seen := make(map[string]observation) // on-disk name → last observation
	var received int64

	// fsnotify wakes us up promptly on file activity; the ticker covers the
	// case where the watcher cannot be established.
	var fsEvents <-chan fsnotify.Event
	if fw, err := fsnotify.NewWatcher(); err == nil {
		if err := fw.Add(w.Dir); err == nil {
			fsEvents = fw.Events
			defer fw.Close()
		} else {
			fw.Close()
			w.Log.Debug().Err(err).Msg("directory watch unavailable, relying on interval scans")
		}
	} else {
		w.Log.Debug().Err(err).Msg("fsnotify unavailable, relying on interval scans")
	}

	// scan inspects the directory once. It returns a Download when a file
	// size holds steady across two observations spaced at least half an
	// interval apart, an error when a tracked file vanished, and (nil, nil)
	// to keep waiting. The spacing requirement keeps a burst of fsnotify
	// wake-ups from mistaking a mid-write file for a finished one.
	scan := func() (*Download, error) {
		entries, err := os.ReadDir(w.Dir)
		if err != nil {
			return nil, nil // directory may not exist yet
		}
		now := time.Now()
		present := make(map[string]bool, len(entries))
		for _, ent := range entries {
			if ent.IsDir() {
				continue
			}
			name := ent.Name()
			if strings.HasSuffix(name, ".crdownload") || strings.HasSuffix(name, ".tmp") {
				continue
			}
			present[name] = true
			info, err := ent.Info()
			if err != nil {
				continue
			}
			size := info.Size()
			if prev, ok := seen[name]; ok && prev.size == size && size > 0 {
				if now.Sub(prev.at) >= interval/2 {
					return &Download{
						Path:              filepath.Join(w.Dir, name),
						Size:              size,
						SuggestedFilename: suggested[name],
						Elapsed:           time.Since(start),
					}, nil
				}
				continue // too soon to call it stable; keep the older timestamp
			}
			seen[name] = observation{size: size, at: now}
			if size > received {
				received = size
			}
		}
		for name := range seen {
			if !present[name] {
				return nil, &DownloadError{
					Outcome:  DownloadFailed,
					Elapsed:  time.Since(start),
					Received: received,
					Reason:   "file " + name + " vanished mid-download",
				}
			}
		}
		return nil, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	events := w.Events
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-deadline.C:
			return nil, &DownloadError{
				Outcome:  DownloadTimeout,
				Elapsed:  time.Since(start),
				Received: received,
			}

		case ev, ok := <-events:
			if !ok {
				events = nil // session closed its event stream; keep observing
				continue
			}
			switch ev.State {
			case browser.DownloadBegan:
				suggested[ev.ID] = ev.SuggestedFilename
				w.Log.Debug().
					Str("id", ev.ID).
					Str("filename", ev.SuggestedFilename).
					Msg("download started")
			case browser.DownloadInProgress:
				if ev.Received > received {
					received = ev.Received
				}
			case browser.DownloadCompleted:
				path := filepath.Join(w.Dir, ev.ID)
				if info, err := os.Stat(path); err == nil {
					return &Download{
						Path:              path,
						Size:              info.Size(),
						SuggestedFilename: suggested[ev.ID],
						Elapsed:           time.Since(start),
					}, nil
				}
				// File not visible yet; the next scan will pick it up.
			case browser.DownloadCanceled:
				return nil, &DownloadError{
					Outcome:  DownloadCanceled,
					Elapsed:  time.Since(start),
					Received: received,
				}
			case browser.DownloadFailed:
				return nil, &DownloadError{
					Outcome:  DownloadFailed,
					Elapsed:  time.Since(start),
					Received: received,
					Reason:   "reported by the browser",
				}
			}

		case <-fsEvents:
			if d, err := scan(); d != nil || err != nil {
				return d, err
			}

		case <-ticker.C:
			if d, err := scan(); d != nil || err != nil {
				return d, err
			}
		}
	}
}
