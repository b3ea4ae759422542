// Package browser owns the persistent Chrome session and the capability
// surface the rest of the tool drives it through. All TaskChute Cloud state
// (cookies, local storage) lives in the profile directory, so a session that
// logged in once stays logged in across runs.
package browser

import (
	"context"
	"os"
	"path/filepath"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// SessionOpenError is returned when the browser session cannot be opened:
// the profile directory is unusable, already locked by another live session,
// or Chrome itself fails to start. It is fatal; callers must not retry.
type SessionOpenError struct {
	Path string
	Err  error
}

func (e *SessionOpenError) Error() string {
	return "failed to open browser session (profile " + e.Path + "): " + e.Err.Error()
}

func (e *SessionOpenError) Unwrap() error {
	return e.Err
}

// Options configures a browser session.
type Options struct {
	ProfileDir      string        // persistent user-data dir; created if missing
	Visible         bool          // headful when true
	SlowMo          time.Duration // pause inserted after each driver action
	NavigateTimeout time.Duration // bound on page navigations
	ActionTimeout   time.Duration // bound on clicks, fills, evaluations
	Log             zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.ProfileDir == "" {
		o.ProfileDir = "chrome-profile"
	}
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = 30 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 10 * time.Second
	}
	return o
}

// Session is a live Chrome instance bound to a profile directory. Chrome's
// own profile lock guarantees at most one live session per directory; a
// second Open against the same profile fails with SessionOpenError.
type Session struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	hub    *eventHub
	closed bool
}

// Open starts Chrome on the configured profile directory and verifies it is
// responsive. The parent ctx bounds startup only; the session outlives it.
func Open(ctx context.Context, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(opts.ProfileDir, 0o755); err != nil {
		return nil, &SessionOpenError{Path: opts.ProfileDir, Err: err}
	}
	abs, err := filepath.Abs(opts.ProfileDir)
	if err != nil {
		return nil, &SessionOpenError{Path: opts.ProfileDir, Err: err}
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserDataDir(abs),
		chromedp.Flag("headless", !opts.Visible),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("lang", "ja-JP"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	s := &Session{
		opts:   opts,
		ctx:    browserCtx,
		cancel: cancel,
		hub:    newEventHub(),
	}

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpbrowser.EventDownloadWillBegin:
			s.hub.publish(DownloadEvent{
				ID:                e.GUID,
				SuggestedFilename: e.SuggestedFilename,
				State:             DownloadBegan,
			})
		case *cdpbrowser.EventDownloadProgress:
			st := DownloadInProgress
			switch e.State {
			case cdpbrowser.DownloadProgressStateCompleted:
				st = DownloadCompleted
			case cdpbrowser.DownloadProgressStateCanceled:
				st = DownloadCanceled
			}
			s.hub.publish(DownloadEvent{
				ID:       e.GUID,
				State:    st,
				Received: int64(e.ReceivedBytes),
				Total:    int64(e.TotalBytes),
			})
		}
	})

	// The first Run launches the browser process.
	startCtx, startCancel := context.WithTimeout(browserCtx, opts.NavigateTimeout)
	defer startCancel()
	stop := context.AfterFunc(ctx, startCancel)
	defer stop()

	if err := chromedp.Run(startCtx,
		emulation.SetTimezoneOverride("Asia/Tokyo"),
	); err != nil {
		cancel()
		return nil, &SessionOpenError{Path: opts.ProfileDir, Err: err}
	}

	opts.Log.Debug().
		Str("profile", abs).
		Bool("visible", opts.Visible).
		Msg("browser session opened")

	return s, nil
}

// Headful reports whether the session runs with a visible window.
func (s *Session) Headful() bool {
	return s.opts.Visible
}

// Reopen closes the current browser and starts a fresh one on the same
// profile, switching headless/headful mode. Used when a headless session
// discovers it needs the user at the keyboard.
func (s *Session) Reopen(ctx context.Context, visible bool) error {
	if err := s.Close(); err != nil {
		return err
	}

	opts := s.opts
	opts.Visible = visible
	fresh, err := Open(ctx, opts)
	if err != nil {
		return err
	}

	*s = *fresh
	return nil
}

// Close shuts the browser down gracefully so Chrome flushes cookies and
// storage to the profile directory. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.hub.closeAll()

	s.opts.Log.Debug().Msg("browser session closed")
	return err
}
