// Package acquire is the front door of the acquisition flow. An Acquirer
// owns one browser session for its lifetime and exposes exactly two
// operations: make sure the session is logged in, and export a date range.
// Everything else (detection, waiting, orchestration) hangs off those two.
package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/yukitaka/tccretro/internal/auth"
	"github.com/yukitaka/tccretro/internal/browser"
	"github.com/yukitaka/tccretro/internal/export"
)

// Session is the slice of browser.Session the facade manages.
type Session interface {
	browser.Driver
	Headful() bool
	Reopen(ctx context.Context, visible bool) error
	Close() error
}

// prober classifies the login state. Satisfied by auth.Detector.
type prober interface {
	Detect(ctx context.Context) (auth.State, error)
	Classify(ctx context.Context) (auth.State, error)
}

// loginWaiter blocks until the user logs in by hand. Satisfied by auth.Waiter.
type loginWaiter interface {
	Wait(ctx context.Context, timeout time.Duration) error
}

// Options configures an Acquirer.
type Options struct {
	ProfileDir      string
	BaseURL         string
	Visible         bool // open headful from the start
	SlowMo          time.Duration
	LoggedInMarker  string
	LoggedOutMarker string
	DetectTimeout   time.Duration
	StepTimeout     time.Duration
	DownloadTimeout time.Duration
	Debug           bool
	DebugDir        string
	// Progress receives manual-login wait updates for user display.
	Progress func(elapsed, remaining time.Duration)
}

// Acquirer coordinates session, detector, waiter and orchestrator. Not safe
// for concurrent use; it manages a single user's single browser.
type Acquirer struct {
	opts Options
	log  zerolog.Logger

	// Factory seams. New wires the real implementations; tests substitute.
	open      func(ctx context.Context, visible bool) (Session, error)
	newProber func(Session) prober
	newWaiter func(prober) loginWaiter

	session Session
	prober  prober
	state   auth.State
}

// New builds an Acquirer backed by a real Chrome session.
func New(opts Options, log zerolog.Logger) *Acquirer {
	a := &Acquirer{opts: opts, log: log}
	a.open = func(ctx context.Context, visible bool) (Session, error) {
		return browser.Open(ctx, browser.Options{
			ProfileDir: opts.ProfileDir,
			Visible:    visible,
			SlowMo:     opts.SlowMo,
			Log:        log,
		})
	}
	a.newProber = func(s Session) prober {
		return auth.NewDetector(s, auth.DetectorConfig{
			BaseURL:         opts.BaseURL,
			LoggedInMarker:  opts.LoggedInMarker,
			LoggedOutMarker: opts.LoggedOutMarker,
			Timeout:         opts.DetectTimeout,
		}, log)
	}
	a.newWaiter = func(p prober) loginWaiter {
		return &auth.Waiter{Classifier: p, Progress: opts.Progress, Log: log}
	}
	return a
}

// State reports the last known authentication state.
func (a *Acquirer) State() auth.State {
	return a.state
}

func (a *Acquirer) ensureSession(ctx context.Context) error {
	if a.session != nil {
		return nil
	}
	s, err := a.open(ctx, a.opts.Visible)
	if err != nil {
		return err
	}
	a.session = s
	a.prober = a.newProber(s)
	return nil
}

// EnsureAuthenticated opens (or reuses) the session and drives it to an
// authenticated state. An ambiguous detection is re-checked exactly once
// before failing; a logged-out state hands control to the user, reopening
// the browser visibly first if it was headless. On login timeout the
// session stays open so a caller can inspect or retry.
func (a *Acquirer) EnsureAuthenticated(ctx context.Context, loginTimeout time.Duration) error {
	if err := a.ensureSession(ctx); err != nil {
		return err
	}

	st, err := a.prober.Detect(ctx)
	if err != nil {
		return fmt.Errorf("login detection: %w", err)
	}

	if st == auth.Indeterminate {
		a.log.Debug().Msg("login state ambiguous, re-checking once")
		st, err = a.prober.Detect(ctx)
		if err != nil {
			return fmt.Errorf("login detection: %w", err)
		}
		if st == auth.Indeterminate {
			return fmt.Errorf("login state ambiguous after re-check: %w", auth.ErrDetection)
		}
	}

	if st == auth.Unauthenticated {
		if !a.session.Headful() {
			a.log.Info().Msg("login required, reopening browser visibly")
			if err := a.session.Reopen(ctx, true); err != nil {
				return err
			}
			// Land the login page in the fresh browser. The reopen may even
			// have refreshed a stale cookie, in which case we are done.
			st, err = a.prober.Detect(ctx)
			if err != nil {
				return fmt.Errorf("login detection: %w", err)
			}
		}
		if st != auth.Authenticated {
			if err := a.newWaiter(a.prober).Wait(ctx, loginTimeout); err != nil {
				return err
			}
		}
	}

	a.state = auth.Authenticated
	a.log.Info().Msg("session authenticated")
	return nil
}

// Export runs one export through the owned session. Requires a prior
// successful EnsureAuthenticated.
func (a *Acquirer) Export(ctx context.Context, req export.Request, outputDir string) (*export.Result, error) {
	if a.state != auth.Authenticated || a.session == nil {
		return nil, export.ErrNotAuthenticated
	}

	orch := export.NewOrchestrator(a.session, export.Options{
		ExportURL:       a.baseURL() + export.DefaultExportPath,
		StepTimeout:     a.opts.StepTimeout,
		DownloadTimeout: a.opts.DownloadTimeout,
		Debug:           a.opts.Debug,
		DebugDir:        a.opts.DebugDir,
	}, a.log)

	return orch.Export(ctx, a.state, req, outputDir)
}

// Close releases the browser session. Safe to call on every exit path,
// including when no session was ever opened.
func (a *Acquirer) Close() error {
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.session = nil
	a.prober = nil
	a.state = auth.Indeterminate
	return err
}

func (a *Acquirer) baseURL() string {
	if a.opts.BaseURL != "" {
		return a.opts.BaseURL
	}
	return auth.DefaultBaseURL
}
