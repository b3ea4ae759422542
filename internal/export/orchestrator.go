package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yukitaka/tccretro/internal/auth"
	"github.com/yukitaka/tccretro/internal/browser"
)

// DefaultExportPath locates the CSV export form under the site base URL.
const DefaultExportPath = "/export/csv-export"

const (
	// The combined range field. Some renders of the form show six split
	// year/month/day fields instead; see fillSplitFields.
	dateInputSelector = `input[placeholder*="YYYY"]`
	splitYearStart    = `[aria-label="年"][data-range-position="start"]`

	downloadButtonSelector = `//button[contains(., "ダウンロード")]`
)

// Options configures an Orchestrator. Zero values get defaults.
type Options struct {
	ExportURL       string        // full URL of the export form
	StepTimeout     time.Duration // bound on each UI step, default 10s
	DownloadTimeout time.Duration // bound on one download attempt, default 60s
	PollInterval    time.Duration // watcher scan interval
	Debug           bool          // capture screenshots on step failure
	DebugDir        string        // where screenshots go, default "debug"
}

func (o Options) withDefaults() Options {
	if o.ExportURL == "" {
		o.ExportURL = auth.DefaultBaseURL + DefaultExportPath
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = 10 * time.Second
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = 60 * time.Second
	}
	if o.DebugDir == "" {
		o.DebugDir = "debug"
	}
	return o
}

// Result describes a completed export.
type Result struct {
	Path    string // absolute path of the placed file
	Size    int64
	Elapsed time.Duration
}

// Orchestrator runs the export flow against an authenticated session.
type Orchestrator struct {
	drv  browser.Driver
	opts Options
	log  zerolog.Logger
}

func NewOrchestrator(drv browser.Driver, opts Options, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{drv: drv, opts: opts.withDefaults(), log: log}
}

// Export performs one export: open the form, fill the range, trigger and
// await the download, then move the file to outputDir under the request's
// deterministic name. A same-named file from an earlier run is replaced
// atomically on success and left untouched on failure. The download lands in
// a per-attempt staging directory that is always removed, so a failed or
// cancelled export leaves no partial file behind.
func (o *Orchestrator) Export(ctx context.Context, state auth.State, req Request, outputDir string) (*Result, error) {
	if state != auth.Authenticated {
		return nil, ErrNotAuthenticated
	}

	start := time.Now()
	o.log.Info().
		Stringer("range", req).
		Str("output_dir", outputDir).
		Msg("starting export")

	if err := o.withRetry(ctx, "open-export-page", o.openExportPage); err != nil {
		return nil, err
	}
	if err := o.withRetry(ctx, "fill-dates", func(c context.Context) error {
		return o.fillDates(c, req)
	}); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	staging := filepath.Join(outputDir, ".staging-"+uuid.New().String())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	dl, err := o.download(ctx, staging)
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(outputDir, req.Filename())
	if err := os.Rename(dl.Path, dest); err != nil {
		return nil, &StepError{Step: "place-file", Attempts: 1, Err: err}
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		abs = dest
	}

	o.log.Info().
		Str("path", abs).
		Int64("bytes", dl.Size).
		Dur("elapsed", time.Since(start)).
		Msg("export complete")

	return &Result{Path: abs, Size: dl.Size, Elapsed: time.Since(start)}, nil
}

// withRetry runs one UI step with a single immediate retry. The final
// failure is wrapped in a StepError and, in debug mode, documented with a
// screenshot.
func (o *Orchestrator) withRetry(ctx context.Context, step string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == 1 {
			o.log.Warn().Err(err).Str("step", step).Msg("step failed, retrying once")
		}
	}
	o.screenshot(ctx, step)
	return &StepError{Step: step, Attempts: 2, Err: err}
}

// openExportPage navigates to the form and waits for either rendering of
// the date controls.
func (o *Orchestrator) openExportPage(ctx context.Context) error {
	if err := o.drv.Navigate(ctx, o.opts.ExportURL); err != nil {
		return err
	}
	if err := o.drv.WaitVisible(ctx, dateInputSelector, o.opts.StepTimeout); err == nil {
		return nil
	}
	return o.drv.WaitVisible(ctx, splitYearStart, o.opts.StepTimeout)
}

// fillDates writes the range into whichever form variant is on screen and
// verifies it by reading the values back.
func (o *Orchestrator) fillDates(ctx context.Context, req Request) error {
	combined, err := o.drv.Visible(ctx, dateInputSelector)
	if err != nil {
		return err
	}
	if combined {
		return o.fillRangeField(ctx, req)
	}
	return o.fillSplitFields(ctx, req)
}

func (o *Orchestrator) fillRangeField(ctx context.Context, req Request) error {
	want := req.FieldValue()
	if err := o.drv.Fill(ctx, dateInputSelector, want); err != nil {
		return err
	}
	if err := o.drv.PressEnter(ctx, dateInputSelector); err != nil {
		return err
	}
	got, err := o.drv.Value(ctx, dateInputSelector)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("date field reads %q after fill, want %q", got, want)
	}
	return nil
}

func (o *Orchestrator) fillSplitFields(ctx context.Context, req Request) error {
	field := func(part, position string) string {
		return `[aria-label="` + part + `"][data-range-position="` + position + `"]`
	}
	fields := []struct{ sel, value string }{
		{field("年", "start"), req.Start().Format("2006")},
		{field("月", "start"), req.Start().Format("01")},
		{field("日", "start"), req.Start().Format("02")},
		{field("年", "end"), req.End().Format("2006")},
		{field("月", "end"), req.End().Format("01")},
		{field("日", "end"), req.End().Format("02")},
	}
	for _, f := range fields {
		if err := o.drv.Fill(ctx, f.sel, f.value); err != nil {
			return err
		}
	}
	for _, f := range fields {
		got, err := o.drv.Value(ctx, f.sel)
		if err != nil {
			return err
		}
		if got != f.value {
			return fmt.Errorf("field %s reads %q after fill, want %q", f.sel, got, f.value)
		}
	}
	return nil
}

// download triggers the download and waits for it, retrying the whole
// trigger once if the first attempt times out. Failed and Canceled are
// final: re-clicking after those risks a duplicate download.
func (o *Orchestrator) download(ctx context.Context, staging string) (*Download, error) {
	for attempt := 1; ; attempt++ {
		dl, err := o.triggerAndAwait(ctx, staging)
		if err == nil {
			return dl, nil
		}
		var dlErr *DownloadError
		if attempt == 1 && errors.As(err, &dlErr) && dlErr.Outcome == DownloadTimeout {
			o.log.Warn().
				Dur("timeout", o.opts.DownloadTimeout).
				Msg("download timed out, retrying once")
			continue
		}
		o.screenshot(ctx, "download")
		return nil, err
	}
}

func (o *Orchestrator) triggerAndAwait(ctx context.Context, staging string) (*Download, error) {
	if err := o.drv.SetDownloadDir(ctx, staging); err != nil {
		return nil, &StepError{Step: "set-download-dir", Attempts: 1, Err: err}
	}

	// Subscribe before clicking so the begin event cannot slip past us.
	events, cancel := o.drv.DownloadEvents()
	defer cancel()

	if err := o.drv.WaitVisible(ctx, downloadButtonSelector, o.opts.StepTimeout); err != nil {
		return nil, &StepError{Step: "trigger-download", Attempts: 1, Err: err}
	}
	if err := o.drv.Click(ctx, downloadButtonSelector); err != nil {
		return nil, &StepError{Step: "trigger-download", Attempts: 1, Err: err}
	}

	w := &Watcher{Dir: staging, Events: events, Interval: o.opts.PollInterval, Log: o.log}
	return w.Await(ctx, o.opts.DownloadTimeout)
}

// screenshot records the current page for postmortem. Debug mode only, and
// never fatal.
func (o *Orchestrator) screenshot(ctx context.Context, step string) {
	if !o.opts.Debug {
		return
	}
	png, err := o.drv.Screenshot(ctx)
	if err != nil {
		o.log.Debug().Err(err).Msg("debug screenshot failed")
		return
	}
	if err := os.MkdirAll(o.opts.DebugDir, 0o755); err != nil {
		o.log.Debug().Err(err).Msg("debug dir unavailable")
		return
	}
	name := time.Now().Format("20060102-150405") + "_" + step + ".png"
	path := filepath.Join(o.opts.DebugDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		o.log.Debug().Err(err).Msg("debug screenshot write failed")
		return
	}
	o.log.Debug().Str("path", path).Msg("debug screenshot written")
}
