package export

import (
	"errors"
	"strconv"
	"time"
)

// ErrInvalidRange is returned by NewRequest when the start date falls after
// the end date. The check runs before any browser interaction.
var ErrInvalidRange = errors.New("export start date is after end date")

// ErrNotAuthenticated is returned when an export is attempted without a
// prior successful authentication.
var ErrNotAuthenticated = errors.New("export requires an authenticated session")

// StepError reports which stage of the export flow failed and after how many
// attempts. Steps retry once, immediately, before giving up.
type StepError struct {
	Step     string
	Attempts int
	Err      error
}

func (e *StepError) Error() string {
	return "export step " + e.Step + " failed after " +
		strconv.Itoa(e.Attempts) + " attempt(s): " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// DownloadOutcome says how a download ended short of success.
type DownloadOutcome int

const (
	// DownloadFailed: the browser reported a failure or the file vanished.
	DownloadFailed DownloadOutcome = iota
	// DownloadCanceled: the browser cancelled the download mid-flight.
	DownloadCanceled
	// DownloadTimeout: no completion signal before the deadline.
	DownloadTimeout
)

func (o DownloadOutcome) String() string {
	switch o {
	case DownloadFailed:
		return "failed"
	case DownloadCanceled:
		return "canceled"
	case DownloadTimeout:
		return "timeout"
	}
	return "unknown"
}

// DownloadError carries the partial state of a download that did not finish.
// Failed and Canceled surface immediately; only Timeout earns one retry at
// the orchestrator, since re-clicking after an explicit failure risks a
// duplicate download.
type DownloadError struct {
	Outcome  DownloadOutcome
	Elapsed  time.Duration
	Received int64
	Reason   string
}

func (e *DownloadError) Error() string {
	switch e.Outcome {
	case DownloadCanceled:
		return "download canceled after " + e.Elapsed.Round(time.Millisecond).String()
	case DownloadTimeout:
		return "download did not complete within " + e.Elapsed.Round(time.Millisecond).String() +
			" (" + strconv.FormatInt(e.Received, 10) + " bytes received)"
	}
	msg := "download failed after " + e.Elapsed.Round(time.Millisecond).String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
