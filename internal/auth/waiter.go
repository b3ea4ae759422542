package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultLoginTimeout bounds how long we wait for a manual login.
	DefaultLoginTimeout = 5 * time.Minute

	defaultWaitInterval  = 2 * time.Second
	defaultProgressEvery = 30 * time.Second
)

// LoginTimeoutError is returned when the user does not complete the login
// within the allowed window. The session is left open; only the wait gave up.
type LoginTimeoutError struct {
	Elapsed time.Duration
	Timeout time.Duration
}

func (e *LoginTimeoutError) Error() string {
	return "manual login not completed within " + e.Timeout.String() +
		" (waited " + e.Elapsed.Round(time.Second).String() + ")"
}

// Classifier is the slice of Detector the waiter needs.
type Classifier interface {
	Classify(ctx context.Context) (State, error)
}

// Waiter polls the current page until the user finishes logging in by hand.
type Waiter struct {
	Classifier Classifier
	// Interval between checks. Defaults to 2s.
	Interval time.Duration
	// Progress, when set, is invoked roughly every ProgressEvery with the
	// elapsed and remaining wait time. Defaults to every 30s.
	Progress      func(elapsed, remaining time.Duration)
	ProgressEvery time.Duration
	Log           zerolog.Logger
}

// Wait blocks until the page classifies as Authenticated, ctx is cancelled,
// or timeout elapses. Unauthenticated and Indeterminate are both "not done
// yet": the user may be mid-OAuth on a foreign domain.
func (w *Waiter) Wait(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	interval := w.Interval
	if interval <= 0 {
		interval = defaultWaitInterval
	}
	progressEvery := w.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProgress := start
	for {
		st, err := w.Classifier.Classify(waitCtx)
		if err != nil {
			w.Log.Debug().Err(err).Msg("login check failed, still waiting")
		} else if st == Authenticated {
			w.Log.Info().Dur("elapsed", time.Since(start)).Msg("manual login detected")
			return nil
		}

		if w.Progress != nil && time.Since(lastProgress) >= progressEvery {
			elapsed := time.Since(start)
			w.Progress(elapsed, timeout-elapsed)
			lastProgress = time.Now()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &LoginTimeoutError{Elapsed: time.Since(start), Timeout: timeout}
		case <-ticker.C:
		}
	}
}
