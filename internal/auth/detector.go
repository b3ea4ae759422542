package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yukitaka/tccretro/internal/browser"
)

const (
	// DefaultBaseURL is the TaskChute Cloud origin.
	DefaultBaseURL = "https://taskchute.cloud"

	// DefaultLoggedOutMarker matches the social login button on the auth page.
	DefaultLoggedOutMarker = `//button[contains(., "LOGIN WITH")]`
	// DefaultLoggedInMarker matches the export link in the app navigation,
	// which only renders for a signed-in user.
	DefaultLoggedInMarker = `//a[contains(@href, "/export")]`

	defaultProbePath      = "/taskchute"
	defaultDetectInterval = 250 * time.Millisecond
	defaultDetectTimeout  = 5 * time.Second
)

// DetectorConfig tunes the authentication detector. Zero values fall back to
// the defaults above.
type DetectorConfig struct {
	BaseURL         string
	ProbePath       string
	LoggedInMarker  string
	LoggedOutMarker string
	Interval        time.Duration
	Timeout         time.Duration
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ProbePath == "" {
		c.ProbePath = defaultProbePath
	}
	if c.LoggedInMarker == "" {
		c.LoggedInMarker = DefaultLoggedInMarker
	}
	if c.LoggedOutMarker == "" {
		c.LoggedOutMarker = DefaultLoggedOutMarker
	}
	if c.Interval <= 0 {
		c.Interval = defaultDetectInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultDetectTimeout
	}
	return c
}

// Detector classifies the login state of a browser session by racing two
// positive page markers against a short deadline.
type Detector struct {
	drv browser.Driver
	cfg DetectorConfig
	log zerolog.Logger
}

// NewDetector builds a Detector over drv.
func NewDetector(drv browser.Driver, cfg DetectorConfig, log zerolog.Logger) *Detector {
	return &Detector{drv: drv, cfg: cfg.withDefaults(), log: log}
}

// Detect navigates to the probe page and polls Classify until one of the
// markers appears or the detection timeout elapses. A timeout yields
// Indeterminate with a nil error; the caller decides how many re-checks the
// ambiguity is worth.
func (d *Detector) Detect(ctx context.Context) (State, error) {
	probe := d.cfg.BaseURL + d.cfg.ProbePath
	d.log.Debug().Str("url", probe).Msg("probing login state")

	if err := d.drv.Navigate(ctx, probe); err != nil {
		return Indeterminate, fmt.Errorf("probe navigation: %w", err)
	}

	state := Indeterminate
	err := browser.Poll(ctx, d.cfg.Interval, d.cfg.Timeout, func(pollCtx context.Context) (bool, error) {
		st, cerr := d.Classify(pollCtx)
		if cerr != nil {
			// The page may still be settling; try again on the next tick.
			d.log.Debug().Err(cerr).Msg("classification attempt failed")
			return false, nil
		}
		state = st
		return st != Indeterminate, nil
	})
	if err != nil {
		if errors.Is(err, browser.ErrPollTimeout) {
			d.log.Debug().Dur("timeout", d.cfg.Timeout).Msg("login state still ambiguous")
			return Indeterminate, nil
		}
		return Indeterminate, err
	}

	d.log.Debug().Stringer("state", state).Msg("login state detected")
	return state, nil
}

// Classify inspects the current page once, without navigating. The manual
// login waiter leans on this: re-navigating would tear down an OAuth
// redirect in flight.
func (d *Detector) Classify(ctx context.Context) (State, error) {
	loc, err := d.drv.Location(ctx)
	if err != nil {
		return Indeterminate, err
	}

	// Being bounced to the auth section is a positive logged-out signal.
	if strings.Contains(loc, "/auth/") {
		return Unauthenticated, nil
	}

	out, err := d.drv.Visible(ctx, d.cfg.LoggedOutMarker)
	if err != nil {
		return Indeterminate, err
	}
	if out {
		return Unauthenticated, nil
	}

	// Only trust the logged-in marker on our own origin. During a social
	// login the browser sits on the identity provider's domain.
	if strings.HasPrefix(loc, d.cfg.BaseURL) {
		in, err := d.drv.Visible(ctx, d.cfg.LoggedInMarker)
		if err != nil {
			return Indeterminate, err
		}
		if in {
			return Authenticated, nil
		}
	}

	return Indeterminate, nil
}
