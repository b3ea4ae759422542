package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Driver is the capability surface the acquisition flow needs from a
// browser. Selector strings starting with "/" are treated as XPath,
// everything else as a CSS selector. The concrete implementation is Session;
// tests substitute fakes.
type Driver interface {
	// Navigate loads url and waits for the page load event.
	Navigate(ctx context.Context, url string) error
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// Visible reports whether sel currently matches a rendered element.
	// Single inspection, no waiting.
	Visible(ctx context.Context, sel string) (bool, error)
	// WaitVisible blocks until sel matches a visible element or timeout.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	// Click clicks the first element matching sel.
	Click(ctx context.Context, sel string) error
	// Fill clears the input matching sel and types value into it.
	Fill(ctx context.Context, sel, value string) error
	// Value returns the current value property of the input matching sel.
	Value(ctx context.Context, sel string) (string, error)
	// PressEnter sends an Enter keystroke to the element matching sel.
	PressEnter(ctx context.Context, sel string) error
	// Screenshot captures the visible viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// SetDownloadDir redirects subsequent downloads into dir. Files are
	// written under their engine-assigned event ID.
	SetDownloadDir(ctx context.Context, dir string) error
	// DownloadEvents subscribes to download lifecycle events. The cancel
	// function detaches the subscription.
	DownloadEvents() (<-chan DownloadEvent, func())
}

var _ Driver = (*Session)(nil)

// queryOpt picks the chromedp query strategy for a selector string.
func queryOpt(sel string) chromedp.QueryOption {
	if strings.HasPrefix(sel, "/") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// visibleJS builds a single-shot visibility check for sel.
func visibleJS(sel string) string {
	if strings.HasPrefix(sel, "/") {
		return fmt.Sprintf(`(function() {
	var r = document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
	var el = r.singleNodeValue;
	return el !== null && el.getClientRects().length > 0;
})()`, sel)
	}
	return fmt.Sprintf(`(function() {
	var el = document.querySelector(%q);
	return el !== null && el.getClientRects().length > 0;
})()`, sel)
}

// run executes actions against the live browser under a deadline, honoring
// cancellation of the caller's ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if s.opts.SlowMo > 0 {
		time.Sleep(s.opts.SlowMo)
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.opts.NavigateTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (s *Session) Visible(ctx context.Context, sel string) (bool, error) {
	var vis bool
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(visibleJS(sel), &vis)); err != nil {
		return false, fmt.Errorf("visibility check for %s: %w", sel, err)
	}
	return vis, nil
}

func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	if err := s.run(ctx, timeout, chromedp.WaitVisible(sel, queryOpt(sel))); err != nil {
		return fmt.Errorf("wait for %s: %w", sel, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, sel string) error {
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Click(sel, queryOpt(sel))); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

// Fill types value through real key events so framework-bound inputs see the
// change. Setting the value property directly would leave the page's own
// state untouched.
func (s *Session) Fill(ctx context.Context, sel, value string) error {
	err := s.run(ctx, s.opts.ActionTimeout,
		chromedp.Clear(sel, queryOpt(sel)),
		chromedp.SendKeys(sel, value, queryOpt(sel)),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	return nil
}

func (s *Session) Value(ctx context.Context, sel string) (string, error) {
	var v string
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Value(sel, &v, queryOpt(sel))); err != nil {
		return "", fmt.Errorf("read value of %s: %w", sel, err)
	}
	return v, nil
}

func (s *Session) PressEnter(ctx context.Context, sel string) error {
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.SendKeys(sel, kb.Enter, queryOpt(sel))); err != nil {
		return fmt.Errorf("press enter on %s: %w", sel, err)
	}
	return nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *Session) SetDownloadDir(ctx context.Context, dir string) error {
	action := cdpbrowser.
		SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
		WithDownloadPath(dir).
		WithEventsEnabled(true)
	if err := s.run(ctx, s.opts.ActionTimeout, action); err != nil {
		return fmt.Errorf("set download dir: %w", err)
	}
	return nil
}

func (s *Session) DownloadEvents() (<-chan DownloadEvent, func()) {
	return s.hub.subscribe()
}
