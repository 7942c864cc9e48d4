package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/muteekhan06/olx-scraper-auto/utils"
)

// Chrome network-stack error markers that indicate a transient connectivity
// problem rather than a broken page.
var transientMarkers = []string{
	"ERR_NAME_NOT_RESOLVED",
	"ERR_INTERNET_DISCONNECTED",
	"ERR_CONNECTION",
	"ERR_TIMED_OUT",
	"ERR_NETWORK_CHANGED",
}

// isTransientNavError reports whether a navigation failure is worth retrying.
func isTransientNavError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retryTransient runs fn up to attempts times, sleeping a fixed pause before
// each retry. Non-transient errors propagate immediately; exhausting the
// budget returns the last transient error.
func retryTransient(attempts int, pause time.Duration, onRetry func(attempt int, err error), fn func() error) error {
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(pause)
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransientNavError(err) {
			return err
		}
		last = err
		if onRetry != nil && attempt < attempts {
			onRetry(attempt, err)
		}
	}
	return fmt.Errorf("navigation failed after %d attempts: %w", attempts, last)
}

// navigate drives the session to url under the transient-retry policy.
func navigate(s *utils.Session, url string, attempts int, pause time.Duration, onRetry func(attempt int, err error)) error {
	return retryTransient(attempts, pause, onRetry, func() error {
		return s.Run(chromedp.Navigate(url))
	})
}

// waitVisible waits up to timeout for selector to appear. A deadline is a
// legitimate "nothing rendered" signal, reported as (false, nil).
func waitVisible(s *utils.Session, selector string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(s.Ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return false, err
}

// waitReady waits up to timeout for selector to exist in the DOM.
func waitReady(s *utils.Session, selector string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(s.Ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return false, err
}

// scrollPage performs a bounded scroll sequence to trigger lazy-loaded
// content. Scroll failures are ignored; the page stays usable without them.
func scrollPage(s *utils.Session, steps int, pause time.Duration) {
	for i := 0; i < steps; i++ {
		_ = s.Run(chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
		time.Sleep(pause)
	}
}

// pageHTML captures the rendered document.
func pageHTML(s *utils.Session) (string, error) {
	var html string
	if err := s.Run(chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("capture page html: %w", err)
	}
	return html, nil
}
