// File: internal/browser/errors.go
package browser

import (
	"context"
	"errors"
	"strings"
)

// ErrNavigationTimeout is returned by Page.WaitNavigation when no navigation
// event arrived within the wait window. Callers treat it as a normal signal
// feeding their retry logic, not as a failure of the page.
var ErrNavigationTimeout = errors.New("timed out waiting for navigation")

// IsBenignNavError classifies errors surfaced by the CDP layer when a click
// itself triggers a top-level navigation concurrently with an explicit
// navigation wait. Chromium aborts the in-flight action with net::ERR_ABORTED
// in that case even though the navigation succeeds; the caller should retry
// rather than fail.
//
// This is a scoped classifier wrapped around individual navigation calls, not
// a process-wide patch of driver internals.
func IsBenignNavError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "net::ERR_ABORTED") ||
		strings.Contains(msg, "page load error net::ERR_ABORTED")
}

// combineContext derives a context from parent that is also canceled when
// secondary is done. chromedp actions must run on a context descending from
// the page's own context, so caller deadlines are folded in this way.
func combineContext(parent, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
