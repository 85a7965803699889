// File: internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mailpilot-cli/internal/sessionstore"
)

// Page wraps one browser target (tab) with the primitive operations the
// action executor, resolver and orchestrator are built on. Every operation
// carries an explicit timeout so a stuck page feeds retry logic instead of
// hanging the run.
type Page struct {
	ctx             context.Context
	cancel          context.CancelFunc
	selectorTimeout time.Duration
	logger          *zap.Logger

	navEvents chan struct{}
}

// listenNavigation forwards top-level frame navigations into navEvents so
// WaitNavigation can race a navigation event against a fixed delay.
func (p *Page) listenNavigation() {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		if e, ok := ev.(*cdppage.EventFrameNavigated); ok && e.Frame.ParentID == "" {
			select {
			case p.navEvents <- struct{}{}:
			default:
			}
		}
	})
}

// run executes chromedp actions against this page, bounded by timeout and by
// the caller's context.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// CurrentURL returns the page's current top-level URL.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, p.selectorTimeout, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("failed to read current URL: %w", err)
	}
	return u, nil
}

// Navigate loads the URL and waits for the document body to be ready. The
// benign click-vs-navigate race is swallowed here; any other error propagates.
func (p *Page) Navigate(ctx context.Context, url string) error {
	err := p.run(ctx, 0,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil && !IsBenignNavError(err) {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until the selector matches a visible element or the
// timeout elapses.
func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Exists reports whether the selector currently matches an element. It does
// not wait.
func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := p.run(ctx, p.selectorTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// ClickNode performs a driver-level click on the element's node. Fails when
// the element is absent or not visible.
func (p *Page) ClickNode(ctx context.Context, selector string) error {
	return p.run(ctx, p.selectorTimeout,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// ClickScript dispatches the click from inside the page. This sidesteps stale
// node handles after a partial re-render.
func (p *Page) ClickScript(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { throw new Error('element not found'); }
		el.click();
		return true;
	})()`, selector)
	var ok bool
	return p.run(ctx, p.selectorTimeout, chromedp.Evaluate(script, &ok))
}

type boundingRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ClickPoint computes the element's bounding box and dispatches a synthetic
// pointer click at its center. This bypasses overlays intercepting node-level
// clicks.
func (p *Page) ClickPoint(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) { return null; }
		const r = el.getBoundingClientRect();
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	})()`, selector)

	var rect *boundingRect
	if err := p.run(ctx, p.selectorTimeout, chromedp.Evaluate(script, &rect)); err != nil {
		return err
	}
	if rect == nil || rect.Width == 0 || rect.Height == 0 {
		return fmt.Errorf("element %q has no clickable bounding box", selector)
	}

	x := rect.X + rect.Width/2
	y := rect.Y + rect.Height/2
	return p.run(ctx, p.selectorTimeout, chromedp.MouseClickXY(x, y))
}

// TypeText clears the field and types the text into it.
func (p *Page) TypeText(ctx context.Context, selector, text string) error {
	clearScript := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el) { el.value = ''; }
		return true;
	})()`, selector)
	var ok bool
	return p.run(ctx, p.selectorTimeout,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Evaluate(clearScript, &ok),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// ReadValue returns the value property of the matching input element, or the
// empty string when no element matches.
func (p *Page) ReadValue(ctx context.Context, selector string) (string, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el && el.value ? el.value : '';
	})()`, selector)
	var value string
	if err := p.run(ctx, p.selectorTimeout, chromedp.Evaluate(script, &value)); err != nil {
		return "", err
	}
	return value, nil
}

// BodyText returns the visible text content of the document body.
func (p *Page) BodyText(ctx context.Context) (string, error) {
	var text string
	if err := p.run(ctx, p.selectorTimeout, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

// PressEnter sends the Enter key to the focused element.
func (p *Page) PressEnter(ctx context.Context) error {
	return p.run(ctx, p.selectorTimeout, chromedp.KeyEvent(kb.Enter))
}

// WaitNavigation blocks until a top-level navigation event arrives or the
// delay elapses, whichever is first. The timeout case returns
// ErrNavigationTimeout, which callers treat as a normal signal.
func (p *Page) WaitNavigation(ctx context.Context, delay time.Duration) error {
	// Drain events from navigations that already completed.
	for {
		select {
		case <-p.navEvents:
			continue
		default:
		}
		break
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-p.navEvents:
		return nil
	case <-timer.C:
		return ErrNavigationTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Screenshot captures a full-page screenshot.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, 15*time.Second, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return nil, err
	}
	return buf, nil
}

// HTML returns the serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var content string
	if err := p.run(ctx, 15*time.Second, chromedp.OuterHTML("html", &content, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return content, nil
}

// Cookies returns the cookies visible to this page in durable form.
func (p *Page) Cookies(ctx context.Context) ([]sessionstore.Cookie, error) {
	var out []sessionstore.Cookie
	err := p.run(ctx, p.selectorTimeout, chromedp.ActionFunc(func(c context.Context) error {
		cookies, err := network.GetCookies().Do(c)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			cookie := sessionstore.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
				SameSite: c.SameSite.String(),
			}
			if c.Expires > 0 {
				cookie.Expires = time.Unix(int64(c.Expires), 0).UTC()
			}
			out = append(out, cookie)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to collect cookies: %w", err)
	}
	return out, nil
}

// SetCookies applies a stored cookie set to the browser before navigation.
func (p *Page) SetCookies(ctx context.Context, cookies []sessionstore.Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			param.SameSite = network.CookieSameSite(c.SameSite)
		}
		if !c.Expires.IsZero() {
			expires := cdp.TimeSinceEpoch(c.Expires)
			param.Expires = &expires
		}
		params = append(params, param)
	}

	err := p.run(ctx, p.selectorTimeout, chromedp.ActionFunc(func(c context.Context) error {
		return network.SetCookies(params).Do(c)
	}))
	if err != nil {
		return fmt.Errorf("failed to apply stored cookies: %w", err)
	}
	return nil
}
