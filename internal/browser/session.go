// File: internal/browser/session.go
// Package browser owns the Chromium process for one account run: the exec
// allocator (with per-account proxy flags), the primary authentication page
// and any secondary tabs, and guaranteed teardown on every exit path.
package browser

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mailpilot-cli/internal/accounts"
	"github.com/xkilldash9x/mailpilot-cli/internal/config"
)

// Session is one live browser process plus its page handles. A Session is
// owned exclusively by a single account run and must be closed on every exit
// path, success or failure.
type Session struct {
	cfg   config.BrowserConfig
	proxy accounts.Proxy

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	selectorTimeout time.Duration
	logger          *zap.Logger

	primary   *Page
	closeOnce sync.Once
}

// Launch starts a Chromium process configured for the given proxy and returns
// a Session with its primary page ready.
func Launch(
	ctx context.Context,
	cfg config.BrowserConfig,
	proxy accounts.Proxy,
	selectorTimeout time.Duration,
	logger *zap.Logger,
) (*Session, error) {

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.Flag("window-size",
			strconv.Itoa(cfg.WindowWidth)+","+strconv.Itoa(cfg.WindowHeight)))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if !proxy.IsZero() {
		opts = append(opts, chromedp.ProxyServer(proxy.ServerURL()))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	s := &Session{
		cfg:             cfg,
		proxy:           proxy,
		allocCtx:        allocCtx,
		allocCancel:     allocCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		selectorTimeout: selectorTimeout,
		logger:          logger.Named("browser"),
	}

	// The first Run starts the browser process; the browser context itself
	// becomes the primary tab.
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	primary, err := s.setupPage(browserCtx, nil)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.primary = primary

	s.logger.Info("Browser session launched",
		zap.Bool("headless", cfg.Headless),
		zap.Bool("proxied", !proxy.IsZero()))
	return s, nil
}

// Page returns the primary authentication page.
func (s *Session) Page() *Page {
	return s.primary
}

// OpenPage creates a secondary tab (its own target) in the same browser. The
// returned release function closes the tab; it is safe to call more than once.
func (s *Session) OpenPage(ctx context.Context) (*Page, func(), error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)

	page, err := s.setupPage(tabCtx, tabCancel)
	if err != nil {
		tabCancel()
		return nil, nil, fmt.Errorf("failed to open secondary page: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			tabCancel()
			s.logger.Debug("Secondary page closed")
		})
	}
	return page, release, nil
}

// setupPage wires navigation-event listening and proxy authentication for a
// page context and returns the Page wrapper.
func (s *Session) setupPage(pageCtx context.Context, cancel context.CancelFunc) (*Page, error) {
	p := &Page{
		ctx:             pageCtx,
		cancel:          cancel,
		selectorTimeout: s.selectorTimeout,
		logger:          s.logger,
		navEvents:       make(chan struct{}, 8),
	}
	p.listenNavigation()

	if !s.proxy.IsZero() && s.proxy.Username != "" {
		if err := s.enableProxyAuth(pageCtx); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// enableProxyAuth answers proxy authentication challenges with the account's
// proxy credentials via the CDP fetch domain. Requests are otherwise continued
// untouched.
func (s *Session) enableProxyAuth(pageCtx context.Context) error {
	username, password := s.proxy.Username, s.proxy.Password

	chromedp.ListenTarget(pageCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				execCtx := cdp.WithExecutor(pageCtx, chromedp.FromContext(pageCtx).Target)
				resp := &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: username,
					Password: password,
				}
				if err := fetch.ContinueWithAuth(e.RequestID, resp).Do(execCtx); err != nil {
					s.logger.Debug("Failed to answer proxy auth challenge", zap.Error(err))
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				execCtx := cdp.WithExecutor(pageCtx, chromedp.FromContext(pageCtx).Target)
				if err := fetch.ContinueRequest(e.RequestID).Do(execCtx); err != nil {
					s.logger.Debug("Failed to continue paused request", zap.Error(err))
				}
			}()
		}
	})

	if err := chromedp.Run(pageCtx, fetch.Enable().WithHandleAuthRequests(true)); err != nil {
		return fmt.Errorf("failed to enable fetch auth handling: %w", err)
	}
	return nil
}

// Close tears the browser process down. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.browserCancel != nil {
			s.browserCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		s.logger.Info("Browser session closed")
	})
}
