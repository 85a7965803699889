// File: internal/runner/account.go
package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mailpilot-cli/internal/accounts"
	"github.com/xkilldash9x/mailpilot-cli/internal/actions"
	"github.com/xkilldash9x/mailpilot-cli/internal/browser"
	"github.com/xkilldash9x/mailpilot-cli/internal/config"
	"github.com/xkilldash9x/mailpilot-cli/internal/diagnostics"
	"github.com/xkilldash9x/mailpilot-cli/internal/flow"
	"github.com/xkilldash9x/mailpilot-cli/internal/otp"
	"github.com/xkilldash9x/mailpilot-cli/internal/sessionstore"
)

// BrowserRunner runs one account end to end: launch a dedicated browser with
// the account's proxy, drive the login flow, tear the browser down on every
// exit path.
type BrowserRunner struct {
	cfg     *config.Config
	store   *sessionstore.Store
	capture *diagnostics.Capturer
	logger  *zap.Logger
}

// NewBrowserRunner wires the shared collaborators. capture may be nil when
// failure diagnostics are disabled.
func NewBrowserRunner(
	cfg *config.Config,
	store *sessionstore.Store,
	capture *diagnostics.Capturer,
	logger *zap.Logger,
) *BrowserRunner {
	return &BrowserRunner{
		cfg:     cfg,
		store:   store,
		capture: capture,
		logger:  logger,
	}
}

// RunAccount launches a session and executes the orchestrator. A panic inside
// the flow is converted into a failed result so one account can never take
// the batch down.
func (r *BrowserRunner) RunAccount(ctx context.Context, cred accounts.Credential) (res flow.RunResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Account run panicked",
				zap.String("account", cred.Email), zap.Any("panic", rec))
			res = flow.RunResult{
				Email: cred.Email,
				Stage: "internal",
				Err:   fmt.Errorf("internal fault: %v", rec),
			}
		}
	}()

	session, err := browser.Launch(ctx, r.cfg.Browser, cred.Proxy, r.cfg.Flow.SelectorTimeout, r.logger)
	if err != nil {
		return flow.RunResult{
			Email: cred.Email,
			Stage: "launch",
			Err:   fmt.Errorf("failed to launch browser: %w", err),
		}
	}
	defer session.Close()

	exec := actions.NewExecutor(actions.Config{
		MaxAttempts: r.cfg.Flow.ActionMaxAttempts,
		RetryDelay:  r.cfg.Flow.ActionRetryDelay,
	}, r.logger)

	resolver := flow.NewResolver(r.cfg.Flow, exec,
		flow.DefaultRules(r.cfg.Flow.TargetURLPrefix), r.logger)

	codes := otp.NewProvider(r.cfg.OTP, tabOpener{session}, r.logger)

	var capture flow.Capturer
	if r.capture != nil {
		capture = captureAdapter{r.capture}
	}

	orch := flow.NewOrchestrator(r.cfg.Flow, exec, resolver, r.store, codes, capture, r.logger)
	return orch.Run(ctx, session.Page(), cred)
}

// tabOpener adapts the browser session's secondary-tab factory to the code
// provider's opener interface.
type tabOpener struct {
	session *browser.Session
}

func (t tabOpener) OpenPage(ctx context.Context) (otp.CodePage, func(), error) {
	page, release, err := t.session.OpenPage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return page, release, nil
}

// captureAdapter narrows the diagnostics capturer to the flow's interface.
type captureAdapter struct {
	c *diagnostics.Capturer
}

func (a captureAdapter) Capture(ctx context.Context, identifier, stage string, p flow.Snapshot) {
	a.c.Capture(ctx, identifier, stage, p)
}
