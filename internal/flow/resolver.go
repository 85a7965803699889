// File: internal/flow/resolver.go
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mailpilot-cli/internal/actions"
	"github.com/xkilldash9x/mailpilot-cli/internal/config"
)

// Page is the browser surface the resolver and orchestrator drive. It extends
// the action-executor primitives with navigation, inspection and session
// plumbing. Implemented by browser.Page; tests substitute fakes.
type Page interface {
	actions.Target
	CurrentURL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	BodyText(ctx context.Context) (string, error)
	PressEnter(ctx context.Context) error
}

// Resolver walks a page through unpredictable interstitials until the URL
// reaches the configured target prefix, using an ordered declarative rule
// table. It is bounded: either the target is reached within the retry budget
// or the run fails.
type Resolver struct {
	cfg    config.FlowConfig
	exec   *actions.Executor
	rules  []Rule
	logger *zap.Logger
}

// NewResolver returns a Resolver over the given rule table.
func NewResolver(cfg config.FlowConfig, exec *actions.Executor, rules []Rule, logger *zap.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		exec:   exec,
		rules:  rules,
		logger: logger.Named("resolver"),
	}
}

// Resolve drives the loop. Each iteration: read the URL, stop if it is the
// target, otherwise apply the first matching rule (or recovery-navigate when
// none matches), then wait for the page to settle. A rule's fail predicate or
// a Fatal outcome aborts immediately without consuming the remaining budget.
// Handler errors are logged and the loop continues; the budget bounds them.
func (r *Resolver) Resolve(ctx context.Context, p Page) error {
	for attempt := 1; attempt <= r.cfg.ResolverMaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		current, err := p.CurrentURL(ctx)
		if err != nil {
			return fmt.Errorf("failed to read page URL: %w", err)
		}
		if strings.HasPrefix(current, r.cfg.TargetURLPrefix) {
			r.logger.Info("Target destination reached", zap.Int("iterations", attempt-1))
			return nil
		}

		outcome := Unhandled()
		rule, matched := r.match(baseURL(current))
		if matched {
			r.logger.Info("Resolving interstitial",
				zap.String("rule", rule.Name), zap.String("url", current))

			if rule.Fail != nil && rule.Fail(ctx, p) {
				return fmt.Errorf("%s: %w", rule.Name, rule.FailReason)
			}

			outcome, err = rule.Resolve(ctx, p, r.exec)
			if err != nil {
				r.logger.Warn("Interstitial handler failed, retrying",
					zap.String("rule", rule.Name), zap.Error(err))
				outcome = Unhandled()
			}
			if outcome.IsFatal() {
				return fmt.Errorf("%s: %w", rule.Name, outcome.Reason())
			}
		} else {
			// Unknown page. Steer toward the target and re-evaluate; repeated
			// failure is caught by the retry budget.
			r.logger.Debug("No rule matches, navigating toward target",
				zap.String("url", current))
			if err := p.Navigate(ctx, r.cfg.TargetURLPrefix); err != nil {
				r.logger.Warn("Recovery navigation failed", zap.Error(err))
			}
		}

		if outcome.WaitsForNavigation() {
			if err := p.WaitNavigation(ctx, r.cfg.NavigationTimeout); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				// A timed-out wait is a normal signal; re-evaluate the URL.
				r.logger.Debug("No navigation observed after handling", zap.Error(err))
			}
		} else {
			select {
			case <-time.After(r.cfg.ResolverDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return ErrInterstitialUnresolved
}

func (r *Resolver) match(base string) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.Matches(base) {
			return rule, true
		}
	}
	return Rule{}, false
}

// baseURL strips the query string and fragment before prefix matching, so
// volatile tracking parameters never defeat a rule.
func baseURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
