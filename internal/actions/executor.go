// File: internal/actions/executor.go
// Package actions implements the resilient click/type layer. Every action
// accepts an ordered list of candidate selectors (site markup drifts between
// visits) and escalates its interaction strategy across attempts.
package actions

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Target is the set of page primitives the executor drives. Implemented by
// browser.Page; tests substitute fakes.
type Target interface {
	Exists(ctx context.Context, selector string) (bool, error)
	ClickNode(ctx context.Context, selector string) error
	ClickScript(ctx context.Context, selector string) error
	ClickPoint(ctx context.Context, selector string) error
	TypeText(ctx context.Context, selector, text string) error
	WaitNavigation(ctx context.Context, delay time.Duration) error
}

// Selector is an ordered list of candidate CSS selectors; the first one
// present in the DOM wins.
type Selector []string

// One returns a Selector with a single candidate.
func One(selector string) Selector {
	return Selector{selector}
}

// clickStrategy performs one flavor of click. Strategies are consulted by
// attempt index; the last one is reused if attempts outnumber strategies.
type clickStrategy func(ctx context.Context, t Target, selector string) error

var clickStrategies = []clickStrategy{
	// Attempt 1: direct element handle click.
	func(ctx context.Context, t Target, selector string) error {
		return t.ClickNode(ctx, selector)
	},
	// Attempt 2: in-page script click, immune to handle staleness.
	func(ctx context.Context, t Target, selector string) error {
		return t.ClickScript(ctx, selector)
	},
	// Attempt 3: synthetic pointer click at the element center, immune to
	// overlay interception.
	func(ctx context.Context, t Target, selector string) error {
		return t.ClickPoint(ctx, selector)
	},
}

// Config bounds the executor's retries.
type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// Executor performs click/type actions with bounded retries and escalating
// fallback strategies. Failures are reported as boolean results, never as
// errors: callers decide whether a failed action fails the whole step.
type Executor struct {
	cfg    Config
	logger *zap.Logger
}

// NewExecutor returns an Executor. Zero config fields fall back to
// 3 attempts / 1s delay.
func NewExecutor(cfg Config, logger *zap.Logger) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Executor{
		cfg:    cfg,
		logger: logger.Named("actions"),
	}
}

// Click attempts to click the first present candidate selector, escalating the
// click strategy on each attempt. Returns false once all attempts are spent.
func (e *Executor) Click(ctx context.Context, t Target, sel Selector) bool {
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		selector, found := e.resolve(ctx, t, sel)
		if found {
			strategy := clickStrategies[min(attempt, len(clickStrategies))-1]
			if err := strategy(ctx, t, selector); err == nil {
				e.logger.Debug("Click succeeded",
					zap.String("selector", selector), zap.Int("attempt", attempt))
				return true
			} else {
				e.logger.Debug("Click attempt failed",
					zap.String("selector", selector), zap.Int("attempt", attempt), zap.Error(err))
			}
		}

		if attempt < e.cfg.MaxAttempts {
			if !sleep(ctx, e.cfg.RetryDelay) {
				return false
			}
		}
	}

	e.logger.Warn("Click exhausted all attempts", zap.Strings("candidates", sel))
	return false
}

// Type attempts to type text into the first present candidate selector.
func (e *Executor) Type(ctx context.Context, t Target, sel Selector, text string) bool {
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		selector, found := e.resolve(ctx, t, sel)
		if found {
			if err := t.TypeText(ctx, selector, text); err == nil {
				e.logger.Debug("Type succeeded",
					zap.String("selector", selector), zap.Int("attempt", attempt))
				return true
			} else {
				e.logger.Debug("Type attempt failed",
					zap.String("selector", selector), zap.Int("attempt", attempt), zap.Error(err))
			}
		}

		if attempt < e.cfg.MaxAttempts {
			if !sleep(ctx, e.cfg.RetryDelay) {
				return false
			}
		}
	}

	e.logger.Warn("Type exhausted all attempts", zap.Strings("candidates", sel))
	return false
}

// ClickAndNavigate clicks and then waits for the resulting navigation. When
// the click itself races the navigation wait the driver surfaces a benign
// abort; that class of error is swallowed and the combo retried, up to 3
// times. Other errors propagate.
func (e *Executor) ClickAndNavigate(
	ctx context.Context,
	t Target,
	sel Selector,
	navTimeout time.Duration,
	isBenign func(error) bool,
) error {

	const navRaceRetries = 3

	var lastErr error
	for attempt := 1; attempt <= navRaceRetries; attempt++ {
		if !e.Click(ctx, t, sel) {
			return ErrClickFailed
		}

		err := t.WaitNavigation(ctx, navTimeout)
		if err == nil {
			return nil
		}
		if isBenign != nil && isBenign(err) {
			e.logger.Debug("Swallowed benign navigation race", zap.Int("attempt", attempt))
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}

// resolve returns the first candidate selector present in the DOM.
func (e *Executor) resolve(ctx context.Context, t Target, sel Selector) (string, bool) {
	for _, candidate := range sel {
		present, err := t.Exists(ctx, candidate)
		if err != nil {
			e.logger.Debug("Selector probe failed",
				zap.String("selector", candidate), zap.Error(err))
			continue
		}
		if present {
			return candidate, true
		}
	}
	return "", false
}

// sleep waits for d or until the context is done; returns false when canceled.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
