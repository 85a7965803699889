// File: internal/flow/rules.go
package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/mailpilot-cli/internal/actions"
)

// ResolveFunc performs the closed action that dismisses one interstitial.
type ResolveFunc func(ctx context.Context, p Page, exec *actions.Executor) (Outcome, error)

// Rule binds a URL prefix to its resolution action. Rules are evaluated in
// order against the query-stripped base URL; the first match wins.
type Rule struct {
	Name   string
	Prefix string

	// Fail, when set, is checked before Resolve. A true result aborts the
	// whole resolver with FailReason.
	Fail       func(ctx context.Context, p Page) bool
	FailReason error

	Resolve ResolveFunc
}

// Matches reports whether the query-stripped base URL falls under this rule.
func (r Rule) Matches(baseURL string) bool {
	return strings.HasPrefix(baseURL, r.Prefix)
}

// Block-page phrases checked by the blocked-sign-in predicate.
var blockMarkers = []string{
	"Your account has been locked",
	"We've detected suspicious activity",
	"help us protect your account",
}

// DefaultRules returns the interstitial rule table for the Microsoft login
// flow. targetURL is where the account-checkup detour is redirected to.
func DefaultRules(targetURL string) []Rule {
	return []Rule{
		{
			Name:       "blocked-sign-in",
			Prefix:     "https://account.live.com/Abuse",
			Fail:       bodyContainsAny(blockMarkers),
			FailReason: ErrSignInBlocked,
			Resolve: func(ctx context.Context, p Page, exec *actions.Executor) (Outcome, error) {
				// Reaching this URL at all means the account is blocked, with
				// or without the marker text.
				return Fatal(ErrSignInBlocked), nil
			},
		},
		{
			Name:    "privacy-notice",
			Prefix:  "https://privacynotice.account.microsoft.com/notice",
			Resolve: clickOrConfirm(actions.Selector{"button.ms-Button--primary"}),
		},
		{
			Name:       "stay-signed-in",
			Prefix:     "https://login.live.com/login.srf",
			Fail:       bodyContainsAny(blockMarkers),
			FailReason: ErrSignInBlocked,
			Resolve:    clickOrConfirm(actions.Selector{"#acceptButton"}),
		},
		{
			Name:   "account-checkup",
			Prefix: "https://account.microsoft.com/account-checkup",
			Resolve: func(ctx context.Context, p Page, exec *actions.Executor) (Outcome, error) {
				// No dismissable element here; steer straight to the target.
				if err := p.Navigate(ctx, targetURL); err != nil {
					return Unhandled(), fmt.Errorf("failed to leave account checkup: %w", err)
				}
				return Handled(), nil
			},
		},
		{
			Name:    "passkey-interrupt",
			Prefix:  "https://account.live.com/interrupt/passkey",
			Resolve: clickOrConfirm(actions.Selector{`button[aria-label="Skip for now"]`}),
		},
	}
}

// clickOrConfirm builds a ResolveFunc that clicks the selector and, when
// element-based interaction fails outright, falls back to pressing the page's
// default confirm key.
func clickOrConfirm(sel actions.Selector) ResolveFunc {
	return func(ctx context.Context, p Page, exec *actions.Executor) (Outcome, error) {
		if exec.Click(ctx, p, sel) {
			return HandledWithNavigation(), nil
		}
		if err := p.PressEnter(ctx); err != nil {
			return Unhandled(), fmt.Errorf("click and confirm-key fallback both failed: %w", err)
		}
		return HandledWithNavigation(), nil
	}
}

// bodyContainsAny builds a predicate that is true when the page body contains
// any of the phrases. Read failures count as no match.
func bodyContainsAny(phrases []string) func(ctx context.Context, p Page) bool {
	return func(ctx context.Context, p Page) bool {
		body, err := p.BodyText(ctx)
		if err != nil {
			return false
		}
		lower := strings.ToLower(body)
		for _, phrase := range phrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				return true
			}
		}
		return false
	}
}
