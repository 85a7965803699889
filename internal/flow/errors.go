// File: internal/flow/errors.go
package flow

import "errors"

// Failure taxonomy for one account run. Every RunResult error wraps one of
// these so callers can categorize without string matching.
var (
	// ErrSessionInvalid marks a stored cookie set that did not yield a live
	// session. It triggers a fresh login; it is never fatal on its own.
	ErrSessionInvalid = errors.New("stored session is invalid")

	// ErrCredentialRejected marks the site's incorrect-credentials response.
	// Fatal for the account, never retried.
	ErrCredentialRejected = errors.New("incorrect credentials")

	// ErrCodeRejected marks exhaustion of the one-time-code budget with the
	// code input still demanding a code.
	ErrCodeRejected = errors.New("one-time code rejected")

	// ErrInterstitialUnresolved marks the resolver running out of retry budget
	// without reaching the target destination.
	ErrInterstitialUnresolved = errors.New("exceeded retries resolving interstitials")

	// ErrSignInBlocked marks an explicit sign-in block page. Immediately
	// fatal, bypassing any remaining retry budget.
	ErrSignInBlocked = errors.New("sign-in blocked by provider")

	// ErrActionFailed marks a click or type that exhausted every fallback
	// strategy.
	ErrActionFailed = errors.New("page action failed")
)
