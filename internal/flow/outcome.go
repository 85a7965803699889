// File: internal/flow/outcome.go
package flow

type outcomeKind int

const (
	outcomeHandled outcomeKind = iota
	outcomeHandledNav
	outcomeUnhandled
	outcomeFatal
)

// Outcome is the tagged result of one interstitial resolution attempt. It
// tells the resolver loop how to proceed: wait for a navigation, pause and
// re-evaluate, or abort the whole run.
type Outcome struct {
	kind   outcomeKind
	reason error
}

// Handled reports the interstitial was dismissed in place; the loop pauses
// briefly and re-evaluates the URL.
func Handled() Outcome { return Outcome{kind: outcomeHandled} }

// HandledWithNavigation reports the dismissal should trigger a navigation;
// the loop waits for it (or a timeout) before re-evaluating.
func HandledWithNavigation() Outcome { return Outcome{kind: outcomeHandledNav} }

// Unhandled reports the rule could not act; the loop pauses and retries,
// burning retry budget.
func Unhandled() Outcome { return Outcome{kind: outcomeUnhandled} }

// Fatal aborts the resolver immediately with the given reason.
func Fatal(reason error) Outcome { return Outcome{kind: outcomeFatal, reason: reason} }

// WaitsForNavigation reports whether the loop should wait for a navigation
// event after this outcome.
func (o Outcome) WaitsForNavigation() bool { return o.kind == outcomeHandledNav }

// IsFatal reports whether the resolver must abort.
func (o Outcome) IsFatal() bool { return o.kind == outcomeFatal }

// Reason returns the fatal reason, nil for non-fatal outcomes.
func (o Outcome) Reason() error { return o.reason }
