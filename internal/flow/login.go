// File: internal/flow/login.go
// Package flow implements the per-account login state machine: restore a
// stored session if possible, otherwise run the full credential + one-time
// code login, resolve whatever interstitials appear, perform the post-login
// configuration step and persist the resulting session.
package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mailpilot-cli/internal/accounts"
	"github.com/xkilldash9x/mailpilot-cli/internal/actions"
	"github.com/xkilldash9x/mailpilot-cli/internal/browser"
	"github.com/xkilldash9x/mailpilot-cli/internal/config"
	"github.com/xkilldash9x/mailpilot-cli/internal/sessionstore"
)

// Microsoft login selectors. Candidate lists because the markup varies
// between visits; the first present one wins.
var (
	emailSelectors = actions.Selector{
		"#i0116", `input[name="loginfmt"]`, `input[type="email"]`,
	}
	passwordSelectors = actions.Selector{
		"#i0118", `input[name="passwd"]`, `input[type="password"]`,
	}
	submitSelectors = actions.Selector{
		"#idSIButton9", `input[type="submit"]`, `button[type="submit"]`,
	}
	otpInputSelectors = actions.Selector{
		"#idTxtBx_SAOTCC_OTC", `input[name="otc"]`,
	}
	otpSubmitSelectors = actions.Selector{
		"#idSubmit_SAOTCC_Continue", `input[type="submit"]`,
	}
)

// Credential-rejection markers, checked immediately after each submission.
const (
	emailErrorSelector    = "#usernameError"
	passwordErrorSelector = "#passwordError"
)

// Snapshot is the page surface diagnostics capture reads from.
type Snapshot interface {
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}

// SessionPage extends the resolver's page surface with the cookie plumbing
// and diagnostics the orchestrator needs.
type SessionPage interface {
	Page
	Snapshot
	Cookies(ctx context.Context) ([]sessionstore.Cookie, error)
	SetCookies(ctx context.Context, cookies []sessionstore.Cookie) error
}

// CodeProvider produces one-time codes from a shared secret.
type CodeProvider interface {
	GetCode(ctx context.Context, secret string) (string, error)
}

// CookieStore loads and persists per-account cookie sets. Implemented by
// sessionstore.Store.
type CookieStore interface {
	Save(identifier string, cookies []sessionstore.Cookie) error
	Load(identifier string) ([]sessionstore.Cookie, bool)
}

// Capturer records failure diagnostics. Injected so the state machine stays
// testable without a real browser; nil disables capture.
type Capturer interface {
	Capture(ctx context.Context, identifier, stage string, p Snapshot)
}

// RunResult is the single outcome emitted for one account run.
type RunResult struct {
	Email    string
	Restored bool
	Stage    string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the run reached the target and completed the
// post-login step.
func (r RunResult) Succeeded() bool { return r.Err == nil }

// Orchestrator runs the login state machine for one account on one page.
type Orchestrator struct {
	cfg      config.FlowConfig
	exec     *actions.Executor
	resolver *Resolver
	store    CookieStore
	codes    CodeProvider
	capture  Capturer
	logger   *zap.Logger
}

// NewOrchestrator wires the state machine's collaborators. capture may be nil.
func NewOrchestrator(
	cfg config.FlowConfig,
	exec *actions.Executor,
	resolver *Resolver,
	store CookieStore,
	codes CodeProvider,
	capture Capturer,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		exec:     exec,
		resolver: resolver,
		store:    store,
		codes:    codes,
		capture:  capture,
		logger:   logger.Named("flow"),
	}
}

// Run executes the whole state machine for one account and always returns
// exactly one RunResult. On failure a diagnostic capture is attempted; its
// own failure is ignored.
func (o *Orchestrator) Run(ctx context.Context, p SessionPage, cred accounts.Credential) RunResult {
	start := time.Now()
	log := o.logger.With(zap.String("account", cred.Email))

	res := RunResult{Email: cred.Email}
	res.Stage, res.Err = o.run(ctx, p, cred, &res, log)
	res.Duration = time.Since(start)

	if res.Err != nil {
		log.Error("Account run failed",
			zap.String("stage", res.Stage),
			zap.Duration("duration", res.Duration),
			zap.Error(res.Err))
		if o.capture != nil {
			o.capture.Capture(ctx, cred.Email, res.Stage, p)
		}
	} else {
		log.Info("Account run succeeded",
			zap.Bool("restored", res.Restored),
			zap.Duration("duration", res.Duration))
	}
	return res
}

// run walks the stages in order and reports the stage active when an error
// occurred.
func (o *Orchestrator) run(
	ctx context.Context,
	p SessionPage,
	cred accounts.Credential,
	res *RunResult,
	log *zap.Logger,
) (string, error) {

	if o.restoreSession(ctx, p, cred.Email, log) {
		res.Restored = true
		if err := o.addSafeSender(ctx, p); err != nil {
			return "postlogin", err
		}
		// The stored set already proved itself; leave it untouched.
		return "done", nil
	}

	if err := o.submitEmail(ctx, p, cred.Email); err != nil {
		return "login", err
	}
	if err := o.submitPassword(ctx, p, cred.Password); err != nil {
		return "password", err
	}
	if err := o.completeMFA(ctx, p, cred, log); err != nil {
		return "mfa", err
	}
	if err := o.resolver.Resolve(ctx, p); err != nil {
		return "resolve", err
	}
	if err := o.addSafeSender(ctx, p); err != nil {
		return "postlogin", err
	}
	if err := o.persistSession(ctx, p, cred.Email); err != nil {
		return "persist", err
	}
	return "done", nil
}

// restoreSession applies a stored cookie set and checks it still yields a
// live session at the target. Any miss falls back to the full login.
func (o *Orchestrator) restoreSession(ctx context.Context, p SessionPage, identifier string, log *zap.Logger) bool {
	cookies, ok := o.store.Load(identifier)
	if !ok {
		return false
	}

	if err := p.SetCookies(ctx, cookies); err != nil {
		log.Warn("Failed to apply stored cookies", zap.Error(err))
		return false
	}
	if err := p.Navigate(ctx, o.cfg.TargetURLPrefix); err != nil {
		log.Warn("Navigation with stored session failed", zap.Error(err))
		return false
	}
	if !o.validateSession(ctx, p) {
		log.Info("Stored session expired, running full login",
			zap.String("reason", ErrSessionInvalid.Error()))
		return false
	}

	log.Info("Session restored from stored cookies")
	return true
}

// validateSession checks for a live logged-in state: the URL sits under the
// target prefix and the mailbox shell rendered.
func (o *Orchestrator) validateSession(ctx context.Context, p SessionPage) bool {
	current, err := p.CurrentURL(ctx)
	if err != nil || !strings.HasPrefix(current, o.cfg.TargetURLPrefix) {
		return false
	}
	present, err := p.Exists(ctx, "#app")
	return err == nil && present
}

func (o *Orchestrator) submitEmail(ctx context.Context, p SessionPage, email string) error {
	if err := p.Navigate(ctx, o.cfg.LoginURL); err != nil {
		return err
	}
	if err := p.WaitVisible(ctx, joined(emailSelectors), o.cfg.SelectorTimeout); err != nil {
		return fmt.Errorf("email field never appeared: %w", err)
	}
	if !o.exec.Type(ctx, p, emailSelectors, email) {
		return fmt.Errorf("email field: %w", ErrActionFailed)
	}
	if err := o.exec.ClickAndNavigate(ctx, p, submitSelectors,
		o.cfg.NavigationTimeout, browser.IsBenignNavError); err != nil {
		return fmt.Errorf("email submission: %w", err)
	}
	if present, _ := p.Exists(ctx, emailErrorSelector); present {
		return fmt.Errorf("account not recognized: %w", ErrCredentialRejected)
	}
	return nil
}

func (o *Orchestrator) submitPassword(ctx context.Context, p SessionPage, password string) error {
	if err := p.WaitVisible(ctx, joined(passwordSelectors), o.cfg.SelectorTimeout); err != nil {
		return fmt.Errorf("password field never appeared: %w", err)
	}
	if !o.exec.Type(ctx, p, passwordSelectors, password) {
		return fmt.Errorf("password field: %w", ErrActionFailed)
	}
	if err := o.exec.ClickAndNavigate(ctx, p, submitSelectors,
		o.cfg.NavigationTimeout, browser.IsBenignNavError); err != nil {
		return fmt.Errorf("password submission: %w", err)
	}
	// Fail fast on the rejection marker: no point spending code budget on
	// doomed credentials.
	if present, _ := p.Exists(ctx, passwordErrorSelector); present {
		return ErrCredentialRejected
	}
	return nil
}

// completeMFA enters the one-time-code step when the page demands it. Each
// attempt generates a fresh code; a stale time window is the usual rejection
// cause, so retrying the same code is never useful.
func (o *Orchestrator) completeMFA(ctx context.Context, p SessionPage, cred accounts.Credential, log *zap.Logger) error {
	required, err := p.Exists(ctx, joined(otpInputSelectors))
	if err != nil {
		return fmt.Errorf("failed to probe for code input: %w", err)
	}
	if !required {
		return nil
	}
	if cred.OTPSeed == "" {
		return fmt.Errorf("account requires a one-time code but no secret is configured")
	}

	attempts := o.cfg.OTPSubmitAttempts
	if attempts < 1 {
		attempts = 3
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		code, err := o.codes.GetCode(ctx, cred.OTPSeed)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Code generation failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		if !o.exec.Type(ctx, p, otpInputSelectors, code) {
			return fmt.Errorf("code input: %w", ErrActionFailed)
		}
		if err := o.exec.ClickAndNavigate(ctx, p, otpSubmitSelectors,
			o.cfg.NavigationTimeout, browser.IsBenignNavError); err != nil {
			return fmt.Errorf("code submission: %w", err)
		}

		// The input disappearing is the acceptance signal; still present
		// means the code was rejected.
		stillPresent, err := p.Exists(ctx, joined(otpInputSelectors))
		if err != nil {
			return fmt.Errorf("failed to verify code acceptance: %w", err)
		}
		if !stillPresent {
			log.Info("One-time code accepted", zap.Int("attempt", attempt))
			return nil
		}
		log.Warn("One-time code rejected, regenerating", zap.Int("attempt", attempt))
	}

	return ErrCodeRejected
}

// persistSession stores the cookie set once the target is confirmed reached.
func (o *Orchestrator) persistSession(ctx context.Context, p SessionPage, identifier string) error {
	cookies, err := p.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect session cookies: %w", err)
	}
	return o.store.Save(identifier, cookies)
}

// joined renders a candidate list as one querySelector group.
func joined(sel actions.Selector) string {
	return strings.Join(sel, ", ")
}
