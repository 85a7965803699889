// File: internal/otp/provider.go
// Package otp generates time-based one-time codes by driving an external
// generator page in an isolated browser tab, keeping the authentication page's
// state untouched while the code is produced.
package otp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mailpilot-cli/internal/config"
)

// ErrCodeGenerationTimeout is returned when the generator page never produced
// a usable code within the polling budget.
var ErrCodeGenerationTimeout = errors.New("one-time code generation timed out")

// codePattern accepts exactly six digits, nothing else.
var codePattern = regexp.MustCompile(`^\d{6}$`)

// CodePage is the tab surface the provider drives. Implemented by
// browser.Page; tests substitute fakes.
type CodePage interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	TypeText(ctx context.Context, selector, text string) error
	ClickNode(ctx context.Context, selector string) error
	ReadValue(ctx context.Context, selector string) (string, error)
}

// PageOpener creates an isolated tab for one generation run. The release
// function closes the tab and is safe to call more than once.
type PageOpener interface {
	OpenPage(ctx context.Context) (CodePage, func(), error)
}

// Generator page selectors.
const (
	seedInputSelector = "#listToken"
	submitSelector    = "#submit"
	outputSelector    = "#output"
)

// Provider generates codes from a shared secret via the configured generator
// endpoint.
type Provider struct {
	cfg    config.OTPConfig
	opener PageOpener
	logger *zap.Logger
}

// NewProvider returns a Provider over the given tab opener.
func NewProvider(cfg config.OTPConfig, opener PageOpener, logger *zap.Logger) *Provider {
	if cfg.PollAttempts < 1 {
		cfg.PollAttempts = 15
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Provider{
		cfg:    cfg,
		opener: opener,
		logger: logger.Named("otp"),
	}
}

// GetCode opens a fresh tab, submits the secret to the generator and polls for
// the resulting code. The tab is closed on every exit path. The generator
// echoes the secret alongside the code ("seed|123456|..."); only a well-formed
// six-digit code is ever returned.
func (p *Provider) GetCode(ctx context.Context, secret string) (string, error) {
	page, release, err := p.opener.OpenPage(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open code generator tab: %w", err)
	}
	defer release()

	if err := page.Navigate(ctx, p.cfg.Endpoint); err != nil {
		return "", fmt.Errorf("failed to load code generator: %w", err)
	}
	if err := page.WaitVisible(ctx, seedInputSelector, 10*time.Second); err != nil {
		return "", fmt.Errorf("code generator input never appeared: %w", err)
	}
	if err := page.TypeText(ctx, seedInputSelector, secret); err != nil {
		return "", fmt.Errorf("failed to enter secret: %w", err)
	}
	if err := page.ClickNode(ctx, submitSelector); err != nil {
		return "", fmt.Errorf("failed to submit secret: %w", err)
	}

	for attempt := 1; attempt <= p.cfg.PollAttempts; attempt++ {
		raw, err := page.ReadValue(ctx, outputSelector)
		if err != nil {
			p.logger.Debug("Output poll failed", zap.Int("attempt", attempt), zap.Error(err))
		} else if code, ok := extractCode(raw); ok {
			p.logger.Debug("One-time code generated", zap.Int("attempt", attempt))
			return code, nil
		}

		select {
		case <-time.After(p.cfg.PollInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", ErrCodeGenerationTimeout
}

// extractCode parses the generator's pipe-delimited output and validates the
// code field.
func extractCode(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	parts := strings.Split(raw, "|")
	if len(parts) < 2 {
		return "", false
	}
	code := strings.TrimSpace(parts[1])
	if !codePattern.MatchString(code) {
		return "", false
	}
	return code, true
}
