// File: internal/flow/postlogin.go
package flow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mailpilot-cli/internal/actions"
)

// Junk-mail settings selectors. The add button carries no stable id; the
// command-bar class is the narrowest hook the settings pane offers.
var (
	safeSendersHeadingSelector = `span[id="options-full-safeSendersDomainsV2"]`

	addSenderSelectors = actions.Selector{
		"button.ms-Button--command",
	}
	senderInputSelectors = actions.Selector{
		`input[placeholder="Example: abc123@fourthcoffee.com for sender, fourthcoffee.com for domain."]`,
		`input[type="text"]`,
	}
	saveSelectors = actions.Selector{
		".Xut6I button",
		`button[title="Save"]`,
	}
)

// addSafeSender performs the post-login configuration step: open the junk
// mail settings and register the configured sender as safe. Idempotent: when
// the sender is already listed, no add/save sub-sequence runs.
func (o *Orchestrator) addSafeSender(ctx context.Context, p Page) error {
	if err := p.Navigate(ctx, o.cfg.JunkSettingsURL); err != nil {
		return fmt.Errorf("failed to open junk mail settings: %w", err)
	}
	if err := p.WaitVisible(ctx, safeSendersHeadingSelector, o.cfg.SelectorTimeout); err != nil {
		return fmt.Errorf("safe senders section never rendered: %w", err)
	}

	body, err := p.BodyText(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect junk mail settings: %w", err)
	}
	if strings.Contains(strings.ToLower(body), strings.ToLower(o.cfg.SafeSender)) {
		o.logger.Info("Safe sender already configured", zap.String("sender", o.cfg.SafeSender))
		return nil
	}

	if !o.exec.Click(ctx, p, addSenderSelectors) {
		return fmt.Errorf("add-sender button: %w", ErrActionFailed)
	}
	if !o.exec.Type(ctx, p, senderInputSelectors, o.cfg.SafeSender) {
		return fmt.Errorf("sender input: %w", ErrActionFailed)
	}
	if err := p.PressEnter(ctx); err != nil {
		return fmt.Errorf("failed to commit sender entry: %w", err)
	}

	// The save bar only appears while the change is pending. When it is gone
	// the pane already committed the entry.
	if !o.exec.Click(ctx, p, saveSelectors) {
		o.logger.Debug("Save control absent after entry, treating as committed")
		return nil
	}

	o.logger.Info("Safe sender added", zap.String("sender", o.cfg.SafeSender))
	return nil
}
