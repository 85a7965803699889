// File: cmd/run.go
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mailpilot-cli/internal/accounts"
	"github.com/xkilldash9x/mailpilot-cli/internal/config"
	"github.com/xkilldash9x/mailpilot-cli/internal/diagnostics"
	"github.com/xkilldash9x/mailpilot-cli/internal/flow"
	"github.com/xkilldash9x/mailpilot-cli/internal/observability"
	"github.com/xkilldash9x/mailpilot-cli/internal/runner"
	"github.com/xkilldash9x/mailpilot-cli/internal/sessionstore"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <accounts.csv>",
		Short: "Processes a CSV batch of accounts through the login and safe-sender flow",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override config file and environment values.
			if err := viper.BindPFlag("runner.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			batchPath := args[0]
			creds, err := accounts.ReadCredentials(batchPath)
			if err != nil {
				return err
			}
			if len(creds) == 0 {
				return fmt.Errorf("no usable accounts in %q", batchPath)
			}

			store, err := sessionstore.New(cfg.Store.Dir, logger)
			if err != nil {
				return err
			}

			var capture *diagnostics.Capturer
			if cfg.Results.CaptureOnFailure {
				capture, err = diagnostics.New(cfg.Results.Dir, logger)
				if err != nil {
					return err
				}
			}

			accountRunner := runner.NewBrowserRunner(cfg, store, capture, logger)
			pool := runner.NewPool(cfg.Runner, accountRunner, logger)
			results := pool.Run(ctx, creds)

			return writeOutcomes(cfg, batchPath, creds, results, logger)
		},
	}

	runCmd.Flags().Int("concurrency", 0, "number of accounts processed in parallel")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	return runCmd
}

// writeOutcomes records the per-account results and the remaining-accounts
// file used to resume the batch.
func writeOutcomes(
	cfg *config.Config,
	batchPath string,
	creds []accounts.Credential,
	results []flow.RunResult,
	logger *zap.Logger,
) error {
	var good, bad []accounts.ResultRow
	succeeded := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Succeeded() {
			succeeded[r.Email] = true
			good = append(good, accounts.ResultRow{Email: r.Email})
		} else {
			bad = append(bad, accounts.ResultRow{Email: r.Email, Error: r.Err.Error()})
		}
	}

	if err := accounts.AppendResults(filepath.Join(cfg.Results.Dir, "succeeded.csv"), good); err != nil {
		return err
	}
	if err := accounts.AppendResults(filepath.Join(cfg.Results.Dir, "failed.csv"), bad); err != nil {
		return err
	}

	if len(succeeded) < len(creds) {
		remaining, err := accounts.WriteRemaining(batchPath, creds, succeeded)
		if err != nil {
			return err
		}
		logger.Info("Remaining accounts written", zap.String("path", remaining))
	}

	logger.Info("Batch results recorded",
		zap.Int("succeeded", len(good)),
		zap.Int("failed", len(bad)),
		zap.String("dir", cfg.Results.Dir))
	return nil
}
