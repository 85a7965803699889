// File: internal/runner/pool.go
// Package runner schedules account runs over a bounded worker pool. Each
// account gets its own exclusive browser session; the pool only bounds how
// many exist at once and paces their launches.
package runner

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/mailpilot-cli/internal/accounts"
	"github.com/xkilldash9x/mailpilot-cli/internal/config"
	"github.com/xkilldash9x/mailpilot-cli/internal/flow"
)

// AccountRunner executes the whole login flow for one account and always
// returns a result, never panics outward.
type AccountRunner interface {
	RunAccount(ctx context.Context, cred accounts.Credential) flow.RunResult
}

// Pool fans a credential batch out over a bounded number of workers.
type Pool struct {
	cfg     config.RunnerConfig
	runner  AccountRunner
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewPool returns a Pool. A zero LaunchInterval disables launch pacing.
func NewPool(cfg config.RunnerConfig, runner AccountRunner, logger *zap.Logger) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	var limiter *rate.Limiter
	if cfg.LaunchInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.LaunchInterval), 1)
	}
	return &Pool{
		cfg:     cfg,
		runner:  runner,
		limiter: limiter,
		logger:  logger.Named("runner"),
	}
}

// Run processes the batch and returns exactly one result per unique account.
// Duplicate identifiers are dropped up front: the cookie store holds one file
// per identifier and concurrent runs for the same account would race on it.
func (p *Pool) Run(ctx context.Context, creds []accounts.Credential) []flow.RunResult {
	batch := dedupe(creds)
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID))

	log.Info("Batch started",
		zap.Int("accounts", len(batch)),
		zap.Int("dropped_duplicates", len(creds)-len(batch)),
		zap.Int("concurrency", p.cfg.Concurrency))

	results := make([]flow.RunResult, len(batch))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, cred := range batch {
		i, cred := i, cred
		g.Go(func() error {
			if err := p.pace(ctx); err != nil {
				results[i] = flow.RunResult{Email: cred.Email, Stage: "schedule", Err: err}
				return nil
			}
			results[i] = p.runner.RunAccount(ctx, cred)
			return nil
		})
	}
	// Workers never return errors; outcomes live in their result slots.
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	log.Info("Batch finished",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded))
	return results
}

// pace spaces browser launches out so a batch start does not spawn every
// Chromium process at once.
func (p *Pool) pace(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// dedupe keeps the first occurrence of each identifier, preserving order.
func dedupe(creds []accounts.Credential) []accounts.Credential {
	seen := make(map[string]bool, len(creds))
	out := make([]accounts.Credential, 0, len(creds))
	for _, c := range creds {
		if seen[c.Email] {
			continue
		}
		seen[c.Email] = true
		out = append(out, c)
	}
	return out
}
