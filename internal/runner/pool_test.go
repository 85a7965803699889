// File: internal/runner/pool_test.go
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mailpilot-cli/internal/accounts"
	"github.com/xkilldash9x/mailpilot-cli/internal/config"
	"github.com/xkilldash9x/mailpilot-cli/internal/flow"
)

// countingRunner records peak concurrency across account runs.
type countingRunner struct {
	mu      sync.Mutex
	active  int32
	peak    int32
	seen    []string
	runtime time.Duration
}

func (r *countingRunner) RunAccount(ctx context.Context, cred accounts.Credential) flow.RunResult {
	cur := atomic.AddInt32(&r.active, 1)
	defer atomic.AddInt32(&r.active, -1)

	r.mu.Lock()
	if cur > r.peak {
		r.peak = cur
	}
	r.seen = append(r.seen, cred.Email)
	r.mu.Unlock()

	time.Sleep(r.runtime)
	return flow.RunResult{Email: cred.Email}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &countingRunner{runtime: 10 * time.Millisecond}
	pool := NewPool(config.RunnerConfig{Concurrency: 2}, runner, zap.NewNop())

	var creds []accounts.Credential
	for _, e := range []string{"a", "b", "c", "d", "e", "f"} {
		creds = append(creds, accounts.Credential{Email: e + "@example.com"})
	}

	results := pool.Run(context.Background(), creds)

	require.Len(t, results, len(creds))
	assert.LessOrEqual(t, runner.peak, int32(2))
	for i, r := range results {
		assert.Equal(t, creds[i].Email, r.Email, "result order must follow batch order")
	}
}

func TestPoolDeduplicatesIdentifiers(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &countingRunner{}
	pool := NewPool(config.RunnerConfig{Concurrency: 4}, runner, zap.NewNop())

	results := pool.Run(context.Background(), []accounts.Credential{
		{Email: "dup@example.com", Password: "first"},
		{Email: "other@example.com"},
		{Email: "dup@example.com", Password: "second"},
	})

	require.Len(t, results, 2, "the same account must never run twice in one batch")
	assert.Len(t, runner.seen, 2)
}

func TestPoolLaunchPacingRespectsCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &countingRunner{}
	pool := NewPool(config.RunnerConfig{Concurrency: 1, LaunchInterval: time.Hour}, runner, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := pool.Run(ctx, []accounts.Credential{
		{Email: "a@example.com"},
		{Email: "b@example.com"},
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Error(t, r.Err)
		assert.Equal(t, "schedule", r.Stage)
	}
	assert.Empty(t, runner.seen, "no account may launch once the batch context is gone")
}
