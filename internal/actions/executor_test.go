// File: internal/actions/executor_test.go
package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTarget scripts the page primitives per selector.
type fakeTarget struct {
	present map[string]bool

	nodeErr   error
	scriptErr error
	pointErr  error
	typeErr   error

	nodeClicks   int
	scriptClicks int
	pointClicks  int
	typed        []string
	navErrs      []error
	navCalls     int
}

func (f *fakeTarget) Exists(_ context.Context, sel string) (bool, error) {
	return f.present[sel], nil
}

func (f *fakeTarget) ClickNode(_ context.Context, sel string) error {
	f.nodeClicks++
	return f.nodeErr
}

func (f *fakeTarget) ClickScript(_ context.Context, sel string) error {
	f.scriptClicks++
	return f.scriptErr
}

func (f *fakeTarget) ClickPoint(_ context.Context, sel string) error {
	f.pointClicks++
	return f.pointErr
}

func (f *fakeTarget) TypeText(_ context.Context, sel, text string) error {
	f.typed = append(f.typed, text)
	return f.typeErr
}

func (f *fakeTarget) WaitNavigation(_ context.Context, _ time.Duration) error {
	f.navCalls++
	if f.navCalls <= len(f.navErrs) {
		return f.navErrs[f.navCalls-1]
	}
	return nil
}

func fastExecutor(t *testing.T) *Executor {
	t.Helper()
	return NewExecutor(Config{MaxAttempts: 3, RetryDelay: time.Millisecond}, zap.NewNop())
}

func TestClickFirstPresentCandidateWins(t *testing.T) {
	target := &fakeTarget{present: map[string]bool{"#fallback": true}}
	exec := fastExecutor(t)

	ok := exec.Click(context.Background(), target, Selector{"#primary", "#fallback"})

	require.True(t, ok)
	assert.Equal(t, 1, target.nodeClicks)
}

func TestClickEscalatesStrategies(t *testing.T) {
	target := &fakeTarget{
		present:   map[string]bool{"#btn": true},
		nodeErr:   errors.New("node not clickable"),
		scriptErr: errors.New("script blocked"),
	}
	exec := fastExecutor(t)

	ok := exec.Click(context.Background(), target, One("#btn"))

	require.True(t, ok, "third strategy should have landed the click")
	assert.Equal(t, 1, target.nodeClicks)
	assert.Equal(t, 1, target.scriptClicks)
	assert.Equal(t, 1, target.pointClicks)
}

func TestClickExhaustsAttempts(t *testing.T) {
	target := &fakeTarget{
		present:   map[string]bool{"#btn": true},
		nodeErr:   errors.New("nope"),
		scriptErr: errors.New("nope"),
		pointErr:  errors.New("nope"),
	}
	exec := fastExecutor(t)

	assert.False(t, exec.Click(context.Background(), target, One("#btn")))
}

func TestClickAbsentSelectorNeverPanics(t *testing.T) {
	target := &fakeTarget{present: map[string]bool{}}
	exec := fastExecutor(t)

	assert.False(t, exec.Click(context.Background(), target, One("#ghost")))
	assert.Zero(t, target.nodeClicks)
}

func TestTypeFallsBackAcrossCandidates(t *testing.T) {
	target := &fakeTarget{present: map[string]bool{`input[name="loginfmt"]`: true}}
	exec := fastExecutor(t)

	ok := exec.Type(context.Background(), target,
		Selector{"#i0116", `input[name="loginfmt"]`}, "user@example.com")

	require.True(t, ok)
	assert.Equal(t, []string{"user@example.com"}, target.typed)
}

func TestClickAndNavigateSwallowsBenignRace(t *testing.T) {
	benign := errors.New("page load error net::ERR_ABORTED")
	target := &fakeTarget{
		present: map[string]bool{"#submit": true},
		navErrs: []error{benign},
	}
	exec := fastExecutor(t)

	err := exec.ClickAndNavigate(context.Background(), target, One("#submit"),
		time.Millisecond, func(err error) bool { return errors.Is(err, benign) })

	require.NoError(t, err)
	assert.Equal(t, 2, target.navCalls, "a benign race should retry the click+wait pair")
}

func TestClickAndNavigatePropagatesRealErrors(t *testing.T) {
	boom := errors.New("tab crashed")
	target := &fakeTarget{
		present: map[string]bool{"#submit": true},
		navErrs: []error{boom},
	}
	exec := fastExecutor(t)

	err := exec.ClickAndNavigate(context.Background(), target, One("#submit"),
		time.Millisecond, func(error) bool { return false })

	assert.ErrorIs(t, err, boom)
}

func TestClickAndNavigateFailedClick(t *testing.T) {
	target := &fakeTarget{present: map[string]bool{}}
	exec := fastExecutor(t)

	err := exec.ClickAndNavigate(context.Background(), target, One("#ghost"),
		time.Millisecond, nil)

	assert.ErrorIs(t, err, ErrClickFailed)
}

func TestClickHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	target := &fakeTarget{present: map[string]bool{"#btn": true}}
	exec := fastExecutor(t)

	assert.False(t, exec.Click(ctx, target, One("#btn")))
	assert.Zero(t, target.nodeClicks)
}
