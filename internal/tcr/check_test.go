package tcr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageline/internal/config"
)

type cannedRunner struct {
	result RunResult
	names  []string
	cov    bool
}

func (c *cannedRunner) Run(_ context.Context, names []string, withCoverage bool) RunResult {
	c.names, c.cov = names, withCoverage
	return c.result
}

func newTestChecker(vcs *fakeVCS, runner *cannedRunner, store StateStore) Checker {
	return Checker{
		Detector: NewDetector(config.Default("p").TCR.Targets),
		VCS:      vcs,
		Runner:   runner,
		Gate:     Gate{Store: store, VCS: vcs, Prefix: "tcr"},
	}
}

func TestCheckNoChangesIsNoop(t *testing.T) {
	runner := &cannedRunner{}
	vcs := &fakeVCS{changed: []string{"README.md"}}
	res, err := newTestChecker(vcs, runner, &MemoryStore{}).Check(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, StatusNoop, res.Status)
	assert.False(t, res.Blocked())
	assert.Nil(t, runner.names)
	assert.Empty(t, vcs.messages)
	assert.Contains(t, res.Format(false), "nothing to check")
}

func TestCheckPassCommits(t *testing.T) {
	runner := &cannedRunner{result: passingRun()}
	vcs := &fakeVCS{changed: []string{"src/App.tsx"}}
	res, err := newTestChecker(vcs, runner, &MemoryStore{}).Check(context.Background(), "login")
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, res.Status)
	assert.Equal(t, []string{"frontend"}, runner.names)
	assert.True(t, runner.cov)
	assert.Equal(t, []string{"tcr: login"}, vcs.messages)
	out := res.Format(false)
	assert.Contains(t, out, "check login [frontend]")
	assert.Contains(t, out, "✓ committed c0ffee1")
}

func TestCheckFailureBlocksAndFormats(t *testing.T) {
	runner := &cannedRunner{result: failingRun()}
	vcs := &fakeVCS{changed: []string{"src/App.tsx", "src-tauri/src/lib.rs"}}
	store := &MemoryStore{state: RunState{FailureStreak: 4}}
	res, err := newTestChecker(vcs, runner, store).Check(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.Blocked())
	assert.Equal(t, "both", res.Label)
	assert.Empty(t, vcs.messages)

	condensed := res.Format(false)
	assert.Contains(t, condensed, "✗ backend: FAIL")
	assert.Contains(t, condensed, "✓ frontend: PASS")
	assert.Contains(t, condensed, "failure streak 5")
	assert.Contains(t, condensed, "reconsider the approach")
	assert.NotContains(t, condensed, "test result: ok")

	assert.Contains(t, res.Format(true), "==> backend\ntest result: ok")
}

func TestCheckPropagatesVCSErrors(t *testing.T) {
	vcs := &fakeVCS{changeErr: errors.New("not a git repository")}
	_, err := newTestChecker(vcs, &cannedRunner{}, &MemoryStore{}).Check(context.Background(), "")
	assert.ErrorContains(t, err, "not a git repository")
}
