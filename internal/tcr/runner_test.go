package tcr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageline/internal/config"
)

type scriptedRunner struct {
	mu      sync.Mutex
	results map[string]CommandResult
	errs    map[string]error
	calls   []string
}

func (s *scriptedRunner) Run(_ context.Context, dir, command string) (CommandResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, command)
	s.mu.Unlock()
	if err := s.errs[command]; err != nil {
		return CommandResult{ExitCode: -1}, err
	}
	return s.results[command], nil
}

func ptr(v float64) *float64 { return &v }

func twoTargets() map[string]config.Target {
	return map[string]config.Target{
		"frontend": {
			Paths:           []string{"src/"},
			Dir:             ".",
			TestCommand:     "fe-test",
			CoverageCommand: "fe-cov",
			Coverage:        config.Coverage{Format: config.CoverageIstanbul, Path: "coverage/summary.json"},
		},
		"backend": {
			Paths:           []string{"src-tauri/"},
			Dir:             "src-tauri",
			TestCommand:     "be-test",
			CoverageCommand: "be-cov",
			Coverage:        config.Coverage{Format: config.CoverageLCOV, Path: "lcov.info"},
			Thresholds:      config.Thresholds{Lines: ptr(100), Functions: ptr(100)},
		},
	}
}

func newTestAdapter(runner CommandRunner, files map[string]string) Adapter {
	return Adapter{
		Workspace: "/ws",
		Targets:   twoTargets(),
		Runner:    runner,
		ReadFile: func(p string) ([]byte, error) {
			if data, ok := files[filepath.ToSlash(p)]; ok {
				return []byte(data), nil
			}
			return nil, os.ErrNotExist
		},
		RemoveFile: func(string) error { return nil },
		Now:        func() time.Time { return time.Unix(0, 0) },
	}
}

const fullIstanbul = `{"total":{"lines":{"total":10,"pct":100},"functions":{"total":2,"pct":100}}}`

func TestRunCoverageBelowThresholdFailsAggregate(t *testing.T) {
	runner := &scriptedRunner{results: map[string]CommandResult{
		"fe-cov": {Output: "fe ok"},
		"be-cov": {Output: "be ok"},
	}}
	a := newTestAdapter(runner, map[string]string{
		"/ws/coverage/summary.json":  fullIstanbul,
		"/ws/src-tauri/lcov.info": "FNF:1\nFNH:1\nLF:25\nLH:23\n",
	})
	res := a.Run(context.Background(), []string{"backend", "frontend"}, true)

	require.Len(t, res.Targets, 2)
	be, fe := res.Targets[0], res.Targets[1]
	assert.Equal(t, "backend", be.Target)
	assert.True(t, be.TestsPassed)
	assert.False(t, be.Passed)
	assert.InDelta(t, 92.0, be.Coverage[MetricLines], 0.001)
	assert.Equal(t, []string{"lines coverage 92% below threshold 100%"}, be.Failures)

	assert.True(t, fe.Passed)
	assert.False(t, res.Passed())
}

func TestRunTargetsAreIndependent(t *testing.T) {
	runner := &scriptedRunner{
		results: map[string]CommandResult{"fe-test": {ExitCode: 1, Output: "FAIL App.test.ts"}, "be-test": {Output: "ok"}},
	}
	a := newTestAdapter(runner, nil)
	res := a.Run(context.Background(), []string{"backend", "frontend"}, false)
	assert.True(t, res.Targets[0].Passed)
	assert.False(t, res.Targets[1].Passed)
	assert.Equal(t, []string{"tests failed (exit 1)"}, res.Targets[1].Failures)
	assert.ElementsMatch(t, []string{"fe-test", "be-test"}, runner.calls)
	assert.Contains(t, res.RawOutput(), "==> frontend\nFAIL App.test.ts\n")
}

func TestRunReportsRunnerErrorsAndMissingReports(t *testing.T) {
	runner := &scriptedRunner{
		results: map[string]CommandResult{"fe-cov": {}},
		errs:    map[string]error{"be-cov": errors.New("sh: not found")},
	}
	a := newTestAdapter(runner, nil)
	res := a.Run(context.Background(), []string{"backend", "frontend", "mobile"}, true)
	require.Len(t, res.Targets, 3)
	assert.Contains(t, res.Targets[0].Failures[0], "could not run")
	assert.True(t, res.Targets[1].TestsPassed)
	assert.Contains(t, res.Targets[1].Failures[0], "coverage report coverage/summary.json")
	assert.Equal(t, []string{"unknown target mobile"}, res.Targets[2].Failures)
	assert.False(t, res.Passed())
}

// reportWritingRunner writes a coverage report for the commands listed in writes.
type reportWritingRunner struct {
	mu     sync.Mutex
	files  map[string]string
	writes map[string][2]string
}

func (r *reportWritingRunner) Run(_ context.Context, _, command string) (CommandResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.writes[command]; ok {
		r.files[w[0]] = w[1]
	}
	return CommandResult{Output: command + " ok"}, nil
}

func TestRunIgnoresStaleCoverageReport(t *testing.T) {
	runner := &reportWritingRunner{
		files: map[string]string{
			"/ws/coverage/summary.json": fullIstanbul,
			"/ws/src-tauri/lcov.info":   "FNF:1\nFNH:1\nLF:25\nLH:25\n",
		},
		writes: map[string][2]string{"be-cov": {"/ws/src-tauri/lcov.info", "FNF:1\nFNH:1\nLF:25\nLH:25\n"}},
	}
	a := newTestAdapter(runner, nil)
	a.ReadFile = func(p string) ([]byte, error) {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		if data, ok := runner.files[filepath.ToSlash(p)]; ok {
			return []byte(data), nil
		}
		return nil, os.ErrNotExist
	}
	a.RemoveFile = func(p string) error {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		delete(runner.files, filepath.ToSlash(p))
		return nil
	}

	res := a.Run(context.Background(), []string{"backend", "frontend"}, true)
	require.Len(t, res.Targets, 2)
	assert.True(t, res.Targets[0].Passed)
	fe := res.Targets[1]
	assert.True(t, fe.TestsPassed)
	assert.False(t, fe.Passed)
	require.Len(t, fe.Failures, 1)
	assert.Contains(t, fe.Failures[0], "coverage report coverage/summary.json")
	assert.False(t, res.Passed())
}

func TestRunFailsWhenReportCannotBeCleared(t *testing.T) {
	runner := &scriptedRunner{results: map[string]CommandResult{"fe-cov": {}}}
	a := newTestAdapter(runner, map[string]string{"/ws/coverage/summary.json": fullIstanbul})
	a.RemoveFile = func(string) error { return os.ErrPermission }

	res := a.Run(context.Background(), []string{"frontend"}, true)
	assert.False(t, res.Passed())
	assert.Contains(t, res.Targets[0].Failures[0], "clear coverage report")
	assert.Empty(t, runner.calls)
}

func TestRunWithoutTargetsPasses(t *testing.T) {
	a := newTestAdapter(&scriptedRunner{}, nil)
	assert.True(t, a.Run(context.Background(), nil, true).Passed())
}
