package tcr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"stageline/internal/config"
)

// CommandResult is the outcome of one external command.
type CommandResult struct {
	ExitCode int
	Output   string
}

// CommandRunner executes a shell command line. An error means the command could not
// be run at all; a non-zero exit is reported through ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, dir, command string) (CommandResult, error)
}

// ShellRunner runs commands through sh -c.
type ShellRunner struct {
	Env []string
}

func (r ShellRunner) Run(ctx context.Context, dir, command string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return CommandResult{ExitCode: exitErr.ExitCode(), Output: out.String()}, nil
	}
	if err != nil {
		return CommandResult{ExitCode: -1, Output: out.String()}, err
	}
	return CommandResult{Output: out.String()}, nil
}

// TargetResult is the outcome of testing one target.
type TargetResult struct {
	Target      string   `json:"target"`
	Passed      bool     `json:"passed"`
	TestsPassed bool     `json:"tests_passed"`
	Coverage    Coverage `json:"coverage,omitempty"`
	Failures    []string `json:"failures,omitempty"`
	RawOutput   string   `json:"raw_output,omitempty"`
	DurationMs  int64    `json:"duration_ms"`
}

// RunResult aggregates target results in target name order.
type RunResult struct {
	Targets []TargetResult `json:"targets"`
}

// Passed reports whether every target passed. An empty run passes.
func (r RunResult) Passed() bool {
	for _, t := range r.Targets {
		if !t.Passed {
			return false
		}
	}
	return true
}

// RawOutput concatenates target outputs with a header per target. The failure
// reasons of a target follow its output block.
func (r RunResult) RawOutput() string {
	var b bytes.Buffer
	for _, t := range r.Targets {
		fmt.Fprintf(&b, "==> %s\n", t.Target)
		b.WriteString(t.RawOutput)
		if len(t.RawOutput) > 0 && t.RawOutput[len(t.RawOutput)-1] != '\n' {
			b.WriteByte('\n')
		}
		for _, f := range t.Failures {
			fmt.Fprintf(&b, "failure: %s\n", f)
		}
	}
	return b.String()
}

// Adapter runs the configured test commands of each target.
type Adapter struct {
	Workspace  string
	Targets    map[string]config.Target
	Runner     CommandRunner
	ReadFile   func(string) ([]byte, error)
	// RemoveFile clears the coverage report before a coverage run.
	RemoveFile func(string) error
	Now        func() time.Time
	Logger     *slog.Logger
}

func NewAdapter(workspace string, cfg *config.Config) Adapter {
	return Adapter{
		Workspace:  workspace,
		Targets:    cfg.TCR.Targets,
		Runner:     ShellRunner{},
		ReadFile:   os.ReadFile,
		RemoveFile: os.Remove,
		Now:        time.Now,
		Logger:     slog.Default(),
	}
}

// Run tests every named target concurrently. A failure in one target never stops
// or alters another; each result is only read once its command has finished.
func (a Adapter) Run(ctx context.Context, names []string, withCoverage bool) RunResult {
	results := make([]TargetResult, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = a.runTarget(ctx, name, withCoverage)
			return nil
		})
	}
	_ = g.Wait()
	return RunResult{Targets: results}
}

func (a Adapter) runTarget(ctx context.Context, name string, withCoverage bool) (res TargetResult) {
	res.Target = name
	t, ok := a.Targets[name]
	if !ok {
		res.Failures = []string{fmt.Sprintf("unknown target %s", name)}
		return res
	}
	now := a.now
	start := now()
	defer func() { res.DurationMs = now().Sub(start).Milliseconds() }()

	dir := filepath.Join(a.Workspace, t.Dir)
	command := t.TestCommand
	if withCoverage && t.CoverageCommand != "" {
		command = t.CoverageCommand
	}
	reportPath := filepath.Join(dir, t.Coverage.Path)
	if withCoverage && t.Coverage.Path != "" {
		// a report left by an earlier run must not stand in for this one
		if err := a.removeFile(reportPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			res.Failures = append(res.Failures, fmt.Sprintf("clear coverage report %s: %v", t.Coverage.Path, err))
			return res
		}
	}
	a.log().Debug("running target", "target", name, "dir", dir, "command", command)
	out, err := a.Runner.Run(ctx, dir, command)
	res.RawOutput = out.Output
	switch {
	case err != nil:
		res.Failures = append(res.Failures, fmt.Sprintf("could not run %q: %v", command, err))
		return res
	case out.ExitCode != 0:
		res.Failures = append(res.Failures, fmt.Sprintf("tests failed (exit %d)", out.ExitCode))
		return res
	}
	res.TestsPassed = true
	if !withCoverage {
		res.Passed = true
		return res
	}

	data, err := a.ReadFile(reportPath)
	if err != nil {
		res.Failures = append(res.Failures, fmt.Sprintf("coverage report %s: %v", t.Coverage.Path, err))
		return res
	}
	cov, err := ParseCoverage(t.Coverage.Format, data)
	if err != nil {
		res.Failures = append(res.Failures, err.Error())
		return res
	}
	res.Coverage = cov
	res.Failures = append(res.Failures, belowThreshold(cov, t.Thresholds.Metrics())...)
	res.Passed = len(res.Failures) == 0
	return res
}

func (a Adapter) removeFile(path string) error {
	if a.RemoveFile != nil {
		return a.RemoveFile(path)
	}
	return os.Remove(path)
}

func (a Adapter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a Adapter) log() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
