package tcr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"stageline/internal/config"
)

type Status string

const (
	StatusNoop   Status = "noop"
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// TestRunner runs the tests of the named targets.
type TestRunner interface {
	Run(ctx context.Context, names []string, withCoverage bool) RunResult
}

// Checker runs one check: detect, classify, test with coverage, then gate.
type Checker struct {
	Detector Detector
	VCS      VCS
	Runner   TestRunner
	Gate     Gate
	Logger   *slog.Logger
}

// NewChecker wires the git, shell and file-backed implementations for a workspace.
func NewChecker(workspace string, cfg *config.Config, logger *slog.Logger) Checker {
	vcs := GitVCS{Dir: workspace}
	adapter := NewAdapter(workspace, cfg)
	adapter.Logger = logger
	return Checker{
		Detector: NewDetector(cfg.TCR.Targets),
		VCS:      vcs,
		Runner:   adapter,
		Gate: Gate{
			Store:     NewFileStore(workspace),
			VCS:       vcs,
			Threshold: cfg.TCR.FailureThreshold,
			Prefix:    cfg.TCR.CommitPrefix,
		},
		Logger: logger,
	}
}

// CheckResult is the outcome of one invocation. A failed run is a result, not an error.
type CheckResult struct {
	Status    Status      `json:"status"`
	Step      string      `json:"step,omitempty"`
	Label     string      `json:"label"`
	ChangeSet ChangeSet   `json:"changes"`
	Run       RunResult   `json:"run"`
	Gate      *GateResult `json:"gate,omitempty"`
}

// Blocked reports whether the check failed.
func (r CheckResult) Blocked() bool { return r.Status == StatusFailed }

// Check runs the pipeline once. Errors are reserved for VCS and persistence failures.
func (c Checker) Check(ctx context.Context, step string) (CheckResult, error) {
	res := CheckResult{Step: step}
	files, err := c.VCS.ChangedFiles(ctx)
	if err != nil {
		return res, fmt.Errorf("detect changes: %w", err)
	}
	res.ChangeSet = c.Detector.Classify(files)
	res.Label = res.ChangeSet.Label()
	c.log().Debug("changes classified", "files", len(res.ChangeSet.Files), "targets", res.Label, "unmatched", len(res.ChangeSet.Unmatched))
	if res.ChangeSet.Empty() {
		res.Status = StatusNoop
		return res, nil
	}

	res.Run = c.Runner.Run(ctx, res.ChangeSet.Targets(), true)
	gate, err := c.Gate.Check(ctx, res.Run, step)
	if err != nil {
		return res, err
	}
	res.Gate = &gate
	if gate.Passed {
		res.Status = StatusPassed
	} else {
		res.Status = StatusFailed
	}
	c.log().Info("check finished", "status", res.Status, "streak", gate.Streak, "commit", gate.CommitID)
	return res, nil
}

func (c Checker) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Format renders the result condensed, or with every target's raw output when verbose.
func (r CheckResult) Format(verbose bool) string {
	var b strings.Builder
	if r.Status == StatusNoop {
		b.WriteString("- nothing to check: no changes in any target\n")
		return b.String()
	}
	fmt.Fprintf(&b, "check %s [%s]\n", stepLabel(r.Step), r.Label)
	for i, line := range r.Gate.Summary {
		icon := "✓"
		if i < len(r.Run.Targets) && !r.Run.Targets[i].Passed {
			icon = "✗"
		}
		fmt.Fprintf(&b, "  %s %s\n", icon, line)
	}
	if r.Gate.Passed {
		fmt.Fprintf(&b, "✓ committed %s %q\n", shortID(r.Gate.CommitID), r.Gate.Message)
	} else {
		fmt.Fprintf(&b, "✗ blocked: failure streak %d (full output: stl tcr state --output)\n", r.Gate.Streak)
		if r.Gate.Reconsider {
			fmt.Fprintf(&b, "⚠ %d consecutive failures: step back and reconsider the approach\n", r.Gate.Streak)
		}
	}
	if verbose {
		b.WriteString("\n")
		b.WriteString(r.Run.RawOutput())
	}
	return b.String()
}

func stepLabel(step string) string {
	if strings.TrimSpace(step) == "" {
		return "(unnamed)"
	}
	return step
}

func shortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}
