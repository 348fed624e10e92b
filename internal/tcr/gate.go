package tcr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultFailureThreshold = 5
	DefaultCommitPrefix     = "tcr"
)

// Gate commits passing work and records failing work.
type Gate struct {
	Store     StateStore
	VCS       VCS
	Threshold int
	Prefix    string
	Now       func() time.Time
}

// GateResult is what the gate decided for one run.
type GateResult struct {
	RunID      string    `json:"run_id"`
	Passed     bool      `json:"passed"`
	CommitID   string    `json:"commit_id,omitempty"`
	Message    string    `json:"message,omitempty"`
	Streak     int       `json:"failure_streak"`
	Reconsider bool      `json:"reconsider"`
	State      GateState `json:"state"`
	Summary    []string  `json:"summary"`
}

// CommitMessage embeds step in the configured prefix.
func (g Gate) CommitMessage(step string) string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = DefaultCommitPrefix
	}
	step = strings.TrimSpace(step)
	if step == "" {
		step = "checkpoint"
	}
	return prefix + ": " + step
}

// Check commits when run passed and resets the failure streak; otherwise it saves
// the full output and increments the streak without committing. The commit happens
// before the state write, so a failed commit leaves the previous state untouched.
func (g Gate) Check(ctx context.Context, run RunResult, step string) (GateResult, error) {
	res := GateResult{RunID: uuid.NewString(), Passed: run.Passed(), Summary: Summarize(run)}
	ts := g.now().UTC().Format(time.RFC3339)

	if res.Passed {
		res.Message = g.CommitMessage(step)
		id, err := g.VCS.Commit(ctx, res.Message)
		if err != nil {
			return res, fmt.Errorf("commit: %w", err)
		}
		res.CommitID = id
		st, err := g.Store.Update(ctx, func(s *RunState) error {
			*s = RunState{
				RunID:         res.RunID,
				LastOutcome:   OutcomePass,
				FailureStreak: 0,
				LastStepName:  step,
				LastCommit:    id,
				UpdatedAt:     ts,
			}
			return nil
		})
		if err != nil {
			return res, err
		}
		res.Streak, res.State = st.FailureStreak, st.Gate()
		return res, nil
	}

	st, err := g.Store.Update(ctx, func(s *RunState) error {
		s.RunID = res.RunID
		s.LastOutcome = OutcomeFail
		s.FailureStreak++
		s.LastFullOutput = run.RawOutput()
		s.LastStepName = step
		s.UpdatedAt = ts
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Streak, res.State = st.FailureStreak, st.Gate()
	res.Reconsider = res.Streak >= g.threshold()
	return res, nil
}

func (g Gate) threshold() int {
	if g.Threshold < 1 {
		return DefaultFailureThreshold
	}
	return g.Threshold
}

func (g Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Summarize condenses a run into one line per target.
func Summarize(run RunResult) []string {
	lines := make([]string, 0, len(run.Targets))
	for _, t := range run.Targets {
		status := "PASS"
		if !t.Passed {
			status = "FAIL"
		}
		parts := []string{fmt.Sprintf("%s: %s", t.Target, status)}
		if len(t.Coverage) > 0 {
			metrics := make([]string, 0, len(t.Coverage))
			for m := range t.Coverage {
				metrics = append(metrics, m)
			}
			sort.Strings(metrics)
			cov := make([]string, 0, len(metrics))
			for _, m := range metrics {
				cov = append(cov, fmt.Sprintf("%s %s%%", m, formatPct(t.Coverage[m])))
			}
			parts = append(parts, "("+strings.Join(cov, ", ")+")")
		}
		if len(t.Failures) > 0 {
			parts = append(parts, "- "+strings.Join(t.Failures, "; "))
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines
}
