package tcr

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"stageline/internal/db"
	"stageline/internal/domain"
)

type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// GateState is derived from the failure streak: blocked while the last check failed.
type GateState string

const (
	GateArmed   GateState = "armed"
	GateBlocked GateState = "blocked"
)

// RunState is the durable record of the most recent check.
type RunState struct {
	RunID          string  `json:"run_id,omitempty"`
	LastOutcome    Outcome `json:"last_outcome,omitempty"`
	FailureStreak  int     `json:"failure_streak"`
	LastFullOutput string  `json:"last_full_output,omitempty"`
	LastStepName   string  `json:"last_step_name,omitempty"`
	LastCommit     string  `json:"last_commit,omitempty"`
	UpdatedAt      string  `json:"updated_at,omitempty"`
}

func (s RunState) Gate() GateState {
	if s.FailureStreak > 0 {
		return GateBlocked
	}
	return GateArmed
}

// StateStore persists RunState. Update runs fn as one read-modify-write cycle.
type StateStore interface {
	Load(ctx context.Context) (RunState, error)
	Update(ctx context.Context, fn func(*RunState) error) (RunState, error)
}

const (
	stateFileName = "tcr-state.json"
	lockFileName  = "tcr-state.lock"
)

// FileStore keeps RunState as JSON in the workspace state directory.
type FileStore struct {
	Path     string
	LockPath string
}

func NewFileStore(workspace string) FileStore {
	dir := db.Dir(workspace)
	return FileStore{Path: filepath.Join(dir, stateFileName), LockPath: filepath.Join(dir, lockFileName)}
}

func (f FileStore) Load(_ context.Context) (RunState, error) {
	return f.read()
}

// Update holds an exclusive lock on LockPath for the whole cycle and replaces the
// state file atomically, so readers never observe a partial write.
func (f FileStore) Update(_ context.Context, fn func(*RunState) error) (RunState, error) {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return RunState{}, domain.Persistence("create state dir", err)
	}
	unlock, err := lockFile(f.LockPath)
	if err != nil {
		return RunState{}, domain.Persistence("lock run state", err)
	}
	defer unlock()

	st, err := f.read()
	if err != nil {
		return RunState{}, err
	}
	if err := fn(&st); err != nil {
		return RunState{}, err
	}
	if err := f.write(st); err != nil {
		return RunState{}, err
	}
	return st, nil
}

func (f FileStore) read() (RunState, error) {
	var st RunState
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, domain.Persistence("read run state", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, domain.Persistence("decode run state "+f.Path, err)
	}
	return st, nil
}

func (f FileStore) write(st RunState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return domain.Persistence("encode run state", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), stateFileName+".*.tmp")
	if err != nil {
		return domain.Persistence("write run state", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return domain.Persistence("write run state", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.Persistence("sync run state", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.Persistence("write run state", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return domain.Persistence("replace run state", err)
	}
	return nil
}

// MemoryStore keeps RunState in memory.
type MemoryStore struct {
	mu    sync.Mutex
	state RunState
}

func (m *MemoryStore) Load(context.Context) (RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryStore) Update(_ context.Context, fn func(*RunState) error) (RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state
	if err := fn(&st); err != nil {
		return RunState{}, err
	}
	m.state = st
	return st, nil
}
