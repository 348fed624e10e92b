package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/domain"
)

func TestReportErrorExitCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		out  string
	}{
		{name: "success", err: nil, code: exitOK},
		{name: "blocked", err: &exitError{code: exitBlocked, silent: true}, code: exitBlocked},
		{name: "usage", err: domain.UsageError{Msg: "invalid stage \"x\""}, code: exitFailure, out: "error: invalid stage \"x\"\n"},
		{name: "not found", err: fmt.Errorf("issue foo: %w", domain.ErrNotFound), code: exitFailure, out: "error: issue foo: not found\n"},
		{name: "other", err: errors.New("disk full"), code: exitFailure, out: "error: disk full\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := reportError(&buf, tc.err); got != tc.code {
				t.Fatalf("expected exit %d, got %d", tc.code, got)
			}
			if buf.String() != tc.out {
				t.Fatalf("unexpected output %q", buf.String())
			}
		})
	}
}

func TestReportErrorListsEveryReason(t *testing.T) {
	err := &domain.ValidationError{Subject: "issue foo", Target: "done", Reasons: []string{"owner is not set", "spec form is pending"}}
	var buf bytes.Buffer
	if code := reportError(&buf, err); code != exitFailure {
		t.Fatalf("expected exit 1, got %d", code)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two reasons, got %q", buf.String())
	}
	if lines[1] != "  - owner is not set" || lines[2] != "  - spec form is pending" {
		t.Fatalf("unexpected reasons: %q", lines[1:])
	}
}

func TestFlattenGroupsKeepsStageOrder(t *testing.T) {
	groups := []domain.StageGroup{
		{Stage: domain.StageBacklog, Issues: []domain.IssueSummary{{Name: "b"}, {Name: "a"}}},
		{Stage: domain.StageTodo, Issues: []domain.IssueSummary{}},
		{Stage: domain.StageDone, Issues: []domain.IssueSummary{{Name: "c"}}},
	}
	got := flattenGroups(groups)
	if len(got) != 3 || got[0].Name != "b" || got[1].Name != "a" || got[2].Name != "c" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if empty := flattenGroups(nil); empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestInvalidNamesLeaveWorkspaceUntouched(t *testing.T) {
	cases := []struct {
		name string
		cmd  func() *cobra.Command
		args []string
	}{
		{name: "move", cmd: moveCmd, args: []string{"foo", "bogus"}},
		{name: "list", cmd: listCmd, args: []string{"--stage", "bogus"}},
		{name: "spec status", cmd: specStatusCmd, args: []string{"foo", "form", "finished"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			workspace := t.TempDir()
			viper.Set("workspace", workspace)
			t.Cleanup(func() { viper.Set("workspace", "") })

			cmd := tc.cmd()
			cmd.SetArgs(tc.args)
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			err := cmd.ExecuteContext(context.Background())
			if !domain.IsUsage(err) {
				t.Fatalf("expected usage error, got %v", err)
			}
			if code := reportError(io.Discard, err); code != exitFailure {
				t.Fatalf("expected exit 1, got %d", code)
			}
			if _, statErr := os.Stat(filepath.Join(workspace, ".stageline")); !os.IsNotExist(statErr) {
				t.Fatalf("expected no .stageline directory, stat returned %v", statErr)
			}
		})
	}
}
