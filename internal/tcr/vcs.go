package tcr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// VCS is the version-control capability a check needs.
type VCS interface {
	ChangedFiles(ctx context.Context) ([]string, error)
	Commit(ctx context.Context, message string) (string, error)
}

// GitVCS drives the git CLI in Dir.
type GitVCS struct {
	Dir string
}

// ChangedFiles lists paths that differ from HEAD, including untracked files.
// In a repository without commits every tracked or untracked file counts as changed.
// The unified diff is cross-checked with --name-only so entries without a patch
// body, such as mode-only changes, are not lost.
func (g GitVCS) ChangedFiles(ctx context.Context) ([]string, error) {
	if _, err := g.git(ctx, "rev-parse", "--verify", "--quiet", "HEAD"); err != nil {
		out, err := g.git(ctx, "ls-files", "-z", "--cached", "--others", "--exclude-standard")
		if err != nil {
			return nil, err
		}
		return uniqueSorted(splitNUL(out)), nil
	}
	out, err := g.git(ctx, "diff", "HEAD", "--no-color", "--no-ext-diff", "--find-renames")
	if err != nil {
		return nil, err
	}
	files, err := DiffPaths(out)
	if err != nil {
		return nil, err
	}
	names, err := g.git(ctx, "diff", "HEAD", "--name-only", "-z", "--find-renames")
	if err != nil {
		return nil, err
	}
	untracked, err := g.git(ctx, "ls-files", "-z", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	files = append(files, splitNUL(names)...)
	return uniqueSorted(append(files, splitNUL(untracked)...)), nil
}

// Commit stages everything and commits, returning the new commit hash.
func (g GitVCS) Commit(ctx context.Context, message string) (string, error) {
	if _, err := g.git(ctx, "add", "-A"); err != nil {
		return "", err
	}
	if _, err := g.git(ctx, "commit", "--quiet", "-m", message); err != nil {
		return "", err
	}
	out, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (g GitVCS) git(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-c", "core.quotePath=false"}, args...)...)
	cmd.Dir = g.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// DiffPaths returns the paths touched by a unified multi-file diff. Deleted files are
// reported by their old name, everything else by its new name.
func DiffPaths(unified []byte) ([]string, error) {
	if len(bytes.TrimSpace(unified)) == 0 {
		return nil, nil
	}
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(unified)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	var paths []string
	for _, fd := range fileDiffs {
		name := strings.TrimPrefix(fd.NewName, "b/")
		if fd.NewName == "/dev/null" || fd.NewName == "" {
			name = strings.TrimPrefix(fd.OrigName, "a/")
		}
		if name != "" && name != "/dev/null" {
			paths = append(paths, name)
		}
	}
	return paths, nil
}

func splitNUL(out []byte) []string {
	var res []string
	for _, p := range strings.Split(string(out), "\x00") {
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}

func uniqueSorted(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	res := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		res = append(res, p)
	}
	sort.Strings(res)
	return res
}
