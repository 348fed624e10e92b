package tcr

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/src/App.tsx b/src/App.tsx
index 1111111..2222222 100644
--- a/src/App.tsx
+++ b/src/App.tsx
@@ -1,2 +1,2 @@
-export const a = 1;
+export const a = 2;
 export const b = 3;
diff --git a/src-tauri/src/old.rs b/src-tauri/src/old.rs
deleted file mode 100644
index 3333333..0000000
--- a/src-tauri/src/old.rs
+++ /dev/null
@@ -1 +0,0 @@
-fn old() {}
diff --git a/src/new.ts b/src/new.ts
new file mode 100644
index 0000000..4444444
--- /dev/null
+++ b/src/new.ts
@@ -0,0 +1 @@
+export {};
`

func TestDiffPaths(t *testing.T) {
	paths, err := DiffPaths([]byte(sampleDiff))
	require.NoError(t, err)
	assert.Equal(t, []string{"src/App.tsx", "src-tauri/src/old.rs", "src/new.ts"}, paths)

	empty, err := DiffPaths(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func newGitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	runGit(t, dir, "init", "--quiet")
	runGit(t, dir, "config", "user.email", "dev@example.com")
	runGit(t, dir, "config", "user.name", "dev")
	runGit(t, dir, "config", "commit.gpgsign", "false")
	runGit(t, dir, "config", "core.fileMode", "true")
	return dir
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGitChangedFilesWithoutHead(t *testing.T) {
	dir := newGitRepo(t)
	writeFile(t, dir, ".gitignore", "*.log\n")
	writeFile(t, dir, "src/a.ts", "export const a = 1;\n")
	writeFile(t, dir, "src/b.ts", "export const b = 1;\n")
	writeFile(t, dir, "debug.log", "noise\n")
	runGit(t, dir, "add", "src/b.ts")

	vcs := GitVCS{Dir: dir}
	files, err := vcs.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "src/a.ts", "src/b.ts"}, files)

	hash, err := vcs.Commit(context.Background(), "tcr: first")
	require.NoError(t, err)
	assert.Len(t, hash, 40)
	assert.Equal(t, runGit(t, dir, "rev-parse", "HEAD"), hash)
	assert.Equal(t, "tcr: first", runGit(t, dir, "log", "-1", "--format=%s"))

	files, err = vcs.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestGitChangedFilesAgainstHead(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not tracked on windows")
	}
	dir := newGitRepo(t)
	writeFile(t, dir, ".gitignore", "*.log\n")
	writeFile(t, dir, "src/edit.ts", "export const e = 1;\n")
	writeFile(t, dir, "src/del.ts", "export const d = 1;\n")
	writeFile(t, dir, "src/old.ts", "export const moved = 'a fairly long line so rename detection has content';\n")
	writeFile(t, dir, "src/mode.sh", "echo hi\n")
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "--quiet", "-m", "init")

	writeFile(t, dir, "src/edit.ts", "export const e = 2;\n")
	require.NoError(t, os.Remove(filepath.Join(dir, "src", "del.ts")))
	runGit(t, dir, "mv", "src/old.ts", "src/renamed.ts")
	require.NoError(t, os.Chmod(filepath.Join(dir, "src", "mode.sh"), 0o755))
	writeFile(t, dir, "src/untracked.ts", "export {};\n")
	writeFile(t, dir, "src/é.ts", "export {};\n")
	writeFile(t, dir, "build.log", "noise\n")

	vcs := GitVCS{Dir: dir}
	files, err := vcs.ChangedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"src/del.ts",
		"src/edit.ts",
		"src/mode.sh",
		"src/renamed.ts",
		"src/untracked.ts",
		"src/é.ts",
	}, files)
}

func TestGitCommitFailsWithoutChanges(t *testing.T) {
	dir := newGitRepo(t)
	writeFile(t, dir, "a.txt", "a\n")
	vcs := GitVCS{Dir: dir}
	_, err := vcs.Commit(context.Background(), "tcr: a")
	require.NoError(t, err)

	_, err = vcs.Commit(context.Background(), "tcr: nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git commit")
}
