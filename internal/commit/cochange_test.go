package commit

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func writeFile(t *testing.T, repo, relPath, content string) {
	t.Helper()
	full := filepath.Join(repo, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestGetCoChangedFiles(t *testing.T) {
	repo := t.TempDir()
	runGit(t, repo, "init", "-q")

	writeFile(t, repo, "a.go", "package a\n")
	writeFile(t, repo, "b.go", "package b\n")
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-q", "-m", "initial")

	writeFile(t, repo, "a.go", "package a\n\nfunc F() {}\n")
	writeFile(t, repo, "b.go", "package b\n\nfunc G() {}\n")
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-q", "-m", "update a and b together")

	writeFile(t, repo, "a.go", "package a\n\nfunc F(x int) {}\n")
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-q", "-m", "update a alone")

	coChanges, err := GetCoChangedFiles(context.Background(), repo, "a.go", 0)
	require.NoError(t, err)
	require.Len(t, coChanges, 1)
	require.Equal(t, "b.go", coChanges[0].Path)
	require.Equal(t, 1, coChanges[0].Frequency)
}

func TestGetCoChangedFilesNoHistory(t *testing.T) {
	repo := t.TempDir()
	runGit(t, repo, "init", "-q")

	coChanges, err := GetCoChangedFiles(context.Background(), repo, "missing.go", 0)
	require.NoError(t, err)
	require.Empty(t, coChanges)
}
