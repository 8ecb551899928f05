package commit

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// CoChange records how often otherPath changed in the same commit as the
// file it was looked up against.
type CoChange struct {
	Path      string
	Frequency int
	Commits   []string
}

// GetCoChangedFiles returns the files that most often change alongside
// relPath, sorted by descending frequency, by walking up to lookbackCommits
// of relPath's commit history and recording every other file touched in
// each of those commits. Adapted from the teacher's
// OnDemandGitAnalyzer.GetCoChangedFiles (internal/signals/util/git_analyzer.go),
// which only differs here in trading its GitAnalyzer interface/constructor
// plumbing for a pair of plain functions, since nothing else in this module
// needs a swappable git-analysis backend.
func GetCoChangedFiles(ctx context.Context, repoPath, relPath string, lookbackCommits int) ([]CoChange, error) {
	if lookbackCommits <= 0 {
		lookbackCommits = 1000
	}

	commits, err := commitsTouchingFile(ctx, repoPath, relPath, lookbackCommits)
	if err != nil {
		return nil, fmt.Errorf("failed to get commits for file %s: %w", relPath, err)
	}
	if len(commits) == 0 {
		return nil, nil
	}

	coChanges := make(map[string][]string)
	for _, commit := range commits {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		files, err := filesInCommit(ctx, repoPath, commit)
		if err != nil {
			continue // best-effort: one unreadable commit shouldn't fail the whole lookup
		}
		for _, f := range files {
			if f == relPath {
				continue
			}
			coChanges[f] = append(coChanges[f], commit)
		}
	}

	results := make([]CoChange, 0, len(coChanges))
	for path, commits := range coChanges {
		results = append(results, CoChange{Path: path, Frequency: len(commits), Commits: commits})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Frequency > results[j].Frequency })
	return results, nil
}

func commitsTouchingFile(ctx context.Context, repoPath, relPath string, limit int) ([]string, error) {
	head := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "-q", "HEAD")
	head.Dir = repoPath
	if err := head.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil // repository has no commits yet
		}
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "git", "log", "--follow",
		fmt.Sprintf("-n%d", limit), "--pretty=format:%H", "--", relPath)
	cmd.Dir = repoPath

	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	out := strings.TrimSpace(string(output))
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func filesInCommit(ctx context.Context, repoPath, commitHash string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff-tree", "--no-commit-id", "--name-only", "-r", commitHash)
	cmd.Dir = repoPath

	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	out := strings.TrimSpace(string(output))
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
