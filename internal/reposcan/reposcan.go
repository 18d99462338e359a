// Package reposcan computes a deterministic hash of a repository's working
// tree state, used as the cache key for internal/staticanalysis's disk
// cache and persisted as AnalysisManifest.RepoStateHash.
//
// The original `get_repo_state_hash` helper (imported from `repo_utils` by
// original_source/diagram_analysis/incremental/updater.py and others) was
// not itself among the retrieved original_source files — only its call
// sites were. This builds the hash from first principles: HEAD's commit
// SHA plus a sorted manifest of every unstaged/staged/untracked entry from
// `git status --porcelain`, SHA-256'd together. The hash changes when HEAD
// or the set of status entries changes; file contents are not hashed, so
// further edits to an already-modified file leave it unchanged. The exec.CommandContext + cmd.Dir invocation
// pattern matches internal/vcs's grounding on // internal/task/git_verifier.go.
package reposcan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// HeadCommit returns the current commit SHA at dir, trimmed of whitespace.
// Used by internal/updater to stamp a fresh AnalysisManifest.BaseCommit
// after an incremental update completes.
func HeadCommit(ctx context.Context, dir string) (string, error) {
	head, err := runGit(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("reposcan: git rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(head), nil
}

// Hash computes the repo-state hash for the git repository at dir.
func Hash(ctx context.Context, dir string) (string, error) {
	head, err := runGit(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("reposcan: git rev-parse HEAD: %w", err)
	}

	status, err := runGit(ctx, dir, "status", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("reposcan: git status --porcelain: %w", err)
	}

	lines := strings.Split(strings.TrimRight(status, "\n"), "\n")
	var nonEmpty []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	sort.Strings(nonEmpty)

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(head)))
	h.Write([]byte{'\n'})
	for _, l := range nonEmpty {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
