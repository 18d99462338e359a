// Package vcs implements the Change Detector: a rename-aware
// git diff between two repository refs, yielding a well-typed ChangeSet.
// The exec.CommandContext + cmd.Dir invocation pattern is carried over from
// internal/task/git_verifier.go.
package vcs

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ChangeKind is the status letter git reports for a path. The full set
// (A, C, D, M, R, T, U, X) is a closed, finite set modeled as a typed
// string constant rather than an int enum, so log output and switch
// statements read directly as the git status letter.
type ChangeKind string

const (
	KindAdded       ChangeKind = "A"
	KindCopied      ChangeKind = "C"
	KindDeleted     ChangeKind = "D"
	KindModified    ChangeKind = "M"
	KindRenamed     ChangeKind = "R"
	KindTypeChanged ChangeKind = "T"
	KindUnmerged    ChangeKind = "U"
	KindUnknown     ChangeKind = "X"
)

// DetectedChange is one line of git's --name-status output, parsed.
type DetectedChange struct {
	Kind       ChangeKind
	FilePath   string
	OldPath    string
	Similarity int
}

// ChangeSet is the ordered list of changes between two refs.
type ChangeSet struct {
	Changes  []DetectedChange
	BaseRef  string
	TargetRef string
}

// Renames returns a map of old path → new path for every rename entry.
func (cs *ChangeSet) Renames() map[string]string {
	renames := make(map[string]string)
	for _, c := range cs.Changes {
		if c.Kind == KindRenamed && c.OldPath != "" {
			renames[c.OldPath] = c.FilePath
		}
	}
	return renames
}

// ModifiedFiles returns only M (content-modified) entries' paths. Renames
// are tracked separately via Renames and are never included here — see
// DESIGN.md Open Question #3.
func (cs *ChangeSet) ModifiedFiles() []string {
	return cs.filterPaths(KindModified)
}

// AddedFiles returns A entries' paths.
func (cs *ChangeSet) AddedFiles() []string {
	return cs.filterPaths(KindAdded)
}

// DeletedFiles returns D entries' paths.
func (cs *ChangeSet) DeletedFiles() []string {
	return cs.filterPaths(KindDeleted)
}

func (cs *ChangeSet) filterPaths(kind ChangeKind) []string {
	var out []string
	for _, c := range cs.Changes {
		if c.Kind == kind {
			out = append(out, c.FilePath)
		}
	}
	return out
}

// Empty reports whether the change set has no entries.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Changes) == 0
}

// DetectorConfig tunes the Change Detector's git invocation.
type DetectorConfig struct {
	// SimilarityThreshold is the -M/-C percentage (default 50).
	SimilarityThreshold int
	Timeout             time.Duration
}

// DefaultDetectorConfig returns the default configuration.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{SimilarityThreshold: 50, Timeout: 30 * time.Second}
}

// ChangeDetector runs rename-aware git diffs for one repository.
type ChangeDetector struct {
	repoDir string
	cfg     DetectorConfig
	logger  *slog.Logger
}

// NewChangeDetector creates a detector rooted at repoDir.
func NewChangeDetector(repoDir string, cfg DetectorConfig) *ChangeDetector {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ChangeDetector{repoDir: repoDir, cfg: cfg, logger: slog.Default()}
}

// Detect runs `git diff --name-status -M -C --find-renames=<threshold>%
// baseRef targetRef` and parses the result into a ChangeSet. On VCS
// invocation failure (binary missing, ref unresolved), it returns an empty
// ChangeSet with a logged warning rather than an error, :
// downstream treats an empty ChangeSet as action=NONE.
func (d *ChangeDetector) Detect(ctx context.Context, baseRef, targetRef string) *ChangeSet {
	cs := &ChangeSet{BaseRef: baseRef, TargetRef: targetRef}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	args := []string{
		"diff",
		"--name-status",
		"-M", "-C",
		"--find-renames=" + strconv.Itoa(d.cfg.SimilarityThreshold) + "%",
		baseRef,
	}
	if targetRef != "" {
		args = append(args, targetRef)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repoDir

	output, err := cmd.Output()
	if err != nil {
		d.logger.Warn("change detector: git diff failed, returning empty change set",
			slog.String("base_ref", baseRef), slog.String("target_ref", targetRef), slog.Any("error", err))
		return cs
	}

	for _, line := range strings.Split(strings.TrimRight(string(output), "\n"), "\n") {
		if line == "" {
			continue
		}
		change, ok := parseStatusLine(line)
		if !ok {
			d.logger.Warn("change detector: could not parse diff line, skipping", slog.String("line", line))
			continue
		}
		if change.Kind == KindUnknown {
			d.logger.Warn("change detector: unknown status letter, skipping", slog.String("line", line))
			continue
		}
		cs.Changes = append(cs.Changes, change)
	}
	return cs
}

// parseStatusLine parses one tab-separated --name-status line: a status
// letter (optionally followed by a similarity percentage for R/C), then one
// or two tab-separated paths (two for renames/copies: old then new).
func parseStatusLine(line string) (DetectedChange, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 {
		return DetectedChange{}, false
	}
	status := fields[0]
	letter := ChangeKind(status[:1])

	var similarity int
	if len(status) > 1 {
		if v, err := strconv.Atoi(status[1:]); err == nil {
			similarity = v
		}
	}

	switch letter {
	case KindAdded, KindDeleted, KindModified, KindTypeChanged, KindUnmerged:
		if len(fields) != 2 {
			return DetectedChange{}, false
		}
		return DetectedChange{Kind: letter, FilePath: normalizeSlashes(fields[1])}, true
	case KindRenamed, KindCopied:
		if len(fields) != 3 {
			return DetectedChange{}, false
		}
		return DetectedChange{
			Kind:       letter,
			OldPath:    normalizeSlashes(fields[1]),
			FilePath:   normalizeSlashes(fields[2]),
			Similarity: similarity,
		}, true
	default:
		// Unknown status letters are logged and skipped by the caller, never
		// fatal: surface them as KindUnknown so the caller can
		// decide, rather than silently dropping the line here.
		path := fields[len(fields)-1]
		return DetectedChange{Kind: KindUnknown, FilePath: normalizeSlashes(path)}, true
	}
}

func normalizeSlashes(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
