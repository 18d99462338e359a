// Package filemanager implements the File Manager: heuristic
// assignment of newly added files to components by directory affinity, and
// removal of deleted files from both the manifest and the owning component.
package filemanager

import (
	"context"
	"log/slog"
	"path"
	"sort"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/manifest"
	"github.com/codeboarding/increco/internal/skippolicy"
)

// ClassifierCollaborator is the opaque external classifier contract:
// in-place assignment of scope_files to sub-components, scoped to a
// component's cluster subgraph. The concrete LLM-backed implementation
// lives in internal/collab; this package only needs the interface.
type ClassifierCollaborator interface {
	ClassifyFiles(ctx context.Context, sub *analysismodel.AnalysisInsights, scopeFiles []string) error
}

// Manager performs file assignment/removal.
type Manager struct {
	policy *skippolicy.Policy
	logger *slog.Logger
}

// New constructs a Manager with the given skip policy.
func New(policy *skippolicy.Policy) *Manager {
	return &Manager{policy: policy, logger: slog.Default()}
}

// AssignNewFiles filters addedFiles through the skip policy, then scores
// each remaining file against every component by counting how many of the
// component's existing files share the file's parent directory; the
// best-scoring component wins, ties broken by first-seen component order.
// Files matching no component are returned as unassigned and logged, never
// assigned arbitrarily. Returns the set of component names/IDs that
// received at least one new file.
func (m *Manager) AssignNewFiles(ctx context.Context, addedFiles []string, analysis *analysismodel.AnalysisInsights, man *manifest.Manifest) (touched map[string]bool, unassigned []string) {
	touched = make(map[string]bool)

	dirCounts := make(map[string]map[string]int) // componentID -> dir -> count
	order := make([]string, 0, len(analysis.Components))
	for _, c := range analysis.Components {
		order = append(order, c.ComponentID)
		counts := make(map[string]int)
		for _, f := range c.AssignedFiles {
			counts[path.Dir(f)]++
		}
		dirCounts[c.ComponentID] = counts
	}

	for _, f := range addedFiles {
		if m.policy != nil && m.policy.ShouldSkip(ctx, f) {
			continue
		}
		dir := path.Dir(f)

		best := ""
		bestScore := 0
		for _, cid := range order {
			score := dirCounts[cid][dir]
			if score > bestScore {
				bestScore = score
				best = cid
			}
		}

		if best == "" {
			unassigned = append(unassigned, f)
			m.logger.Warn("filemanager: no component shares a directory with added file", slog.String("file", f))
			continue
		}

		c := analysis.ComponentByID(best)
		if c == nil {
			unassigned = append(unassigned, f)
			continue
		}
		c.AddFile(f)
		man.AddFile(f, best)
		dirCounts[best][dir]++
		touched[best] = true
	}

	sort.Strings(unassigned)
	return touched, unassigned
}

// RemoveDeletedFiles strips each file from the manifest, the owning
// component's assigned_files, and drops any key_entities referencing it.
func (m *Manager) RemoveDeletedFiles(deletedFiles []string, analysis *analysismodel.AnalysisInsights, man *manifest.Manifest) {
	for _, f := range deletedFiles {
		owner, ok := man.GetComponentForFile(f)
		man.RemoveFile(f)
		if !ok {
			continue
		}
		if c := analysis.ComponentByID(owner); c != nil {
			c.RemoveFile(f)
		} else if c := analysis.ComponentByName(owner); c != nil {
			c.RemoveFile(f)
		}
	}
}

// ClassifyNewFilesInComponent performs targeted re-classification: when
// added files land inside an already-expanded component, the external
// classifier is invoked scoped to that component's sub-analysis, which is
// then updated in place. Persisting the result via write_sub is the
// caller's responsibility (internal/updater), keeping this package free of
// a dependency on the Unified Store.
func (m *Manager) ClassifyNewFilesInComponent(ctx context.Context, classifier ClassifierCollaborator, sub *analysismodel.AnalysisInsights, scopeFiles []string) error {
	return classifier.ClassifyFiles(ctx, sub, scopeFiles)
}
