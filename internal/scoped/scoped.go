// Package scoped implements Scoped Analysis: the recursive
// step that lets a sub-analysis be updated by exactly the same Impact
// Analyzer / patch logic as the root, giving the incremental engine its
// depth-independence. An expanded component's assigned files define a
// scope; changes are filtered to that scope, a single-component manifest
// view is built, and the whole decision pipeline runs again on that
// restricted input.
//
// Grounded directly on
// original_source/diagram_analysis/incremental/scoped_analysis.py,
// translated function-for-function onto this module's existing
// internal/impact, internal/manifest, internal/patch, and internal/vcs
// types.
package scoped

import (
	"context"
	"log/slog"
	"path"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/collab"
	"github.com/codeboarding/increco/internal/impact"
	"github.com/codeboarding/increco/internal/manifest"
	"github.com/codeboarding/increco/internal/patch"
	"github.com/codeboarding/increco/internal/vcs"
)

// Store is the subset of unifiedstore.Store scoped updates need.
type Store interface {
	ReadSub(ctx context.Context, componentID string) (*analysismodel.AnalysisInsights, error)
	WriteSub(ctx context.Context, componentID string, sub *analysismodel.AnalysisInsights) error
}

// AnalyzeExpandedComponentImpacts runs the Impact Analyzer within each
// expanded component's scope: for every component
// named in m.ExpandedComponents, collect its currently assigned files,
// filter changes down to that scope, build a single-component manifest
// view, and run the full Impact Analyzer on the restricted inputs. A
// component contributes no entry when it owns no files or the scoped
// change set is empty.
func AnalyzeExpandedComponentImpacts(ctx context.Context, analyzer *impact.Analyzer, changes *vcs.ChangeSet, m *manifest.Manifest, sa impact.StaticAnalysis) map[string]*impact.ChangeImpact {
	out := make(map[string]*impact.ChangeImpact)
	if m == nil {
		return out
	}

	for _, componentID := range m.ExpandedComponents {
		componentFiles := m.GetFilesForComponent(componentID)
		if len(componentFiles) == 0 {
			continue
		}

		scopedChanges := filterChangesForScope(changes, componentFiles)
		if scopedChanges.Empty() {
			continue
		}

		scopedManifest := manifest.New(m.BaseCommit, m.RepoStateHash)
		for _, f := range componentFiles {
			scopedManifest.AddFile(f, componentID)
		}
		scopedManifest.ExpandedComponents = []string{componentID}

		out[componentID] = analyzer.Analyze(ctx, scopedChanges, scopedManifest, sa, len(componentFiles))
	}

	return out
}

// filterChangesForScope keeps only changes whose path, or whose parent
// directory, intersects scopeFiles — this catches added files that land
// next to an existing scoped file even though they aren't in scopeFiles
// themselves. Renames are kept if either side is in scope.
func filterChangesForScope(changes *vcs.ChangeSet, scopeFiles []string) *vcs.ChangeSet {
	if changes == nil || changes.Empty() || len(scopeFiles) == 0 {
		return &vcs.ChangeSet{}
	}

	scopeSet := make(map[string]bool, len(scopeFiles))
	scopeDirs := make(map[string]bool, len(scopeFiles))
	for _, f := range scopeFiles {
		scopeSet[f] = true
		scopeDirs[path.Dir(f)] = true
	}

	inScope := func(p string) bool {
		if p == "" {
			return false
		}
		return scopeSet[p] || scopeDirs[path.Dir(p)]
	}

	out := &vcs.ChangeSet{BaseRef: changes.BaseRef, TargetRef: changes.TargetRef}
	for _, c := range changes.Changes {
		if c.Kind == vcs.KindRenamed || c.Kind == vcs.KindCopied {
			if inScope(c.FilePath) || inScope(c.OldPath) {
				out.Changes = append(out.Changes, c)
			}
			continue
		}
		if inScope(c.FilePath) {
			out.Changes = append(out.Changes, c)
		}
	}
	return out
}

// HandleScopedComponentUpdate applies a scoped impact decision to one
// component's sub-analysis.
// Renames/deletions are always patched first; if the scoped action is
// UPDATE_COMPONENTS, the details-agent collaborator is re-run on the
// component's own scope and its result persisted in place of the patched
// sub-analysis.
func HandleScopedComponentUpdate(ctx context.Context, store Store, agent collab.DetailsAgent, componentID string, imp *impact.ChangeImpact, root *analysismodel.AnalysisInsights, m *manifest.Manifest, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	sub, err := store.ReadSub(ctx, componentID)
	if err != nil {
		return err
	}
	if sub == nil {
		return nil
	}

	renames := patch.Renames(imp.Renames)
	changed := patch.SubAnalysis(sub, imp.DeletedFiles, renames)

	if imp.Action == impact.ActionPatchPaths {
		if changed {
			return store.WriteSub(ctx, componentID, sub)
		}
		return nil
	}

	if imp.Action != impact.ActionUpdateComponents {
		if changed {
			return store.WriteSub(ctx, componentID, sub)
		}
		return nil
	}

	if agent == nil {
		logger.Info("scoped: no details-agent collaborator configured, persisting patch only", slog.String("component_id", componentID))
		if changed {
			return store.WriteSub(ctx, componentID, sub)
		}
		return nil
	}

	component := root.ComponentByID(componentID)
	if component == nil {
		return nil
	}

	refreshed, _, err := agent.Run(ctx, *component, component.AssignedFiles)
	if err != nil {
		return err
	}
	if refreshed == nil {
		// Malformed/absent collaborator output: keep the patched sub-analysis
		// rather than discard it — drop the result, proceed without it.
		if changed {
			return store.WriteSub(ctx, componentID, sub)
		}
		return nil
	}

	if err := store.WriteSub(ctx, componentID, refreshed); err != nil {
		return err
	}

	newFiles := make(map[string]bool)
	for _, c := range refreshed.Components {
		for _, f := range c.AssignedFiles {
			newFiles[f] = true
			m.AddFile(f, componentID)
		}
	}
	for f := range newFiles {
		component.AddFile(f)
	}

	return nil
}
