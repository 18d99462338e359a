// Package component implements the Component Checker:
// predicates the Incremental Updater and Re-expansion Driver use to decide
// between patching a sub-analysis in place and fully re-expanding it.
package component

import (
	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/impact"
	"github.com/codeboarding/increco/internal/manifest"
)

// SubAnalysisStore is the minimal capability the checker needs from the
// Unified Store: whether a sub-analysis exists for a component. Declared
// here (rather than importing internal/unifiedstore) to keep this package's
// dependency surface limited to what it actually needs and avoid a cycle,
// since the Unified Store's own tests may want to exercise checker logic.
type SubAnalysisStore interface {
	HasSubAnalysis(componentID string) bool
}

// IsExpandedComponent reports whether component is expanded: tracked in
// manifest.ExpandedComponents, or has a materialized sub-analysis in store.
func IsExpandedComponent(componentID string, m *manifest.Manifest, store SubAnalysisStore) bool {
	if m.IsExpanded(componentID) {
		return true
	}
	if store != nil && store.HasSubAnalysis(componentID) {
		return true
	}
	return false
}

// ComponentHasOnlyRenames reports whether every deletion owned by component
// is the old side of a rename, and every modification owned by component is
// the new side of a rename. This distinguishes "the file moved" (safe to
// patch) from "the file's content changed" (needs re-expansion).
//
// impact.ModifiedFiles never contains rename new-paths (see DESIGN.md Open
// Question #3: the Change Detector keeps M and R entries disjoint), so this
// predicate cross-references impact.Renames' values directly rather than
// impact.ModifiedFiles.
func ComponentHasOnlyRenames(componentID string, m *manifest.Manifest, imp *impact.ChangeImpact) bool {
	ownedFiles := m.GetFilesForComponent(componentID)
	owned := make(map[string]bool, len(ownedFiles))
	for _, f := range ownedFiles {
		owned[f] = true
	}

	renameNewPaths := make(map[string]bool, len(imp.Renames))
	for _, newPath := range imp.Renames {
		renameNewPaths[newPath] = true
	}

	for _, f := range imp.DeletedFiles {
		if !owned[f] {
			continue
		}
		isOldSideOfRename := false
		for oldPath := range imp.Renames {
			if oldPath == f {
				isOldSideOfRename = true
				break
			}
		}
		if !isOldSideOfRename {
			return false
		}
	}

	for _, f := range imp.ModifiedFiles {
		if owned[f] {
			// A genuinely modified file owned by this component is content
			// change, not a rename — disqualifies "only renames".
			return false
		}
	}

	hasAnyRenameActivity := false
	for oldPath, newPath := range imp.Renames {
		if owned[oldPath] || owned[newPath] {
			hasAnyRenameActivity = true
			break
		}
	}

	return hasAnyRenameActivity
}

// CanPatchSubAnalysis reports whether a sub-analysis exists, no files
// *within the sub-analysis* are deleted, and the component still appears in
// the current root analysis. Additions are allowed: they trigger targeted
// classification rather than full re-expansion.
func CanPatchSubAnalysis(componentID string, m *manifest.Manifest, imp *impact.ChangeImpact, store SubAnalysisStore, root *analysismodel.AnalysisInsights) bool {
	if store == nil || !store.HasSubAnalysis(componentID) {
		return false
	}
	if root.ComponentByID(componentID) == nil {
		return false
	}
	ownedFiles := m.GetFilesForComponent(componentID)
	owned := make(map[string]bool, len(ownedFiles))
	for _, f := range ownedFiles {
		owned[f] = true
	}
	for _, f := range imp.DeletedFiles {
		if owned[f] {
			return false
		}
	}
	return true
}

// SubcomponentHasOnlyRenames is ComponentHasOnlyRenames evaluated over the
// files recorded inside a sub-analysis rather than the manifest.
func SubcomponentHasOnlyRenames(sub *analysismodel.AnalysisInsights, imp *impact.ChangeImpact) bool {
	owned := make(map[string]bool)
	for _, c := range sub.Components {
		for _, f := range c.AssignedFiles {
			owned[f] = true
		}
	}

	for _, f := range imp.DeletedFiles {
		if !owned[f] {
			continue
		}
		isOldSideOfRename := false
		for oldPath := range imp.Renames {
			if oldPath == f {
				isOldSideOfRename = true
				break
			}
		}
		if !isOldSideOfRename {
			return false
		}
	}

	for _, f := range imp.ModifiedFiles {
		if owned[f] {
			return false
		}
	}

	hasAnyRenameActivity := false
	for oldPath, newPath := range imp.Renames {
		if owned[oldPath] || owned[newPath] {
			hasAnyRenameActivity = true
			break
		}
	}

	return hasAnyRenameActivity
}
