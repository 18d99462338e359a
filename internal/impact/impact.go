// Package impact implements the Impact Analyzer: the decision
// core that maps a ChangeSet against a Manifest (and optionally a
// StaticAnalysis) to a ChangeImpact carrying a definite UpdateAction.
package impact

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeboarding/increco/internal/manifest"
	"github.com/codeboarding/increco/internal/skippolicy"
	"github.com/codeboarding/increco/internal/vcs"
)

// UpdateAction is a closed, finite tagged variant modeled as a typed string
// constant rather than an int enum, for exhaustive, readable matching.
type UpdateAction string

const (
	ActionNone               UpdateAction = "NONE"
	ActionPatchPaths         UpdateAction = "PATCH_PATHS"
	ActionUpdateComponents   UpdateAction = "UPDATE_COMPONENTS"
	ActionUpdateArchitecture UpdateAction = "UPDATE_ARCHITECTURE"
	ActionFullReanalysis     UpdateAction = "FULL_REANALYSIS"
)

// Thresholds are the policy knobs calls out as tunable; defaults
// encode "a strong preference for incremental over full".
type Thresholds struct {
	// FullReanalysisRatio: (added+deleted)/total_tracked_files strictly
	// greater than this triggers FULL_REANALYSIS.
	FullReanalysisRatio float64
	// MaxDirtyComponents: strictly more than this many dirty components
	// triggers UPDATE_ARCHITECTURE instead of UPDATE_COMPONENTS.
	MaxDirtyComponents int
}

// DefaultThresholds returns the default thresholds: 30% and 10 components.
func DefaultThresholds() Thresholds {
	return Thresholds{FullReanalysisRatio: 0.30, MaxDirtyComponents: 10}
}

// CrossBoundaryEdge records a call-graph edge crossing component ownership.
type CrossBoundaryEdge struct {
	FromFile      string
	ToFile        string
	FromComponent string
	ToComponent   string
}

// ChangeImpact is the output of the Impact Analyzer.
type ChangeImpact struct {
	Renames                     map[string]string
	ModifiedFiles               []string
	AddedFiles                  []string
	DeletedFiles                []string
	DirtyComponents             map[string]bool
	ComponentsNeedingReexpansion map[string]bool
	CrossBoundaryChanges        []CrossBoundaryEdge
	ArchitectureDirty           bool
	UnassignedFiles              []string
	Action                       UpdateAction
	Reason                       string
}

func newImpact() *ChangeImpact {
	return &ChangeImpact{
		DirtyComponents:              make(map[string]bool),
		ComponentsNeedingReexpansion: make(map[string]bool),
	}
}

// CallGraphNode is the minimal shape the cross-boundary check needs from a
// static-analysis call graph node: which file it lives in and which other
// nodes it connects to.
type CallGraphNode struct {
	File  string
	Edges []string // qualified names of connected nodes (either direction)
}

// StaticAnalysis is the minimal interface the Impact Analyzer needs from a
// static-analysis result for the cross-boundary check.
// The concrete implementation lives in internal/staticanalysis; this
// package only depends on the shape it needs, to keep the dependency graph
// acyclic and the analyzer testable with fixtures.
type StaticAnalysis interface {
	// NodesInFile returns every call-graph node (across all languages)
	// located in the given repo-relative file. Given a node's qualified
	// name instead, it returns that node; the cross-boundary check resolves
	// edge targets this way.
	NodesInFile(file string) []CallGraphNode
}

// Analyzer runs the Impact Analyzer pipeline.
type Analyzer struct {
	thresholds Thresholds
	policy     *skippolicy.Policy
	logger     *slog.Logger
}

// NewAnalyzer constructs an Analyzer with the given thresholds and skip policy.
func NewAnalyzer(thresholds Thresholds, policy *skippolicy.Policy) *Analyzer {
	return &Analyzer{thresholds: thresholds, policy: policy, logger: slog.Default()}
}

// Analyze runs the full pipeline: filter → map → cross-boundary check →
// action selection.
func (a *Analyzer) Analyze(ctx context.Context, cs *vcs.ChangeSet, m *manifest.Manifest, sa StaticAnalysis, totalTrackedFiles int) *ChangeImpact {
	impact := newImpact()

	filtered := a.filter(ctx, cs)
	// Renames come from the filtered set, so a rename whose new path is
	// skipped does not count as a surviving change.
	impact.Renames = (&vcs.ChangeSet{Changes: filtered}).Renames()

	a.mapChanges(filtered, m, impact)

	if sa != nil {
		a.checkCrossBoundary(impact.ModifiedFiles, m, sa, impact)
	}

	a.selectAction(impact, totalTrackedFiles)
	return impact
}

// filter discards changes matching the skip policy. Filtering uses the new
// path for renames, step 1.
func (a *Analyzer) filter(ctx context.Context, cs *vcs.ChangeSet) []vcs.DetectedChange {
	var out []vcs.DetectedChange
	for _, c := range cs.Changes {
		path := c.FilePath
		if a.policy != nil && a.policy.ShouldSkip(ctx, path) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (a *Analyzer) mapChanges(changes []vcs.DetectedChange, m *manifest.Manifest, impact *ChangeImpact) {
	for _, c := range changes {
		switch c.Kind {
		case vcs.KindRenamed, vcs.KindCopied:
			if owner, ok := m.GetComponentForFile(c.OldPath); ok {
				impact.DirtyComponents[owner] = true
			} else {
				impact.UnassignedFiles = append(impact.UnassignedFiles, c.FilePath)
			}
		case vcs.KindModified, vcs.KindTypeChanged, vcs.KindUnmerged:
			impact.ModifiedFiles = append(impact.ModifiedFiles, c.FilePath)
			if owner, ok := m.GetComponentForFile(c.FilePath); ok {
				impact.DirtyComponents[owner] = true
				impact.ComponentsNeedingReexpansion[owner] = true
			} else {
				impact.UnassignedFiles = append(impact.UnassignedFiles, c.FilePath)
			}
		case vcs.KindAdded:
			impact.AddedFiles = append(impact.AddedFiles, c.FilePath)
			impact.UnassignedFiles = append(impact.UnassignedFiles, c.FilePath)
		case vcs.KindDeleted:
			impact.DeletedFiles = append(impact.DeletedFiles, c.FilePath)
			if owner, ok := m.GetComponentForFile(c.FilePath); ok {
				impact.DirtyComponents[owner] = true
				impact.ComponentsNeedingReexpansion[owner] = true
			}
		}
	}
}

func (a *Analyzer) checkCrossBoundary(modifiedFiles []string, m *manifest.Manifest, sa StaticAnalysis, impact *ChangeImpact) {
	for _, file := range modifiedFiles {
		owner, ok := m.GetComponentForFile(file)
		if !ok {
			continue
		}
		for _, node := range sa.NodesInFile(file) {
			for _, edgeTarget := range node.Edges {
				targetNodes := sa.NodesInFile(edgeTarget)
				for _, tn := range targetNodes {
					targetOwner, ok := m.GetComponentForFile(tn.File)
					if !ok || targetOwner == owner {
						continue
					}
					impact.CrossBoundaryChanges = append(impact.CrossBoundaryChanges, CrossBoundaryEdge{
						FromFile: file, ToFile: tn.File, FromComponent: owner, ToComponent: targetOwner,
					})
					impact.ArchitectureDirty = true
				}
			}
		}
	}
}

// selectAction evaluates the ordered decision list of step 4,
// first match wins.
func (a *Analyzer) selectAction(impact *ChangeImpact, totalTrackedFiles int) {
	hasAny := len(impact.Renames) > 0 || len(impact.ModifiedFiles) > 0 ||
		len(impact.AddedFiles) > 0 || len(impact.DeletedFiles) > 0

	if !hasAny {
		impact.Action = ActionNone
		impact.Reason = "no surviving changes after skip-policy filtering"
		return
	}

	onlyRenames := len(impact.ModifiedFiles) == 0 && len(impact.AddedFiles) == 0 && len(impact.DeletedFiles) == 0 && len(impact.Renames) > 0
	if onlyRenames {
		impact.Action = ActionPatchPaths
		impact.Reason = "only renames detected"
		return
	}

	if totalTrackedFiles > 0 {
		ratio := float64(len(impact.AddedFiles)+len(impact.DeletedFiles)) / float64(totalTrackedFiles)
		if ratio > a.thresholds.FullReanalysisRatio {
			impact.Action = ActionFullReanalysis
			impact.Reason = fmt.Sprintf("added+deleted ratio %.2f exceeds threshold %.2f", ratio, a.thresholds.FullReanalysisRatio)
			return
		}
	}

	if len(impact.DirtyComponents) > a.thresholds.MaxDirtyComponents {
		impact.Action = ActionUpdateArchitecture
		impact.Reason = fmt.Sprintf("dirty component count %d exceeds threshold %d", len(impact.DirtyComponents), a.thresholds.MaxDirtyComponents)
		return
	}

	if impact.ArchitectureDirty {
		impact.Action = ActionUpdateArchitecture
		impact.Reason = "cross-boundary call-graph edges detected"
		return
	}

	// Added files never mark an existing component dirty directly (they are
	// deferred to the File Manager's directory-affinity assignment), but
	// their presence still means there is assignment work for
	// UPDATE_COMPONENTS to do — without this, a repository that only gains
	// new files would incorrectly fall through to FULL_REANALYSIS instead of
	// running assign_new_files/classification.
	if len(impact.DirtyComponents) > 0 || len(impact.AddedFiles) > 0 {
		impact.Action = ActionUpdateComponents
		impact.Reason = fmt.Sprintf("%d component(s) dirty, %d file(s) added", len(impact.DirtyComponents), len(impact.AddedFiles))
		return
	}

	impact.Action = ActionFullReanalysis
	impact.Reason = "changes present but none mapped to a known component"
}
