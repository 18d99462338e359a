// Package updater implements the Incremental Updater: the
// top-level orchestrator that decides whether an incremental update is
// possible, analyzes the current repository state against the persisted
// analysis, and executes the update plan that follows from that analysis.
// It wires together nearly every other package in this module: vcs,
// manifest, impact, patch, component, filemanager, unifiedstore,
// reexpand, scoped, reposcan, and the collab interfaces.
//
// Grounded on original_source/diagram_analysis/incremental/updater.py's
// three-phase shape (can_run_incremental / analyze / execute) and its
// recompute_dirty_components cluster-remapping refinement; span
// instrumentation follows otel usage pattern in
// Sumatoshi-tech-codefang's internal/framework/runner.go (tracer().Start,
// attribute.*, span.End()).
package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/cluster"
	"github.com/codeboarding/increco/internal/collab"
	"github.com/codeboarding/increco/internal/component"
	"github.com/codeboarding/increco/internal/filemanager"
	"github.com/codeboarding/increco/internal/impact"
	"github.com/codeboarding/increco/internal/manifest"
	"github.com/codeboarding/increco/internal/patch"
	"github.com/codeboarding/increco/internal/reexpand"
	"github.com/codeboarding/increco/internal/reposcan"
	"github.com/codeboarding/increco/internal/scoped"
	"github.com/codeboarding/increco/internal/vcs"
)

const tracerName = "increco/updater"

// Store is the subset of unifiedstore.Store the updater needs. Declared
// locally (rather than importing the concrete type directly into every
// signature) so tests can exercise Execute against an in-memory fake.
type Store interface {
	ReadRoot(ctx context.Context) (*analysismodel.AnalysisInsights, error)
	ReadSub(ctx context.Context, componentID string) (*analysismodel.AnalysisInsights, error)
	HasSubAnalysis(componentID string) bool
	Write(ctx context.Context, root *analysismodel.AnalysisInsights, subs map[string]*analysismodel.AnalysisInsights, repoName string) error
	WriteWithCoverage(ctx context.Context, root *analysismodel.AnalysisInsights, subs map[string]*analysismodel.AnalysisInsights, repoName string, fileCoverage *float64) error
	WriteSub(ctx context.Context, componentID string, sub *analysismodel.AnalysisInsights) error
}

// Updater orchestrates one output directory's incremental update cycle.
type Updater struct {
	RepoDir   string
	OutputDir string
	RepoName  string

	Store      Store
	Detector   *vcs.ChangeDetector
	Analyzer   *impact.Analyzer
	FileMgr    *filemanager.Manager
	Reexpand   *reexpand.Driver
	Collab     collab.DetailsAgent
	Classifier filemanager.ClassifierCollaborator

	// StaticAnalysis feeds the Impact Analyzer's cross-boundary check. May
	// be nil: the check is simply skipped.
	StaticAnalysis impact.StaticAnalysis

	// ForceFull, when set, makes CanRunIncremental always return false,
	// forcing the outer driver straight to a full analysis regardless of
	// persisted manifest state.
	ForceFull bool

	// SkipPath, if set, excludes a path from triggering Watch (in addition
	// to the always-excluded .git/.increco directories).
	SkipPath func(path string) bool

	Tracer trace.Tracer
	Logger *slog.Logger
}

func (u *Updater) tracer() trace.Tracer {
	if u.Tracer != nil {
		return u.Tracer
	}
	return otel.Tracer(tracerName)
}

func (u *Updater) logger() *slog.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return slog.Default()
}

// CanRunIncremental reports whether an incremental update is possible:
// false forces the outer driver to fall back to a full analysis.
func (u *Updater) CanRunIncremental(ctx context.Context) bool {
	if u.ForceFull {
		return false
	}
	if !manifest.Exists(u.OutputDir) {
		return false
	}
	m, err := manifest.Load(u.OutputDir)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) || errors.Is(err, manifest.ErrSchemaVersionMismatch) {
			return false
		}
		u.logger().Warn("updater: failed to load manifest, forcing full analysis", slog.Any("error", err))
		return false
	}
	if m.BaseCommit == "" {
		return false
	}
	root, err := u.Store.ReadRoot(ctx)
	if err != nil || root == nil {
		return false
	}
	return true
}

// Snapshot is the output of Analyze: everything Execute needs to run the
// update plan.
type Snapshot struct {
	Manifest      *manifest.Manifest
	Changes       *vcs.ChangeSet
	Root          *analysismodel.AnalysisInsights
	RootImpact    *impact.ChangeImpact
	ScopedImpacts map[string]*impact.ChangeImpact
}

// Analyze detects changes from manifest.base_commit to the working tree,
// runs the root-level Impact Analyzer, and computes scoped impacts for
// every expanded component (analyze()).
func (u *Updater) Analyze(ctx context.Context) (*Snapshot, error) {
	ctx, span := u.tracer().Start(ctx, "increco.updater.analyze")
	defer span.End()

	m, err := manifest.Load(u.OutputDir)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("updater: analyze: load manifest: %w", err)
	}

	root, err := u.Store.ReadRoot(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("updater: analyze: read root analysis: %w", err)
	}

	changes := u.Detector.Detect(ctx, m.BaseCommit, "")
	span.SetAttributes(attribute.Int("increco.changes.count", len(changes.Changes)))

	rootImpact := u.Analyzer.Analyze(ctx, changes, m, u.StaticAnalysis, len(m.FileToComponent))
	span.SetAttributes(attribute.String("increco.action", string(rootImpact.Action)))

	scopedImpacts := scoped.AnalyzeExpandedComponentImpacts(ctx, u.Analyzer, changes, m, u.StaticAnalysis)

	return &Snapshot{
		Manifest:      m,
		Changes:       changes,
		Root:          root,
		RootImpact:    rootImpact,
		ScopedImpacts: scopedImpacts,
	}, nil
}

// Execute dispatches on snap.RootImpact.Action (execute()).
// Returns false for UPDATE_ARCHITECTURE/FULL_REANALYSIS: the outer caller
// must invoke the full-analysis pipeline in that case, not an error.
func (u *Updater) Execute(ctx context.Context, snap *Snapshot) (bool, error) {
	ctx, span := u.tracer().Start(ctx, "increco.updater.execute",
		trace.WithAttributes(attribute.String("increco.action", string(snap.RootImpact.Action))))
	defer span.End()

	switch snap.RootImpact.Action {
	case impact.ActionNone:
		return true, nil

	case impact.ActionPatchPaths:
		renames := patch.Renames(snap.RootImpact.Renames)
		patch.InAnalysis(snap.Root, renames)
		patch.InManifest(snap.Manifest, renames)
		if err := u.persistManifestAndRoot(ctx, snap); err != nil {
			span.RecordError(err)
			return false, err
		}
		return true, nil

	case impact.ActionUpdateComponents:
		if err := u.executeUpdateComponents(ctx, snap); err != nil {
			span.RecordError(err)
			return false, err
		}
		return true, nil

	case impact.ActionUpdateArchitecture, impact.ActionFullReanalysis:
		return false, nil

	default:
		return false, fmt.Errorf("updater: unknown update action %q", snap.RootImpact.Action)
	}
}

// Watch re-runs Analyze+onChange every time fsnotify reports a write,
// create, remove, or rename under RepoDir, coalescing bursts of events
// (e.g. a checkout touching many files at once) behind debounce. onChange
// receives the resulting Snapshot and decides whether/how to execute it;
// an Analyze error is logged, skips onChange, and does not stop the watch.
// Watch blocks until ctx is canceled.
func (u *Updater) Watch(ctx context.Context, debounce time.Duration, onChange func(*Snapshot)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("updater: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, u.RepoDir); err != nil {
		return fmt.Errorf("updater: watch %s: %w", u.RepoDir, err)
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	var timer *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if u.SkipPath != nil && u.SkipPath(ev.Name) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			u.logger().Warn("updater: watch error", slog.Any("error", err))

		case <-trigger:
			snap, err := u.Analyze(ctx)
			if err != nil {
				u.logger().Warn("updater: watch-triggered analyze failed", slog.Any("error", err))
				continue
			}
			onChange(snap)
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || d.Name() == ".increco" {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

// executeUpdateComponents runs the full 11-step UPDATE_COMPONENTS sequence
// (execute(), UPDATE_COMPONENTS branch).
func (u *Updater) executeUpdateComponents(ctx context.Context, snap *Snapshot) error {
	root, m, imp := snap.Root, snap.Manifest, snap.RootImpact
	logger := u.logger()

	// (a) remove_deleted_files
	u.FileMgr.RemoveDeletedFiles(imp.DeletedFiles, root, m)

	// (b) assign_new_files
	touched, unassigned := u.FileMgr.AssignNewFiles(ctx, imp.AddedFiles, root, m)
	if len(unassigned) > 0 {
		logger.Warn("updater: files unassigned after directory-affinity scoring", slog.Any("files", unassigned))
	}

	// (c) apply renames
	renames := patch.Renames(imp.Renames)
	patch.InAnalysis(root, renames)
	patch.InManifest(m, renames)

	// (d) partition dirty-or-new components into reexpand | patch | classify-new-files
	var reexpandSet, patchSet []string
	classifySet := make(map[string][]string) // componentID -> new files landing in it

	dirtyOrNew := make(map[string]bool, len(imp.DirtyComponents)+len(touched))
	for id := range imp.DirtyComponents {
		dirtyOrNew[id] = true
	}
	for id := range touched {
		dirtyOrNew[id] = true
	}

	for id := range dirtyOrNew {
		if !component.IsExpandedComponent(id, m, u.Store) {
			continue
		}
		switch {
		case imp.ComponentsNeedingReexpansion[id]:
			reexpandSet = append(reexpandSet, id)
		case touched[id] && !imp.ComponentsNeedingReexpansion[id]:
			classifySet[id] = filesForComponent(touched, imp.AddedFiles, id, m)
		case component.CanPatchSubAnalysis(id, m, imp, u.Store, root):
			patchSet = append(patchSet, id)
		default:
			reexpandSet = append(reexpandSet, id)
		}
	}

	// (e) run the Re-expansion Driver on the reexpand set
	if len(reexpandSet) > 0 && u.Reexpand != nil {
		results := u.Reexpand.Run(ctx, root, imp, reexpandSet)
		succeeded, failures := reexpand.Summarize(results)
		if len(failures) > 0 {
			logger.Warn("updater: some components failed to re-expand", slog.Any("failures", failures))
		}
		logger.Info("updater: re-expansion complete", slog.Int("succeeded", len(succeeded)), slog.Int("failed", len(failures)))
	}

	// (f) run scoped updates on all changed expanded components
	for id, scopedImpact := range snap.ScopedImpacts {
		if err := scoped.HandleScopedComponentUpdate(ctx, u.Store, u.Collab, id, scopedImpact, root, m, logger); err != nil {
			logger.Error("updater: scoped component update failed", slog.String("component_id", id), slog.Any("error", err))
		}
	}

	// (g) classify new files inside components eligible for patching
	if u.Classifier != nil {
		for id, files := range classifySet {
			sub, err := u.Store.ReadSub(ctx, id)
			if err != nil || sub == nil {
				continue
			}
			if err := u.FileMgr.ClassifyNewFilesInComponent(ctx, u.Classifier, sub, files); err != nil {
				logger.Warn("updater: classify new files failed", slog.String("component_id", id), slog.Any("error", err))
				continue
			}
			if err := u.Store.WriteSub(ctx, id, sub); err != nil {
				return fmt.Errorf("updater: persist classified sub-analysis for %q: %w", id, err)
			}
		}
	}

	// (h) patch remaining components
	for _, id := range patchSet {
		sub, err := u.Store.ReadSub(ctx, id)
		if err != nil || sub == nil {
			continue
		}
		if changed := patch.SubAnalysis(sub, imp.DeletedFiles, renames); changed {
			if err := u.Store.WriteSub(ctx, id, sub); err != nil {
				return fmt.Errorf("updater: persist patched sub-analysis for %q: %w", id, err)
			}
		}
	}

	// (i) validate
	if err := root.Validate(); err != nil {
		return fmt.Errorf("updater: validation failed after update: %w", err)
	}

	// (j) update manifest commit/hash
	if err := u.stampManifest(ctx, m); err != nil {
		logger.Warn("updater: failed to stamp manifest commit/hash", slog.Any("error", err))
	}

	// (k) persist
	return u.persistManifestAndRoot(ctx, &Snapshot{Root: root, Manifest: m})
}

// filesForComponent returns the subset of addedFiles that ended up mapped
// to componentID in the manifest, restricted to componentID being a member
// of touched (i.e. it actually received at least one new file).
func filesForComponent(touched map[string]bool, addedFiles []string, componentID string, m *manifest.Manifest) []string {
	if !touched[componentID] {
		return nil
	}
	var out []string
	for _, f := range addedFiles {
		if owner, ok := m.GetComponentForFile(f); ok && owner == componentID {
			out = append(out, f)
		}
	}
	return out
}

// stampManifest refreshes base_commit and repo_state_hash to the current
// HEAD/working-tree state (step j / PATCH_PATHS branch).
func (u *Updater) stampManifest(ctx context.Context, m *manifest.Manifest) error {
	head, err := reposcan.HeadCommit(ctx, u.RepoDir)
	if err != nil {
		return err
	}
	hash, err := reposcan.Hash(ctx, u.RepoDir)
	if err != nil {
		return err
	}
	m.BaseCommit = head
	m.RepoStateHash = hash
	return nil
}

func (u *Updater) persistManifestAndRoot(ctx context.Context, snap *Snapshot) error {
	if snap.Manifest.BaseCommit == "" || snap.Manifest.RepoStateHash == "" {
		if err := u.stampManifest(ctx, snap.Manifest); err != nil {
			u.logger().Warn("updater: failed to stamp manifest before persist", slog.Any("error", err))
		}
	}
	coverage := computeFileCoverage(snap.Root, snap.Manifest)
	if err := u.Store.WriteWithCoverage(ctx, snap.Root, nil, u.RepoName, coverage); err != nil {
		return fmt.Errorf("updater: write root analysis: %w", err)
	}
	if err := manifest.Save(u.OutputDir, snap.Manifest); err != nil {
		return fmt.Errorf("updater: save manifest: %w", err)
	}
	return nil
}

// computeFileCoverage returns the fraction of manifest-tracked files that
// are currently assigned to some root-level component, or nil if there are
// no tracked files (avoids a division by zero becoming a bogus 0%).
func computeFileCoverage(root *analysismodel.AnalysisInsights, m *manifest.Manifest) *float64 {
	total := len(m.FileToComponent)
	if total == 0 {
		return nil
	}
	assigned := make(map[string]bool, total)
	for _, c := range root.Components {
		for _, f := range c.AssignedFiles {
			assigned[f] = true
		}
	}
	covered := 0
	for f := range m.FileToComponent {
		if assigned[f] {
			covered++
		}
	}
	ratio := float64(covered) / float64(total)
	return &ratio
}

// versionStamp is the shape persisted to codeboarding_version.json, written
// once per full analysis so a caller can tell which engine/commit produced
// the analysis tree it is about to reconcile against.
type versionStamp struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
}

// WriteVersionStamp writes codeboarding_version.json to outputDir, recording
// the commit the full analysis ran against and the engine version that
// produced it. Called by the (out-of-scope) full-analysis pipeline; this
// package only provides the helper so that caller has somewhere to write to.
func WriteVersionStamp(outputDir, commitHash, version string) error {
	data, err := json.MarshalIndent(versionStamp{Version: version, CommitHash: commitHash}, "", "  ")
	if err != nil {
		return fmt.Errorf("updater: marshal version stamp: %w", err)
	}
	stampPath := filepath.Join(outputDir, "codeboarding_version.json")
	if err := os.WriteFile(stampPath, data, 0o644); err != nil {
		return fmt.Errorf("updater: write version stamp %s: %w", stampPath, err)
	}
	return nil
}

// RecomputeDirtyComponents refines imp.DirtyComponents /
// imp.ComponentsNeedingReexpansion against a fresh clustering result,
// mapping each changed file through its new cluster membership (preferred)
// or the manifest's current file->component mapping (fallback), then
// intersecting the refined "needs reexpansion" set with the refined dirty
// set (the post-UPDATE_COMPONENTS optional refinement).
//
// Grounded on original_source/diagram_analysis/incremental/updater.py's
// recompute_dirty_components / _find_component_for_file: best-overlap
// between a changed file's cluster IDs and each component's
// SourceClusterIDs, falling back to directory-sibling matching when no
// component has any cluster overlap.
func RecomputeDirtyComponents(root *analysismodel.AnalysisInsights, m *manifest.Manifest, imp *impact.ChangeImpact, freshClusters map[string]*cluster.Result) {
	if imp == nil || m == nil || root == nil {
		return
	}

	changedFiles := make(map[string]bool)
	for oldPath := range imp.Renames {
		changedFiles[oldPath] = true
	}
	for _, f := range imp.ModifiedFiles {
		changedFiles[f] = true
	}
	for _, f := range imp.AddedFiles {
		changedFiles[f] = true
	}
	for _, f := range imp.DeletedFiles {
		changedFiles[f] = true
	}

	refinedDirty := make(map[string]bool)
	for f := range changedFiles {
		if target := findComponentForFile(root, f, freshClusters); target != "" {
			refinedDirty[target] = true
		} else if owner, ok := m.GetComponentForFile(f); ok {
			refinedDirty[owner] = true
		}
	}
	imp.DirtyComponents = refinedDirty

	structural := make(map[string]bool, len(imp.ComponentsNeedingReexpansion))
	for id := range imp.ComponentsNeedingReexpansion {
		structural[id] = true
	}
	for _, f := range append(append([]string{}, imp.AddedFiles...), imp.DeletedFiles...) {
		if owner, ok := m.GetComponentForFile(f); ok {
			structural[owner] = true
		}
	}

	refinedReexpansion := make(map[string]bool)
	for id := range structural {
		if refinedDirty[id] {
			refinedReexpansion[id] = true
		}
	}
	imp.ComponentsNeedingReexpansion = refinedReexpansion
}

// findComponentForFile picks the component whose SourceClusterIDs overlap
// most with the clusters containing file across all languages in
// freshClusters; ties keep the first-seen component. Falls back to
// directory-sibling matching against existing assigned_files when no
// component has any cluster overlap at all.
func findComponentForFile(root *analysismodel.AnalysisInsights, file string, freshClusters map[string]*cluster.Result) string {
	fileClusters := make(map[int]bool)
	for _, res := range freshClusters {
		if res == nil {
			continue
		}
		if id, ok := res.FileToCluster[file]; ok {
			fileClusters[id] = true
		}
	}

	if len(fileClusters) > 0 {
		best := ""
		bestOverlap := 0
		for _, c := range root.Components {
			if len(c.SourceClusterIDs) == 0 {
				continue
			}
			overlap := 0
			for _, cid := range c.SourceClusterIDs {
				if fileClusters[cid] {
					overlap++
				}
			}
			if overlap > bestOverlap {
				bestOverlap = overlap
				best = c.ComponentID
			}
		}
		if best != "" {
			return best
		}
	}

	dir := path.Dir(file)
	for _, c := range root.Components {
		for _, f := range c.AssignedFiles {
			if path.Dir(f) == dir {
				return c.ComponentID
			}
		}
	}
	return ""
}
