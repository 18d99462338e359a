// Package reexpand implements the Re-expansion Driver: given a
// set of component names needing re-expansion, fan out across a bounded
// worker pool, deciding per component whether a cheap path-patch suffices or
// whether the external details-agent collaborator must rebuild the
// sub-analysis from scratch.
//
// The bounded worker pool is grounded on // cmd/uast/analyze.go (runAnalyzeParallel): a fixed number of goroutines
// draining a work channel, min(runtime.NumCPU(), N) wide. Unlike that
// pattern, a failing worker here must not abort its siblings, so
// there is no shared firstErr short-circuit — every job's outcome is
// recorded independently and aggregated after the pool drains.
package reexpand

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/collab"
	"github.com/codeboarding/increco/internal/component"
	"github.com/codeboarding/increco/internal/impact"
	"github.com/codeboarding/increco/internal/patch"
)

// maxWorkers bounds the driver's worker pool regardless of core count:
// min(available_cores, 8).
const maxWorkers = 8

// Store is the subset of unifiedstore.Store the driver needs.
type Store interface {
	ReadSub(ctx context.Context, componentID string) (*analysismodel.AnalysisInsights, error)
	WriteSub(ctx context.Context, componentID string, sub *analysismodel.AnalysisInsights) error
}

// Result is one component's outcome, matching each worker's Ok(name) /
// Err(log) contract.
type Result struct {
	ComponentID string
	Patched     bool // true if the cheap path-patch was used instead of a full re-expansion
	Err         error
}

// Driver runs the Re-expansion Driver over a fixed root analysis, manifest
// impact, and collaborator set.
type Driver struct {
	Store   Store
	Agent   collab.DetailsAgent
	Logger  *slog.Logger
	Workers int // 0 selects min(runtime.NumCPU(), maxWorkers)

	// Progress, if set, is called on the calling goroutine once per
	// completed job, in completion order, so a caller can render live
	// worker status without waiting for the whole batch to drain.
	Progress func(Result)
}

// job is one unit of work: the component to re-expand plus the context
// needed to decide patch-vs-rebuild.
type job struct {
	component analysismodel.Component
	opID      string
}

// Run re-expands every component named in componentIDs, found by looking
// them up in root. Components absent from root are skipped with a warning
// rather than failed. The returned slice has one Result per input name
// that was found in root, in no particular order: across parallel
// sub-analysis workers, no order is guaranteed, and none is required.
func (d *Driver) Run(ctx context.Context, root *analysismodel.AnalysisInsights, imp *impact.ChangeImpact, componentIDs []string) []Result {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var jobs []job
	for _, id := range componentIDs {
		c := root.ComponentByID(id)
		if c == nil {
			logger.Warn("reexpand: component not found in current analysis, skipping", slog.String("component_id", id))
			continue
		}
		jobs = append(jobs, job{component: *c, opID: uuid.NewString()})
	}
	if len(jobs) == 0 {
		return nil
	}

	workers := d.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), maxWorkers)
	}
	workers = min(workers, len(jobs))

	work := make(chan job, len(jobs))
	results := make(chan Result, len(jobs))

	for range workers {
		go func() {
			for j := range work {
				results <- d.runOne(ctx, logger, j, imp)
			}
		}()
	}
	for _, j := range jobs {
		work <- j
	}
	close(work)

	out := make([]Result, 0, len(jobs))
	for range jobs {
		r := <-results
		if d.Progress != nil {
			d.Progress(r)
		}
		out = append(out, r)
	}
	return out
}

// runOne handles a single component, recovering from a worker panic so one
// malformed component cannot abort the pool: the panic is caught, logged,
// and counted as a failure but does not cancel sibling workers.
func (d *Driver) runOne(ctx context.Context, logger *slog.Logger, j job, imp *impact.ChangeImpact) (res Result) {
	res.ComponentID = j.component.ComponentID

	defer func() {
		if r := recover(); r != nil {
			logger.Error("reexpand: worker panicked", slog.String("component_id", j.component.ComponentID), slog.String("op_id", j.opID), slog.Any("panic", r))
			res.Err = fmt.Errorf("reexpand: component %q: worker panic: %v", j.component.Name, r)
		}
	}()

	existing, err := d.Store.ReadSub(ctx, j.component.ComponentID)
	if err != nil {
		res.Err = fmt.Errorf("reexpand: component %q: read sub-analysis: %w", j.component.Name, err)
		return res
	}

	if existing != nil && component.SubcomponentHasOnlyRenames(existing, imp) {
		renames := patch.Renames(imp.Renames)
		patch.SubAnalysis(existing, imp.DeletedFiles, renames)
		if err := d.Store.WriteSub(ctx, j.component.ComponentID, existing); err != nil {
			res.Err = fmt.Errorf("reexpand: component %q: write patched sub-analysis: %w", j.component.Name, err)
			return res
		}
		res.Patched = true
		logger.Info("reexpand: patched sub-analysis in place", slog.String("component_id", j.component.ComponentID), slog.String("op_id", j.opID))
		return res
	}

	if d.Agent == nil {
		res.Err = fmt.Errorf("reexpand: component %q: no details-agent collaborator configured", j.component.Name)
		return res
	}

	sub, _, err := d.Agent.Run(ctx, j.component, j.component.AssignedFiles)
	if err != nil {
		res.Err = fmt.Errorf("reexpand: component %q: details agent: %w", j.component.Name, err)
		return res
	}
	if sub == nil {
		res.Err = fmt.Errorf("reexpand: component %q: details agent returned no result", j.component.Name)
		return res
	}
	if err := d.Store.WriteSub(ctx, j.component.ComponentID, sub); err != nil {
		res.Err = fmt.Errorf("reexpand: component %q: write sub-analysis: %w", j.component.Name, err)
		return res
	}
	logger.Info("reexpand: rebuilt sub-analysis via details agent", slog.String("component_id", j.component.ComponentID), slog.String("op_id", j.opID))
	return res
}

// Summarize splits results into succeeded component IDs and failure
// messages, the aggregation step the driver owes its caller.
func Summarize(results []Result) (succeeded []string, failures []string) {
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", r.ComponentID, r.Err))
			continue
		}
		succeeded = append(succeeded, r.ComponentID)
	}
	return succeeded, failures
}
