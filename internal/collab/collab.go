// Package collab defines the external LLM-collaborator contracts
// as opaque Go interfaces, plus one concrete implementation backed by
// an eino chat model (eino.go). The core (internal/updater,
// internal/filemanager, internal/refresolve, internal/reexpand) depends
// only on these interfaces, never on collab's concrete LLM wiring, so the
// whole model-provider dependency tree stays reachable without leaking
// into every caller.
package collab

import (
	"context"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/cluster"
)

// DetailsAgent is `details_agent.run`: given a component,
// produce its expanded sub-analysis plus the per-language cluster results
// that informed it.
type DetailsAgent interface {
	Run(ctx context.Context, component analysismodel.Component, assignedFiles []string) (*analysismodel.AnalysisInsights, map[string]*cluster.Result, error)
}

// Classifier is `classifier.classify_files`: in-place assignment
// of scope_files to a sub-analysis's components.
type Classifier interface {
	ClassifyFiles(ctx context.Context, sub *analysismodel.AnalysisInsights, scopeFiles []string) error
}

// ReferenceResolverLLM is step 5 of the Reference Resolver cascade:
// resolve a qualified name to a concrete path given candidate
// files and the repo directory.
type ReferenceResolverLLM interface {
	ResolveReference(ctx context.Context, qualifiedName string, fileCandidates []string, repoDir string) (path string, startLine, endLine *int, err error)
}
