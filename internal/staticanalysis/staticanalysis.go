// Package staticanalysis implements the Static Analysis Result: a
// per-language index of call-graph nodes/edges, class hierarchy,
// package dependencies, and a reference lookup, with a disk-backed cache
// keyed by a hash of the working-tree state.
//
// Merge-not-overwrite semantics for repeated add_* calls (monorepo,
// multi-subproject analyses) are carried over from
// original_source/static_analyzer/analysis_result.py.
package staticanalysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codeboarding/increco/internal/impact"
)

// Node mirrors a single call-graph/reference entity: a function, method, or
// class, keyed by its fully qualified name.
type Node struct {
	QualifiedName string
	FilePath      string
	LineStart     int
	LineEnd       int
	Kind          string // "function", "method", "class", ...
}

// Edge is a directed caller→callee call-graph edge.
type Edge struct {
	Source      string
	Destination string
}

// CallGraph is the language-specific call graph: nodes keyed by qualified
// name, plus the directed edge list.
type CallGraph struct {
	Nodes map[string]*Node
	Edges []Edge
}

// NewCallGraph returns an empty, ready-to-use CallGraph.
func NewCallGraph() *CallGraph {
	return &CallGraph{Nodes: map[string]*Node{}}
}

// AddNode inserts or overwrites a node by qualified name.
func (g *CallGraph) AddNode(n *Node) {
	g.Nodes[n.QualifiedName] = n
}

// ErrDuplicateEdge mirrors the original's ValueError-on-duplicate-edge,
// silently skipped by callers merging graphs.
var ErrDuplicateEdge = errors.New("staticanalysis: duplicate edge")

// AddEdge appends the edge unless an identical one already exists.
func (g *CallGraph) AddEdge(src, dst string) error {
	for _, e := range g.Edges {
		if e.Source == src && e.Destination == dst {
			return ErrDuplicateEdge
		}
	}
	g.Edges = append(g.Edges, Edge{Source: src, Destination: dst})
	return nil
}

// HierarchyEntry is one class's position in get_hierarchy's per-language map.
type HierarchyEntry struct {
	Superclasses []string
	Subclasses   []string
	FilePath     string
	LineStart    int
	LineEnd      int
}

// languageResults bundles the four views for one language.
type languageResults struct {
	cfg          *CallGraph
	hierarchy    map[string]HierarchyEntry
	dependencies map[string]string
	references   map[string]*Node // keyed lower-case, per the original's case-insensitive index
	sourceFiles  []string
}

// ErrNotFound is returned by the get_* accessors when no data exists for a
// language/key pair.
var ErrNotFound = errors.New("staticanalysis: not found")

// ErrIsFilePath is the distinguishable error requires:
// get_reference found that the queried qualified name is a prefix of at
// least one known reference's qname, meaning the caller passed a file path
// rather than an entity qname.
var ErrIsFilePath = errors.New("staticanalysis: qualified name is a file path, not an entity")

// Results is the in-memory per-language index (Python's StaticAnalysisResults).
type Results struct {
	byLanguage map[string]*languageResults
}

// New returns an empty Results.
func New() *Results {
	return &Results{byLanguage: map[string]*languageResults{}}
}

func (r *Results) lang(language string) *languageResults {
	lr, ok := r.byLanguage[language]
	if !ok {
		lr = &languageResults{
			hierarchy:    map[string]HierarchyEntry{},
			dependencies: map[string]string{},
			references:   map[string]*Node{},
		}
		r.byLanguage[language] = lr
	}
	return lr
}

// AddClassHierarchy merges hierarchy entries for language, overwriting
// individual qname keys but preserving everything else already present.
func (r *Results) AddClassHierarchy(language string, hierarchy map[string]HierarchyEntry) {
	lr := r.lang(language)
	for k, v := range hierarchy {
		lr.hierarchy[k] = v
	}
}

// AddCFG merges cfg into the existing call graph for language: new nodes
// are added, new edges are appended (duplicates skipped), matching
// add_cfg's merge-not-overwrite behavior.
func (r *Results) AddCFG(language string, cfg *CallGraph) {
	lr := r.lang(language)
	if lr.cfg == nil {
		lr.cfg = cfg
		return
	}
	for _, n := range cfg.Nodes {
		lr.cfg.AddNode(n)
	}
	for _, e := range cfg.Edges {
		_ = lr.cfg.AddEdge(e.Source, e.Destination) // duplicates silently skipped, per the original
	}
}

// AddPackageDependencies merges a language's package dependency map.
func (r *Results) AddPackageDependencies(language string, deps map[string]string) {
	lr := r.lang(language)
	for k, v := range deps {
		lr.dependencies[k] = v
	}
}

// AddReferences merges references into language's reference index, keyed
// case-insensitively by qualified name.
func (r *Results) AddReferences(language string, refs []*Node) {
	lr := r.lang(language)
	for _, ref := range refs {
		lr.references[strings.ToLower(ref.QualifiedName)] = ref
	}
}

// AddSourceFiles extends language's source file list.
func (r *Results) AddSourceFiles(language string, files []string) {
	lr := r.lang(language)
	lr.sourceFiles = append(lr.sourceFiles, files...)
}

// GetCFG returns language's call graph.
func (r *Results) GetCFG(language string) (*CallGraph, error) {
	lr, ok := r.byLanguage[language]
	if !ok || lr.cfg == nil {
		return nil, fmt.Errorf("%w: call graph for language %q", ErrNotFound, language)
	}
	return lr.cfg, nil
}

// GetHierarchy returns language's class hierarchy map.
func (r *Results) GetHierarchy(language string) (map[string]HierarchyEntry, error) {
	lr, ok := r.byLanguage[language]
	if !ok || len(lr.hierarchy) == 0 {
		return nil, fmt.Errorf("%w: class hierarchy for language %q", ErrNotFound, language)
	}
	return lr.hierarchy, nil
}

// GetPackageDependencies returns language's package dependency map.
func (r *Results) GetPackageDependencies(language string) (map[string]string, error) {
	lr, ok := r.byLanguage[language]
	if !ok || len(lr.dependencies) == 0 {
		return nil, fmt.Errorf("%w: package dependencies for language %q", ErrNotFound, language)
	}
	return lr.dependencies, nil
}

// GetReference resolves qualifiedName exactly (case-insensitively) within
// language. If no exact match exists but qualifiedName is a prefix of some
// known reference's qname, it returns ErrIsFilePath instead of ErrNotFound
// so callers (internal/refresolve) can distinguish "absent" from
// "you queried a file path, not an entity".
func (r *Results) GetReference(language, qualifiedName string) (*Node, error) {
	lowerQN := strings.ToLower(qualifiedName)
	lr, ok := r.byLanguage[language]
	if ok {
		if n, ok := lr.references[lowerQN]; ok {
			return n, nil
		}
		for ref := range lr.references {
			if strings.HasPrefix(ref, lowerQN) {
				return nil, fmt.Errorf("%w: %q in language %q", ErrIsFilePath, qualifiedName, language)
			}
		}
	}
	return nil, fmt.Errorf("%w: reference %q in language %q", ErrNotFound, qualifiedName, language)
}

// GetLooseReference implements the loose-match cascade: prefer the unique
// reference whose qname ends with the query; otherwise, if exactly one
// qname contains the query as a substring, return that; otherwise
// ("", nil, false).
func (r *Results) GetLooseReference(language, qualifiedName string) (matchedQName string, node *Node, found bool) {
	lowerQN := strings.ToLower(qualifiedName)
	lr, ok := r.byLanguage[language]
	if !ok {
		return "", nil, false
	}

	var suffixRefs, subsetRefs []string
	for ref := range lr.references {
		if strings.HasSuffix(ref, lowerQN) {
			suffixRefs = append(suffixRefs, ref)
		}
		if strings.Contains(ref, lowerQN) {
			subsetRefs = append(subsetRefs, ref)
		}
	}
	if len(suffixRefs) == 1 {
		return suffixRefs[0], lr.references[suffixRefs[0]], true
	}
	if len(subsetRefs) == 1 {
		return subsetRefs[0], lr.references[subsetRefs[0]], true
	}
	return "", nil, false
}

// AllReferences returns every node indexed as a reference under language,
// in no particular order. internal/refresolve uses this to build a
// candidate list for fuzzy loose-matching.
func (r *Results) AllReferences(language string) []*Node {
	lr, ok := r.byLanguage[language]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(lr.references))
	for _, n := range lr.references {
		out = append(out, n)
	}
	return out
}

// Languages returns every language with at least one recorded result.
func (r *Results) Languages() []string {
	out := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		out = append(out, lang)
	}
	return out
}

// GetSourceFiles returns language's recorded source files.
func (r *Results) GetSourceFiles(language string) []string {
	lr, ok := r.byLanguage[language]
	if !ok {
		return nil
	}
	return lr.sourceFiles
}

// GetAllSourceFiles concatenates source files across every language.
func (r *Results) GetAllSourceFiles() []string {
	var all []string
	for lang := range r.byLanguage {
		all = append(all, r.GetSourceFiles(lang)...)
	}
	return all
}

// NodesInFile returns every node across all languages located in file
// (or the node whose qualified name equals file), together with the
// qualified names of everything it calls or is called by. This directly
// satisfies impact.StaticAnalysis, so *Results can be passed straight to
// impact.NewAnalyzer without an adapter.
func (r *Results) NodesInFile(file string) []impact.CallGraphNode {
	var out []impact.CallGraphNode
	for _, lr := range r.byLanguage {
		if lr.cfg == nil {
			continue
		}
		for _, n := range lr.cfgNodesOrEmpty() {
			if n.FilePath != file && n.QualifiedName != file {
				continue
			}
			var edges []string
			for _, e := range lr.cfg.Edges {
				if e.Source == n.QualifiedName {
					edges = append(edges, e.Destination)
				} else if e.Destination == n.QualifiedName {
					edges = append(edges, e.Source)
				}
			}
			out = append(out, impact.CallGraphNode{File: n.FilePath, Edges: edges})
		}
	}
	return out
}

func (lr *languageResults) cfgNodesOrEmpty() []*Node {
	if lr.cfg == nil {
		return nil
	}
	out := make([]*Node, 0, len(lr.cfg.Nodes))
	for _, n := range lr.cfg.Nodes {
		out = append(out, n)
	}
	return out
}

// CallersOf returns the qualified names of every node with an edge into
// qualifiedName, across all languages.
func (r *Results) CallersOf(qualifiedName string) []string {
	var out []string
	for _, lr := range r.byLanguage {
		if lr.cfg == nil {
			continue
		}
		for _, e := range lr.cfg.Edges {
			if e.Destination == qualifiedName {
				out = append(out, e.Source)
			}
		}
	}
	return out
}
