// Package analysismodel defines the typed entities that flow through the
// incremental analysis engine: components, relations, source references,
// and the tree they form. The package is data-only except for the
// deterministic component-identity hash, which must be stable across runs
// so that incremental recomputation produces the same IDs for the same
// logical components.
package analysismodel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ROOTParentID is the sentinel parent used when hashing top-level component IDs.
const ROOTParentID = "__root__"

var validate = validator.New()

// SourceCodeReference maps a qualified name to a concrete location on disk.
// After resolution, ReferenceFile must exist on disk and the line fields must
// both be present or both be absent (1-based).
type SourceCodeReference struct {
	QualifiedName      string `json:"qualified_name" validate:"required"`
	ReferenceFile      string `json:"reference_file,omitempty"`
	ReferenceStartLine *int   `json:"reference_start_line,omitempty"`
	ReferenceEndLine   *int   `json:"reference_end_line,omitempty"`
}

// Resolved reports whether the reference has been mapped to a file.
func (r SourceCodeReference) Resolved() bool {
	return r.ReferenceFile != ""
}

// Validate checks the "both or neither" line invariant.
func (r SourceCodeReference) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("source code reference %q: %w", r.QualifiedName, err)
	}
	if (r.ReferenceStartLine == nil) != (r.ReferenceEndLine == nil) {
		return fmt.Errorf("source code reference %q: start/end line must both be set or both be absent", r.QualifiedName)
	}
	if r.ReferenceStartLine != nil && *r.ReferenceStartLine < 1 {
		return fmt.Errorf("source code reference %q: line numbers must be 1-based", r.QualifiedName)
	}
	return nil
}

// NodeType mirrors the LSP SymbolKind categories relevant to grouping.
type NodeType string

const (
	NodeFunction  NodeType = "function"
	NodeMethod    NodeType = "method"
	NodeClass     NodeType = "class"
	NodeVariable  NodeType = "variable"
	NodeConstant  NodeType = "constant"
	NodeInterface NodeType = "interface"
)

// MethodEntry records a callable/class node placed in a file for a component.
type MethodEntry struct {
	QualifiedName string   `json:"qualified_name" validate:"required"`
	StartLine     int      `json:"start_line" validate:"min=1"`
	EndLine       int      `json:"end_line" validate:"min=1"`
	NodeType      NodeType `json:"node_type,omitempty"`
}

// FileMethodGroup groups the methods the static analyzer places in one file,
// sorted by StartLine within the file.
type FileMethodGroup struct {
	FilePath string        `json:"file_path" validate:"required"`
	Methods  []MethodEntry `json:"methods"`
}

// Component is one node of the architecture tree.
type Component struct {
	ComponentID      string                `json:"component_id" validate:"required,len=16,hexadecimal"`
	Name             string                `json:"name" validate:"required"`
	Description      string                `json:"description,omitempty"`
	KeyEntities      []SourceCodeReference `json:"key_entities,omitempty"`
	AssignedFiles    []string              `json:"assigned_files,omitempty"`
	FileMethods      []FileMethodGroup     `json:"file_methods,omitempty"`
	SourceClusterIDs []int                 `json:"source_cluster_ids,omitempty"`
}

// HasFile reports whether path is in AssignedFiles.
func (c *Component) HasFile(path string) bool {
	for _, f := range c.AssignedFiles {
		if f == path {
			return true
		}
	}
	return false
}

// AddFile appends path to AssignedFiles if not already present.
func (c *Component) AddFile(path string) {
	if !c.HasFile(path) {
		c.AssignedFiles = append(c.AssignedFiles, path)
	}
}

// RemoveFile drops path from AssignedFiles, FileMethods, and any KeyEntities
// referencing it.
func (c *Component) RemoveFile(path string) {
	c.AssignedFiles = removeString(c.AssignedFiles, path)

	kept := c.FileMethods[:0]
	for _, fm := range c.FileMethods {
		if fm.FilePath != path {
			kept = append(kept, fm)
		}
	}
	c.FileMethods = kept

	keptEntities := c.KeyEntities[:0]
	for _, ke := range c.KeyEntities {
		if ke.ReferenceFile != path {
			keptEntities = append(keptEntities, ke)
		}
	}
	c.KeyEntities = keptEntities
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// Relation is a named directed edge between two components at the same scope.
type Relation struct {
	Relation string `json:"relation" validate:"required"`
	SrcName  string `json:"src_name" validate:"required"`
	DstName  string `json:"dst_name" validate:"required"`
}

// AnalysisInsights is a single level of the architecture tree: a description,
// its components, and the relations between them. Nested sub-analyses for
// expanded components are stored out-of-band in the Unified Store, not
// embedded here, per the "flat list + ID-based relations" design note.
type AnalysisInsights struct {
	Description         string     `json:"description,omitempty"`
	Components          []Component `json:"components"`
	ComponentsRelations []Relation  `json:"components_relations,omitempty"`
}

// ComponentByID returns the component with the given ID, if present.
func (a *AnalysisInsights) ComponentByID(id string) *Component {
	for i := range a.Components {
		if a.Components[i].ComponentID == id {
			return &a.Components[i]
		}
	}
	return nil
}

// ComponentByName returns the first component with the given name, if
// present. Name lookup exists only for backward-compatible reads of
// legacy-shaped data (see DESIGN.md Open Question #2); new code should
// prefer ComponentByID.
func (a *AnalysisInsights) ComponentByName(name string) *Component {
	for i := range a.Components {
		if a.Components[i].Name == name {
			return &a.Components[i]
		}
	}
	return nil
}

// Validate checks the cross-component invariants from : relation
// endpoints exist, component IDs are unique within this scope, and every
// file_methods entry appears in assigned_files.
func (a *AnalysisInsights) Validate() error {
	seen := make(map[string]bool, len(a.Components))
	names := make(map[string]bool, len(a.Components))
	for _, c := range a.Components {
		if seen[c.ComponentID] {
			return fmt.Errorf("duplicate component_id %q at this scope", c.ComponentID)
		}
		seen[c.ComponentID] = true
		names[c.Name] = true

		fileSet := make(map[string]bool, len(c.AssignedFiles))
		for _, f := range c.AssignedFiles {
			fileSet[f] = true
		}
		for _, fm := range c.FileMethods {
			if !fileSet[fm.FilePath] {
				return fmt.Errorf("component %q: file_methods path %q not in assigned_files", c.Name, fm.FilePath)
			}
		}
		for _, ke := range c.KeyEntities {
			if err := ke.Validate(); err != nil {
				return fmt.Errorf("component %q: %w", c.Name, err)
			}
		}
	}
	for _, r := range a.ComponentsRelations {
		if !names[r.SrcName] {
			return fmt.Errorf("relation %q: src_name %q is not a component at this scope", r.Relation, r.SrcName)
		}
		if !names[r.DstName] {
			return fmt.Errorf("relation %q: dst_name %q is not a component at this scope", r.Relation, r.DstName)
		}
	}
	return nil
}

// Metadata is the root-level metadata object persisted alongside an
// AnalysisInsights tree.
type Metadata struct {
	GeneratedAt          time.Time `json:"generated_at"`
	RepoName             string    `json:"repo_name"`
	DepthLevel           int       `json:"depth_level"`
	FileCoverageSummary  *float64  `json:"file_coverage_summary,omitempty"`
}

// HashComponentID deterministically derives a stable 16-hex-character
// component identifier from its parent's ID, its name, and its index among
// siblings sharing that name. siblingIndex should be 0 for the first
// component with a given name under a given parent, 1 for the second, etc.,
// so that two components with the same name can still be distinguished.
func HashComponentID(parentID, name string, siblingIndex int) string {
	if parentID == "" {
		parentID = ROOTParentID
	}
	canonical := fmt.Sprintf("%s\x00%s\x00%d", parentID, name, siblingIndex)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:16]
}

// AssignComponentIDs walks a freshly-built (pre-hash) set of components at
// one scope and assigns deterministic IDs, disambiguating same-named
// siblings by first-seen order.
func AssignComponentIDs(parentID string, components []Component) {
	seen := make(map[string]int)
	for i := range components {
		idx := seen[components[i].Name]
		seen[components[i].Name] = idx + 1
		components[i].ComponentID = HashComponentID(parentID, components[i].Name, idx)
	}
}
