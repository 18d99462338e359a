package unifiedstore

import (
	"github.com/codeboarding/increco/internal/analysismodel"
)

// wireFile is the on-disk shape of analysis.json: a recursive JSON tree
// where each component may carry its own nested "components"/
// "components_relations" holding its sub-analysis, and so on to arbitrary
// depth.
type wireFile struct {
	Metadata             analysismodel.Metadata `json:"metadata"`
	Description          string                 `json:"description,omitempty"`
	Components           []wireComponent         `json:"components"`
	ComponentsRelations  []analysismodel.Relation `json:"components_relations,omitempty"`
}

// wireComponent is analysismodel.Component plus the optional nested
// sub-analysis fields used only at rest.
type wireComponent struct {
	ComponentID      string                              `json:"component_id"`
	Name             string                              `json:"name"`
	Description      string                              `json:"description,omitempty"`
	KeyEntities      []analysismodel.SourceCodeReference `json:"key_entities,omitempty"`
	AssignedFiles    []string                            `json:"assigned_files,omitempty"`
	FileMethods      []analysismodel.FileMethodGroup     `json:"file_methods,omitempty"`
	SourceClusterIDs []int                               `json:"source_cluster_ids,omitempty"`

	// Present only when this component is expanded.
	Components          []wireComponent          `json:"components,omitempty"`
	ComponentsRelations []analysismodel.Relation `json:"components_relations,omitempty"`
}

func (w wireComponent) toComponent() analysismodel.Component {
	return analysismodel.Component{
		ComponentID:      w.ComponentID,
		Name:             w.Name,
		Description:      w.Description,
		KeyEntities:      w.KeyEntities,
		AssignedFiles:    w.AssignedFiles,
		FileMethods:      w.FileMethods,
		SourceClusterIDs: w.SourceClusterIDs,
	}
}

func fromComponent(c analysismodel.Component) wireComponent {
	return wireComponent{
		ComponentID:      c.ComponentID,
		Name:             c.Name,
		Description:      c.Description,
		KeyEntities:      c.KeyEntities,
		AssignedFiles:    c.AssignedFiles,
		FileMethods:      c.FileMethods,
		SourceClusterIDs: c.SourceClusterIDs,
	}
}

// key returns the component's canonical lookup key, preferring ComponentID
// and falling back to Name for legacy-shaped data (DESIGN.md Open Question #2).
func (w wireComponent) key() string {
	if w.ComponentID != "" {
		return w.ComponentID
	}
	return w.Name
}

// flatten materializes a wireFile into the root AnalysisInsights (with
// non-nested components at that level) and a flat map from component key to
// every nested sub-AnalysisInsights found at any depth, so callers can
// access any sub-tree in O(1) regardless of how deeply it is nested.
func flatten(wf wireFile) (root *analysismodel.AnalysisInsights, subs map[string]*analysismodel.AnalysisInsights) {
	subs = make(map[string]*analysismodel.AnalysisInsights)

	root = &analysismodel.AnalysisInsights{
		Description:         wf.Description,
		ComponentsRelations: wf.ComponentsRelations,
	}
	for _, wc := range wf.Components {
		root.Components = append(root.Components, wc.toComponent())
		collectSub(wc, subs)
	}
	return root, subs
}

func collectSub(wc wireComponent, subs map[string]*analysismodel.AnalysisInsights) {
	if len(wc.Components) == 0 && len(wc.ComponentsRelations) == 0 {
		return
	}
	sub := &analysismodel.AnalysisInsights{ComponentsRelations: wc.ComponentsRelations}
	for _, child := range wc.Components {
		sub.Components = append(sub.Components, child.toComponent())
		collectSub(child, subs)
	}
	subs[wc.key()] = sub
}

// unflatten is the inverse of flatten: given a root AnalysisInsights and the
// flat map of sub-analyses, it rebuilds the nested wireFile for
// serialization. Any component with no entry in subs is written without a
// nested sub-analysis (i.e. it is not yet expanded).
func unflatten(meta analysismodel.Metadata, root *analysismodel.AnalysisInsights, subs map[string]*analysismodel.AnalysisInsights) wireFile {
	wf := wireFile{
		Metadata:            meta,
		Description:         root.Description,
		ComponentsRelations: root.ComponentsRelations,
	}
	for _, c := range root.Components {
		wf.Components = append(wf.Components, buildWireComponent(c, subs))
	}
	return wf
}

func buildWireComponent(c analysismodel.Component, subs map[string]*analysismodel.AnalysisInsights) wireComponent {
	wc := fromComponent(c)
	key := c.ComponentID
	if key == "" {
		key = c.Name
	}
	sub, ok := subs[key]
	if !ok || sub == nil {
		return wc
	}
	wc.ComponentsRelations = sub.ComponentsRelations
	for _, child := range sub.Components {
		wc.Components = append(wc.Components, buildWireComponent(child, subs))
	}
	return wc
}

// depthLevel computes 1 + max(child depth) across sub, recursively; 1 if no
// sub-analyses exist anywhere beneath root.
func depthLevel(root *analysismodel.AnalysisInsights, subs map[string]*analysismodel.AnalysisInsights) int {
	maxChild := 0
	for _, c := range root.Components {
		key := c.ComponentID
		if key == "" {
			key = c.Name
		}
		if sub, ok := subs[key]; ok && sub != nil {
			d := depthLevel(sub, subs)
			if d > maxChild {
				maxChild = d
			}
		}
	}
	return 1 + maxChild
}
