package component

import (
	"testing"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/impact"
	"github.com/codeboarding/increco/internal/manifest"
)

type fakeStore struct {
	expanded map[string]bool
}

func (f *fakeStore) HasSubAnalysis(componentID string) bool { return f.expanded[componentID] }

func TestIsExpandedComponentViaManifest(t *testing.T) {
	m := manifest.New("c0", "h0")
	m.MarkExpanded("CompA")
	if !IsExpandedComponent("CompA", m, nil) {
		t.Fatal("expected expanded via manifest")
	}
}

func TestIsExpandedComponentViaStore(t *testing.T) {
	m := manifest.New("c0", "h0")
	store := &fakeStore{expanded: map[string]bool{"CompA": true}}
	if !IsExpandedComponent("CompA", m, store) {
		t.Fatal("expected expanded via store")
	}
	if IsExpandedComponent("CompB", m, store) {
		t.Fatal("expected CompB not expanded")
	}
}

func TestComponentHasOnlyRenamesTrue(t *testing.T) {
	m := manifest.New("c0", "h0")
	m.AddFile("a/z.py", "CompA")
	imp := &impact.ChangeImpact{
		Renames:       map[string]string{"a/x.py": "a/z.py"},
		DeletedFiles:  nil,
		ModifiedFiles: nil,
	}
	if !ComponentHasOnlyRenames("CompA", m, imp) {
		t.Fatal("expected only-renames true")
	}
}

func TestComponentHasOnlyRenamesFalseOnContentChange(t *testing.T) {
	m := manifest.New("c0", "h0")
	m.AddFile("a/x.py", "CompA")
	imp := &impact.ChangeImpact{ModifiedFiles: []string{"a/x.py"}}
	if ComponentHasOnlyRenames("CompA", m, imp) {
		t.Fatal("expected false: a/x.py content modified, not renamed")
	}
}

func TestComponentHasOnlyRenamesFalseOnUnrelatedDeletion(t *testing.T) {
	m := manifest.New("c0", "h0")
	m.AddFile("a/x.py", "CompA")
	imp := &impact.ChangeImpact{DeletedFiles: []string{"a/x.py"}}
	if ComponentHasOnlyRenames("CompA", m, imp) {
		t.Fatal("expected false: deletion is not the old side of any rename")
	}
}

func TestCanPatchSubAnalysis(t *testing.T) {
	m := manifest.New("c0", "h0")
	m.AddFile("a/x.py", "CompA")
	store := &fakeStore{expanded: map[string]bool{"CompA": true}}
	root := &analysismodel.AnalysisInsights{Components: []analysismodel.Component{{ComponentID: "CompA", Name: "CompA"}}}

	imp := &impact.ChangeImpact{AddedFiles: []string{"a/new.py"}}
	if !CanPatchSubAnalysis("CompA", m, imp, store, root) {
		t.Fatal("expected patchable: additions are allowed")
	}

	imp2 := &impact.ChangeImpact{DeletedFiles: []string{"a/x.py"}}
	if CanPatchSubAnalysis("CompA", m, imp2, store, root) {
		t.Fatal("expected not patchable: a deletion within the sub-analysis")
	}
}

func TestCanPatchSubAnalysisRequiresExistingSubAnalysis(t *testing.T) {
	m := manifest.New("c0", "h0")
	store := &fakeStore{}
	root := &analysismodel.AnalysisInsights{Components: []analysismodel.Component{{ComponentID: "CompA"}}}
	if CanPatchSubAnalysis("CompA", m, &impact.ChangeImpact{}, store, root) {
		t.Fatal("expected false: no sub-analysis exists")
	}
}
