package analysismodel

import "testing"

func TestHashComponentIDStable(t *testing.T) {
	a := HashComponentID(ROOTParentID, "Auth", 0)
	b := HashComponentID(ROOTParentID, "Auth", 0)
	if a != b {
		t.Fatalf("expected stable hash, got %q and %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %d (%q)", len(a), a)
	}
}

func TestHashComponentIDDistinguishesSiblingIndex(t *testing.T) {
	a := HashComponentID(ROOTParentID, "Worker", 0)
	b := HashComponentID(ROOTParentID, "Worker", 1)
	if a == b {
		t.Fatal("expected different hashes for different sibling indices")
	}
}

func TestHashComponentIDDistinguishesParent(t *testing.T) {
	a := HashComponentID("p1", "X", 0)
	b := HashComponentID("p2", "X", 0)
	if a == b {
		t.Fatal("expected different hashes for different parents")
	}
}

func TestAssignComponentIDsDisambiguatesSameName(t *testing.T) {
	components := []Component{{Name: "Worker"}, {Name: "Worker"}, {Name: "Other"}}
	AssignComponentIDs(ROOTParentID, components)
	if components[0].ComponentID == components[1].ComponentID {
		t.Fatal("expected distinct IDs for same-named siblings")
	}
	if components[0].ComponentID != HashComponentID(ROOTParentID, "Worker", 0) {
		t.Fatal("first Worker should get sibling index 0")
	}
	if components[1].ComponentID != HashComponentID(ROOTParentID, "Worker", 1) {
		t.Fatal("second Worker should get sibling index 1")
	}
}

func TestAnalysisInsightsValidate(t *testing.T) {
	insights := &AnalysisInsights{
		Components: []Component{
			{ComponentID: HashComponentID(ROOTParentID, "A", 0), Name: "A", AssignedFiles: []string{"a.go"},
				FileMethods: []FileMethodGroup{{FilePath: "a.go"}}},
			{ComponentID: HashComponentID(ROOTParentID, "B", 0), Name: "B"},
		},
		ComponentsRelations: []Relation{{Relation: "calls", SrcName: "A", DstName: "B"}},
	}
	if err := insights.Validate(); err != nil {
		t.Fatalf("expected valid insights, got %v", err)
	}
}

func TestAnalysisInsightsValidateRejectsDanglingRelation(t *testing.T) {
	insights := &AnalysisInsights{
		Components:          []Component{{ComponentID: HashComponentID(ROOTParentID, "A", 0), Name: "A"}},
		ComponentsRelations: []Relation{{Relation: "calls", SrcName: "A", DstName: "Ghost"}},
	}
	if err := insights.Validate(); err == nil {
		t.Fatal("expected error for relation referencing nonexistent component")
	}
}

func TestAnalysisInsightsValidateRejectsOrphanFileMethod(t *testing.T) {
	insights := &AnalysisInsights{
		Components: []Component{
			{ComponentID: HashComponentID(ROOTParentID, "A", 0), Name: "A",
				FileMethods: []FileMethodGroup{{FilePath: "missing.go"}}},
		},
	}
	if err := insights.Validate(); err == nil {
		t.Fatal("expected error for file_methods entry not in assigned_files")
	}
}

func TestComponentRemoveFile(t *testing.T) {
	c := &Component{
		AssignedFiles: []string{"a.go", "b.go"},
		FileMethods:   []FileMethodGroup{{FilePath: "a.go"}, {FilePath: "b.go"}},
		KeyEntities:   []SourceCodeReference{{QualifiedName: "pkg.A", ReferenceFile: "a.go"}},
	}
	c.RemoveFile("a.go")
	if c.HasFile("a.go") {
		t.Fatal("expected a.go removed")
	}
	if len(c.FileMethods) != 1 || c.FileMethods[0].FilePath != "b.go" {
		t.Fatalf("expected only b.go file_methods to remain, got %+v", c.FileMethods)
	}
	if len(c.KeyEntities) != 0 {
		t.Fatalf("expected key entity referencing a.go to be dropped, got %+v", c.KeyEntities)
	}
}
