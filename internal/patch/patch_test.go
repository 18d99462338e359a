package patch

import (
	"testing"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/manifest"
)

func TestInAnalysisRewritesSymmetrically(t *testing.T) {
	insights := &analysismodel.AnalysisInsights{
		Components: []analysismodel.Component{
			{
				Name:          "CompA",
				AssignedFiles: []string{"a/x.go"},
				FileMethods:   []analysismodel.FileMethodGroup{{FilePath: "a/x.go"}},
				KeyEntities:   []analysismodel.SourceCodeReference{{QualifiedName: "a.X", ReferenceFile: "a/x.go"}},
			},
		},
	}
	InAnalysis(insights, Renames{"a/x.go": "a/z.go"})
	c := insights.Components[0]
	if c.AssignedFiles[0] != "a/z.go" || c.FileMethods[0].FilePath != "a/z.go" || c.KeyEntities[0].ReferenceFile != "a/z.go" {
		t.Fatalf("expected symmetric rewrite, got %+v", c)
	}
}

func TestRenameReversibility(t *testing.T) {
	insights := &analysismodel.AnalysisInsights{
		Components: []analysismodel.Component{
			{Name: "CompA", AssignedFiles: []string{"a/x.go", "a/y.go"}},
		},
	}
	renames := Renames{"a/x.go": "a/z.go"}
	inverse := Renames{"a/z.go": "a/x.go"}

	InAnalysis(insights, renames)
	InAnalysis(insights, inverse)

	got := insights.Components[0].AssignedFiles
	want := []string{"a/x.go", "a/y.go"}
	if !pathsEqual(got, want) {
		t.Fatalf("expected reversibility, got %v want %v", got, want)
	}
}

func TestInManifest(t *testing.T) {
	m := manifest.New("c0", "h0")
	m.AddFile("a/x.go", "CompA")
	InManifest(m, Renames{"a/x.go": "a/z.go"})
	if _, ok := m.GetComponentForFile("a/x.go"); ok {
		t.Fatal("old path should be gone")
	}
	if c, ok := m.GetComponentForFile("a/z.go"); !ok || c != "CompA" {
		t.Fatal("new path should map to CompA")
	}
}

func TestSubAnalysisDropsDeletedFilesWithPrefixTolerance(t *testing.T) {
	sub := &analysismodel.AnalysisInsights{
		Components: []analysismodel.Component{
			{
				Name:          "CompA",
				AssignedFiles: []string{"repos/X/a/b.go", "a/c.go"},
				FileMethods:   []analysismodel.FileMethodGroup{{FilePath: "repos/X/a/b.go"}, {FilePath: "a/c.go"}},
			},
		},
	}
	mutated := SubAnalysis(sub, []string{"a/b.go"}, nil)
	if !mutated {
		t.Fatal("expected mutation")
	}
	c := sub.Components[0]
	if len(c.AssignedFiles) != 1 || c.AssignedFiles[0] != "a/c.go" {
		t.Fatalf("expected repos/X/a/b.go dropped via suffix match, got %+v", c.AssignedFiles)
	}
}

func TestSubAnalysisNoOpReturnsFalse(t *testing.T) {
	sub := &analysismodel.AnalysisInsights{
		Components: []analysismodel.Component{{Name: "CompA", AssignedFiles: []string{"a/c.go"}}},
	}
	if SubAnalysis(sub, []string{"does/not/exist.go"}, nil) {
		t.Fatal("expected no mutation")
	}
}
