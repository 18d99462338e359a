package refresolve

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/staticanalysis"
)

func newTestFs(files ...string) afero.Fs {
	fs := afero.NewMemMapFs()
	for _, f := range files {
		_ = afero.WriteFile(fs, f, []byte("x"), 0o644)
	}
	return fs
}

func TestResolveExactMatch(t *testing.T) {
	sa := staticanalysis.New()
	sa.AddReferences("python", []*staticanalysis.Node{{QualifiedName: "pkg.Foo", FilePath: "/repo/pkg/foo.py", LineStart: 4, LineEnd: 9}})

	analysis := &analysismodel.AnalysisInsights{Components: []analysismodel.Component{
		{Name: "CompA", KeyEntities: []analysismodel.SourceCodeReference{{QualifiedName: "pkg.Foo"}}},
	}}

	r := New("/repo", sa, nil).WithFs(newTestFs("/repo/pkg/foo.py"))
	r.Resolve(context.Background(), analysis)

	ref := analysis.Components[0].KeyEntities[0]
	if ref.ReferenceFile != "pkg/foo.py" {
		t.Fatalf("expected repo-relative path, got %q", ref.ReferenceFile)
	}
	if ref.ReferenceStartLine == nil || *ref.ReferenceStartLine != 5 {
		t.Fatalf("expected 1-based start line 5, got %v", ref.ReferenceStartLine)
	}
}

func TestResolveAlreadyResolvedSkipsReResolution(t *testing.T) {
	sa := staticanalysis.New()
	analysis := &analysismodel.AnalysisInsights{Components: []analysismodel.Component{
		{Name: "CompA", KeyEntities: []analysismodel.SourceCodeReference{{QualifiedName: "pkg.Foo", ReferenceFile: "/repo/already.py"}}},
	}}
	r := New("/repo", sa, nil).WithFs(newTestFs("/repo/already.py"))
	r.Resolve(context.Background(), analysis)

	if analysis.Components[0].KeyEntities[0].ReferenceFile != "already.py" {
		t.Fatalf("expected already-resolved reference kept (relativized), got %q", analysis.Components[0].KeyEntities[0].ReferenceFile)
	}
}

func TestResolveDropsUnresolvedReference(t *testing.T) {
	sa := staticanalysis.New()
	analysis := &analysismodel.AnalysisInsights{Components: []analysismodel.Component{
		{Name: "CompA", KeyEntities: []analysismodel.SourceCodeReference{{QualifiedName: "totally.unknown.Thing"}}},
	}}
	r := New("/repo", sa, nil).WithFs(newTestFs())
	r.Resolve(context.Background(), analysis)

	if len(analysis.Components[0].KeyEntities) != 0 {
		t.Fatalf("expected unresolved reference dropped, got %+v", analysis.Components[0].KeyEntities)
	}
}

func TestResolveQualifiedNameAsPath(t *testing.T) {
	sa := staticanalysis.New() // no languages registered, forcing the path-based tiers
	analysis := &analysismodel.AnalysisInsights{Components: []analysismodel.Component{
		{Name: "CompA", KeyEntities: []analysismodel.SourceCodeReference{{QualifiedName: "pkg.mod"}}},
	}}
	r := New("/repo", sa, nil).WithFs(newTestFs("/repo/pkg/mod.py"))
	r.Resolve(context.Background(), analysis)

	if len(analysis.Components[0].KeyEntities) != 1 {
		t.Fatalf("expected reference resolved via qname-as-path, got %+v", analysis.Components[0].KeyEntities)
	}
	if analysis.Components[0].KeyEntities[0].ReferenceFile != "pkg/mod.py" {
		t.Fatalf("unexpected resolved path: %q", analysis.Components[0].KeyEntities[0].ReferenceFile)
	}
}

func TestResolveAssignedFileSuffixFallback(t *testing.T) {
	sa := staticanalysis.New()
	analysis := &analysismodel.AnalysisInsights{Components: []analysismodel.Component{
		{Name: "CompA", AssignedFiles: []string{"src/nested/mod.py"},
			KeyEntities: []analysismodel.SourceCodeReference{{QualifiedName: "pkg.mod"}}},
	}}
	// pkg/mod.py and pkg/mod.{py,ts,tsx} don't exist, so the cascade must
	// fall through to the assigned-files suffix probe.
	r := New("/repo", sa, nil).WithFs(newTestFs("src/nested/mod.py"))
	r.Resolve(context.Background(), analysis)

	if len(analysis.Components[0].KeyEntities) != 1 {
		t.Fatalf("expected resolution via assigned-file suffix match, got %+v", analysis.Components[0].KeyEntities)
	}
}

type fakeLLM struct {
	path       string
	start, end int
}

func (f fakeLLM) ResolveReference(ctx context.Context, qualifiedName string, fileCandidates []string, repoDir string) (string, *int, *int, error) {
	s, e := f.start, f.end
	return f.path, &s, &e, nil
}

func TestResolveLLMFallback(t *testing.T) {
	sa := staticanalysis.New()
	analysis := &analysismodel.AnalysisInsights{Components: []analysismodel.Component{
		{Name: "CompA", KeyEntities: []analysismodel.SourceCodeReference{{QualifiedName: "obscure.Thing"}}},
	}}
	r := New("/repo", sa, fakeLLM{path: "weird/place.py", start: 1, end: 2}).WithFs(newTestFs("/repo/weird/place.py"))
	r.Resolve(context.Background(), analysis)

	if len(analysis.Components[0].KeyEntities) != 1 {
		t.Fatalf("expected LLM-resolved reference kept, got %+v", analysis.Components[0].KeyEntities)
	}
	if analysis.Components[0].KeyEntities[0].ReferenceFile != "weird/place.py" {
		t.Fatalf("unexpected resolved path: %q", analysis.Components[0].KeyEntities[0].ReferenceFile)
	}
}
