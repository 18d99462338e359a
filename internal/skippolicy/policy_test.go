package skippolicy

import (
	"context"
	"testing"
)

func TestShouldSkipBuiltin(t *testing.T) {
	cases := map[string]bool{
		"src/main.go":          false,
		"tests/foo_test.go":    true,
		"pkg/test_helper.py":   true,
		"README.md":            true,
		"a/README.md":          true,
		"pyproject.toml":       true,
		"package.json":         true,
		"Makefile":             true,
		"Dockerfile.prod":      true,
		"docs/guide.rst":       true,
		"__pycache__/mod.pyc":  true,
		"internal/updater.go":  false,
		"go.sum.lock":          true,
	}
	for path, want := range cases {
		if got := ShouldSkipBuiltin(path); got != want {
			t.Errorf("ShouldSkipBuiltin(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestPolicyFallsBackConsistentlyWithBuiltin(t *testing.T) {
	p := New()
	ctx := context.Background()
	for _, path := range []string{"src/main.go", "tests/foo_test.go", "README.md", "a/README.md"} {
		if got, want := p.ShouldSkip(ctx, path), ShouldSkipBuiltin(path); got != want {
			t.Errorf("Policy.ShouldSkip(%q) = %v, want %v (builtin)", path, got, want)
		}
	}
}
