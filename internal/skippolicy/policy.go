// Package skippolicy decides whether a repo-relative path is in scope for
// change detection and file assignment. It is consulted by the Impact
// Analyzer's filter stage and the File Manager's assignment stage.
//
// The primary implementation evaluates a small embedded Rego policy via OPA:
// a guardrail-engine shape (structured input, allow/deny decision, graceful
// fallback) applied to "is this path in scope for analysis" rather than
// command-safety checks. If the embedded policy fails to load (should never
// happen in practice; it is compiled from a constant string), evaluation
// falls back to a pure-Go predicate encoding the same skip rules, so the
// engine never hard-fails on policy issues.
package skippolicy

import (
	"context"
	_ "embed"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed policy.rego
var policySource string

// Policy evaluates whether paths should be skipped.
type Policy struct {
	once       sync.Once
	query      rego.PreparedEvalQuery
	compileErr error
	logger     *slog.Logger
}

// New returns a Policy that lazily compiles the embedded Rego module on
// first use.
func New() *Policy {
	return &Policy{logger: slog.Default()}
}

func (p *Policy) prepare() {
	p.once.Do(func() {
		q, err := rego.New(
			rego.Query("data.increco.skippolicy.skip"),
			rego.Module("policy.rego", policySource),
		).PrepareForEval(context.Background())
		if err != nil {
			p.compileErr = err
			p.logger.Warn("skippolicy: failed to compile embedded Rego policy, falling back to builtin predicate", slog.Any("error", err))
			return
		}
		p.query = q
	})
}

// ShouldSkip reports whether relPath (repo-relative, forward-slash) should
// be excluded from change detection / file assignment.
func (p *Policy) ShouldSkip(ctx context.Context, relPath string) bool {
	p.prepare()
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))

	if p.compileErr == nil {
		results, err := p.query.Eval(ctx, rego.EvalInput(map[string]any{"path": relPath}))
		if err == nil && len(results) > 0 && len(results[0].Expressions) > 0 {
			if skip, ok := results[0].Expressions[0].Value.(bool); ok {
				return skip
			}
		}
		if err != nil {
			p.logger.Warn("skippolicy: rego evaluation failed, falling back to builtin predicate", slog.Any("error", err))
		}
	}
	return ShouldSkipBuiltin(relPath)
}

// ShouldSkipBuiltin is the pure-Go transcription of skip list. It
// is also the direct fallback path used when the Rego policy cannot be
// evaluated.
func ShouldSkipBuiltin(relPath string) bool {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	base := path.Base(relPath)
	segments := strings.Split(relPath, "/")

	for _, seg := range segments {
		if seg == "tests" || seg == "__pycache__" || seg == ".pytest_cache" {
			return true
		}
	}
	if strings.HasPrefix(base, "test_") {
		return true
	}

	// Top-level doc files.
	if len(segments) == 1 {
		for _, prefix := range []string{"README", "CHANGELOG", "LICENSE", "CONTRIBUTING"} {
			if strings.HasPrefix(base, prefix) {
				return true
			}
		}
	}

	packagingManifests := map[string]bool{
		"pyproject.toml": true,
		"setup.py":       true,
		"setup.cfg":      true,
		"Pipfile":        true,
		"package.json":   true,
		"tsconfig.json":  true,
	}
	if packagingManifests[base] || strings.HasSuffix(base, ".lock") {
		return true
	}

	buildCIFiles := map[string]bool{
		"Makefile": true,
		"justfile": true,
	}
	if buildCIFiles[base] || strings.HasPrefix(base, "Dockerfile") {
		return true
	}

	skipExtensions := map[string]bool{
		".md": true, ".txt": true, ".rst": true,
		".yml": true, ".yaml": true, ".json": true, ".toml": true, ".lock": true,
	}
	if skipExtensions[path.Ext(base)] {
		return true
	}

	return false
}
