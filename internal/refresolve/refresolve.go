// Package refresolve implements the Reference Resolver: the
// exact → loose → existing-file → qname-as-path → LLM-assisted cascade
// that maps every SourceCodeReference.QualifiedName to a concrete file and,
// where possible, a 1-based line range.
//
// Grounded on original_source/static_analyzer/reference_resolve_mixin.py's
// ReferenceResolverMixin, translated method-for-method; the loose tier is
// generalized to use sahilm/fuzzy for ranking when the strict
// ends-with/contains rule is ambiguous, rather than giving up outright.
package refresolve

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/afero"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/staticanalysis"
)

// LLMResolver is the opaque collaborator contract for step 5 of the
// cascade: given a qualified name, the owning component's candidate
// files, and the repo directory, return a resolved path and optional
// 1-based line range. A nil LLMResolver simply skips step 5.
type LLMResolver interface {
	ResolveReference(ctx context.Context, qualifiedName string, fileCandidates []string, repoDir string) (path string, startLine, endLine *int, err error)
}

// knownExtensions mirrors the mixin's hardcoded candidate suffixes.
var knownExtensions = []string{".py", ".ts", ".tsx"}

// Resolver runs the reference-resolution cascade over an AnalysisInsights.
type Resolver struct {
	repoDir string
	sa      *staticanalysis.Results
	llm     LLMResolver
	fs      afero.Fs
	logger  *slog.Logger
}

// New constructs a Resolver. llm may be nil to skip the LLM-assisted tier.
func New(repoDir string, sa *staticanalysis.Results, llm LLMResolver) *Resolver {
	return &Resolver{repoDir: repoDir, sa: sa, llm: llm, fs: afero.NewOsFs(), logger: slog.Default()}
}

// WithFs overrides the filesystem used for existence checks, for tests.
func (r *Resolver) WithFs(fs afero.Fs) *Resolver {
	r.fs = fs
	return r
}

// Resolve runs fix_source_code_reference_lines over every component's
// key_entities: skip already-resolved-and-existing references, otherwise
// run the cascade; drop anything still unresolved afterward; finally
// rewrite every resolved path to be repo-relative.
func (r *Resolver) Resolve(ctx context.Context, analysis *analysismodel.AnalysisInsights) {
	for i := range analysis.Components {
		c := &analysis.Components[i]
		for j := range c.KeyEntities {
			ref := &c.KeyEntities[j]
			if ref.ReferenceFile != "" && r.exists(ref.ReferenceFile) {
				continue
			}
			r.resolveSingle(ctx, ref, c.AssignedFiles)
		}
	}
	r.removeUnresolved(analysis)
	r.relativizePaths(analysis)
}

func (r *Resolver) exists(p string) bool {
	ok, err := afero.Exists(r.fs, p)
	return err == nil && ok
}

// resolveSingle orchestrates the cascade for one reference, normalizing
// path separators in the qualified name to dots first (mixin:
// `qname = reference.qualified_name.replace(os.sep, ".")`).
func (r *Resolver) resolveSingle(ctx context.Context, ref *analysismodel.SourceCodeReference, fileCandidates []string) {
	qname := strings.ReplaceAll(ref.QualifiedName, string(filepath.Separator), ".")
	qname = strings.ReplaceAll(qname, "/", ".")

	langs := r.sa.Languages()
	if len(langs) == 0 {
		// Steps 3/4 (file-path based) don't depend on language-indexed
		// data; run them once even when no static-analysis language is
		// registered at all, rather than skipping resolution entirely.
		langs = []string{""}
	}
	for _, lang := range langs {
		if r.tryExactMatch(ref, qname, lang) {
			return
		}
		if r.tryLooseMatch(ref, qname, lang) {
			return
		}
		if r.tryFilePathResolution(ref, qname, lang, fileCandidates) {
			return
		}
	}

	if r.llm != nil {
		if r.tryLLM(ctx, ref, qname, fileCandidates) {
			return
		}
	}

	r.logger.Warn("refresolve: could not resolve reference in any language", slog.String("qualified_name", ref.QualifiedName))
}

func (r *Resolver) tryExactMatch(ref *analysismodel.SourceCodeReference, qname, lang string) bool {
	node, err := r.sa.GetReference(lang, qname)
	if err != nil {
		if !errors.Is(err, staticanalysis.ErrNotFound) && !errors.Is(err, staticanalysis.ErrIsFilePath) {
			r.logger.Warn("refresolve: unexpected exact-match error", slog.String("qname", qname), slog.Any("error", err))
		}
		return false
	}
	applyNode(ref, node, qname)
	return true
}

// tryLooseMatch first runs the strict loose-reference rule (endswith
// preferred, unique-contains fallback); if that is inconclusive, it ranks
// every known reference for the language with sahilm/fuzzy and accepts the
// top match when one is clearly ahead, rather than giving up the way the
// strict rule does on ambiguity.
func (r *Resolver) tryLooseMatch(ref *analysismodel.SourceCodeReference, qname, lang string) bool {
	if matchedQName, node, found := r.sa.GetLooseReference(lang, qname); found {
		applyNode(ref, node, matchedQName)
		return true
	}

	candidates := r.sa.AllReferences(lang)
	if len(candidates) == 0 {
		return false
	}
	names := make([]string, len(candidates))
	for i, n := range candidates {
		names[i] = n.QualifiedName
	}
	matches := fuzzy.Find(qname, fuzzySource(names))
	if len(matches) == 0 {
		return false
	}
	best := matches[0]
	if len(matches) > 1 && matches[1].Score == best.Score {
		return false // genuinely ambiguous, same as the strict rule's behavior
	}
	applyNode(ref, candidates[best.Index], candidates[best.Index].QualifiedName)
	return true
}

type fuzzySource []string

func (s fuzzySource) String(i int) string { return s[i] }
func (s fuzzySource) Len() int            { return len(s) }

func applyNode(ref *analysismodel.SourceCodeReference, node *staticanalysis.Node, qname string) {
	ref.ReferenceFile = node.FilePath
	start := node.LineStart + 1 // static-analysis indices are 0-based
	end := node.LineEnd + 1
	ref.ReferenceStartLine = &start
	ref.ReferenceEndLine = &end
	ref.QualifiedName = qname
}

func (r *Resolver) tryFilePathResolution(ref *analysismodel.SourceCodeReference, qname, lang string, fileCandidates []string) bool {
	if r.tryExistingReferenceFile(ref) {
		return true
	}
	return r.tryQualifiedNameAsPath(ref, qname, fileCandidates)
}

func (r *Resolver) tryExistingReferenceFile(ref *analysismodel.SourceCodeReference) bool {
	if ref.ReferenceFile == "" || filepath.IsAbs(ref.ReferenceFile) {
		return false
	}
	joined := filepath.Join(r.repoDir, ref.ReferenceFile)
	if r.exists(joined) {
		ref.ReferenceFile = joined
		return true
	}
	ref.ReferenceFile = ""
	return false
}

// tryQualifiedNameAsPath tries: {repoDir}/{qname-as-path}, {qname-as-path}.ext
// for each known extension, the heuristic
// dirname(qname-as-path) + "." + basename(qname-as-path) (for a qname whose
// final segment is a module element rather than a subpackage), and finally
// every assigned file whose final path segment matches the qname's final
// segment by suffix.
func (r *Resolver) tryQualifiedNameAsPath(ref *analysismodel.SourceCodeReference, qname string, fileCandidates []string) bool {
	filePath := strings.ReplaceAll(qname, ".", string(filepath.Separator))
	fullPath := filepath.Join(r.repoDir, filePath)

	// Every candidate is resolved against repoDir, not the process's
	// working directory, for the same reason step 3 requires
	// it for the existing-reference-file check.
	candidates := []string{fullPath}
	for _, ext := range knownExtensions {
		candidates = append(candidates, fullPath+ext)
	}
	dir, base := path.Split(fullPath)
	if dir != "" {
		candidates = append(candidates, strings.TrimSuffix(dir, "/")+"."+base)
	}

	for _, p := range candidates {
		if r.exists(p) {
			ref.ReferenceFile = p
			return true
		}
	}

	lastSegment := base
	for _, candidate := range fileCandidates {
		if strings.HasSuffix(candidate, lastSegment) || strings.HasSuffix(candidate, lastSegment+".py") ||
			strings.HasSuffix(candidate, lastSegment+".ts") || strings.HasSuffix(candidate, lastSegment+".tsx") {
			ref.ReferenceFile = candidate
			return true
		}
	}
	return false
}

func (r *Resolver) tryLLM(ctx context.Context, ref *analysismodel.SourceCodeReference, qname string, fileCandidates []string) bool {
	resolvedPath, start, end, err := r.llm.ResolveReference(ctx, qname, fileCandidates, r.repoDir)
	if err != nil || resolvedPath == "" {
		if err != nil {
			r.logger.Warn("refresolve: LLM resolution failed", slog.String("qname", qname), slog.Any("error", err))
		}
		return false
	}
	candidate := resolvedPath
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(r.repoDir, candidate)
	}
	if !r.exists(candidate) {
		ok := false
		for _, f := range fileCandidates {
			if strings.HasSuffix(f, resolvedPath) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	ref.ReferenceFile = candidate
	ref.ReferenceStartLine = start
	ref.ReferenceEndLine = end
	ref.QualifiedName = qname
	return true
}

func (r *Resolver) removeUnresolved(analysis *analysismodel.AnalysisInsights) {
	for i := range analysis.Components {
		c := &analysis.Components[i]
		kept := c.KeyEntities[:0]
		removed := 0
		for _, ref := range c.KeyEntities {
			if ref.ReferenceFile != "" && r.exists(ref.ReferenceFile) {
				kept = append(kept, ref)
			} else {
				removed++
			}
		}
		c.KeyEntities = kept
		if removed > 0 {
			r.logger.Info("refresolve: dropped unresolved references", slog.String("component", c.Name), slog.Int("count", removed))
		}
	}
}

func (r *Resolver) relativizePaths(analysis *analysismodel.AnalysisInsights) {
	for i := range analysis.Components {
		c := &analysis.Components[i]
		for j := range c.KeyEntities {
			ref := &c.KeyEntities[j]
			if ref.ReferenceFile != "" && strings.HasPrefix(ref.ReferenceFile, r.repoDir) {
				if rel, err := filepath.Rel(r.repoDir, ref.ReferenceFile); err == nil {
					ref.ReferenceFile = rel
				}
			}
		}
	}
}
