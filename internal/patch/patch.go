// Package patch implements the pure, collaborator-free data rewrites that
// keep a persisted analysis consistent after renames and deletions. None of
// these operations invoke an external LLM collaborator.
package patch

import (
	"path"
	"strings"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/manifest"
)

// Renames maps an old repo-relative path to its new one.
type Renames map[string]string

// InAnalysis rewrites every path in insights affected by renames:
// assigned_files, file_methods[*].file_path, and key_entities[*].reference_file
// are all rewritten symmetrically so the three views of "what files this
// component owns" never drift apart.
func InAnalysis(insights *analysismodel.AnalysisInsights, renames Renames) {
	if len(renames) == 0 {
		return
	}
	for ci := range insights.Components {
		c := &insights.Components[ci]
		for i, f := range c.AssignedFiles {
			if newPath, ok := renames[f]; ok {
				c.AssignedFiles[i] = newPath
			}
		}
		for i := range c.FileMethods {
			if newPath, ok := renames[c.FileMethods[i].FilePath]; ok {
				c.FileMethods[i].FilePath = newPath
			}
		}
		for i := range c.KeyEntities {
			if newPath, ok := renames[c.KeyEntities[i].ReferenceFile]; ok {
				c.KeyEntities[i].ReferenceFile = newPath
			}
		}
	}
}

// InManifest rewrites manifest file keys for every rename pair.
func InManifest(m *manifest.Manifest, renames Renames) {
	for oldPath, newPath := range renames {
		m.UpdateFilePath(oldPath, newPath)
	}
}

// SubAnalysis applies renames to sub and additionally drops any file_methods
// entry, assigned_files entry, and key_entities entry whose file appears in
// deletedFiles. Matching is done both against the raw path and against path
// suffixes, to tolerate repo-prefix differences (e.g. "repos/X/a/b.py" vs
// "a/b.py").
// Returns true iff sub was mutated.
func SubAnalysis(sub *analysismodel.AnalysisInsights, deletedFiles []string, renames Renames) bool {
	mutated := false

	if len(renames) > 0 {
		before := snapshotPaths(sub)
		InAnalysis(sub, renames)
		if !pathsEqual(before, snapshotPaths(sub)) {
			mutated = true
		}
	}

	if len(deletedFiles) == 0 {
		return mutated
	}

	deleted := make(map[string]bool, len(deletedFiles))
	for _, f := range deletedFiles {
		deleted[f] = true
	}
	matches := func(candidate string) bool {
		if deleted[candidate] {
			return true
		}
		for d := range deleted {
			if hasSuffixMatch(candidate, d) || hasSuffixMatch(d, candidate) {
				return true
			}
		}
		return false
	}

	for ci := range sub.Components {
		c := &sub.Components[ci]

		keptFiles := c.AssignedFiles[:0]
		for _, f := range c.AssignedFiles {
			if matches(f) {
				mutated = true
				continue
			}
			keptFiles = append(keptFiles, f)
		}
		c.AssignedFiles = keptFiles

		keptMethods := c.FileMethods[:0]
		for _, fm := range c.FileMethods {
			if matches(fm.FilePath) {
				mutated = true
				continue
			}
			keptMethods = append(keptMethods, fm)
		}
		c.FileMethods = keptMethods

		keptEntities := c.KeyEntities[:0]
		for _, ke := range c.KeyEntities {
			if ke.ReferenceFile != "" && matches(ke.ReferenceFile) {
				mutated = true
				continue
			}
			keptEntities = append(keptEntities, ke)
		}
		c.KeyEntities = keptEntities
	}

	return mutated
}

// hasSuffixMatch reports whether a is a path-component-aligned suffix of b,
// i.e. b == a, or b ends with "/"+a. Using path separators (not raw string
// suffix) avoids false positives like "ab/c.go" matching "b/c.go".
func hasSuffixMatch(a, b string) bool {
	a, b = path.Clean(a), path.Clean(b)
	if a == b {
		return true
	}
	return strings.HasSuffix(b, "/"+a)
}

func snapshotPaths(insights *analysismodel.AnalysisInsights) []string {
	var paths []string
	for _, c := range insights.Components {
		paths = append(paths, c.AssignedFiles...)
		for _, fm := range c.FileMethods {
			paths = append(paths, fm.FilePath)
		}
		for _, ke := range c.KeyEntities {
			paths = append(paths, ke.ReferenceFile)
		}
	}
	return paths
}

func pathsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
