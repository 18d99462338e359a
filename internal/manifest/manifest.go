// Package manifest implements the persisted file→component index:
// the primary structure the Impact Analyzer consults to map a
// changed file to the component that owns it.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeboarding/increco/internal/analysismodel"
)

// SchemaVersion is the current on-disk schema version. A manifest persisted
// with a different version is treated as missing prior state,
// forcing a full reanalysis.
const SchemaVersion = 1

// FileName is the manifest's filename, persisted as a sibling of analysis.json.
const FileName = "analysis_manifest.json"

// ErrSchemaVersionMismatch signals that a persisted manifest is from an
// incompatible schema version and must be treated as absent.
var ErrSchemaVersionMismatch = errors.New("manifest: schema version mismatch")

// ErrNotFound signals no manifest file exists at the given path.
var ErrNotFound = errors.New("manifest: not found")

// Manifest is the persisted file→component index.
type Manifest struct {
	SchemaVersion      int               `json:"schema_version"`
	RepoStateHash      string            `json:"repo_state_hash"`
	BaseCommit         string            `json:"base_commit"`
	FileToComponent    map[string]string `json:"file_to_component"`
	ExpandedComponents []string          `json:"expanded_components"`
}

// New returns an empty manifest at the current schema version.
func New(baseCommit, repoStateHash string) *Manifest {
	return &Manifest{
		SchemaVersion:   SchemaVersion,
		RepoStateHash:   repoStateHash,
		BaseCommit:      baseCommit,
		FileToComponent: make(map[string]string),
	}
}

// GetComponentForFile returns the component name/ID owning path, if tracked.
func (m *Manifest) GetComponentForFile(path string) (string, bool) {
	c, ok := m.FileToComponent[normalize(path)]
	return c, ok
}

// GetFilesForComponent returns every file currently mapped to component.
func (m *Manifest) GetFilesForComponent(component string) []string {
	var files []string
	for f, c := range m.FileToComponent {
		if c == component {
			files = append(files, f)
		}
	}
	return files
}

// AddFile registers path as owned by component.
func (m *Manifest) AddFile(path, component string) {
	if m.FileToComponent == nil {
		m.FileToComponent = make(map[string]string)
	}
	m.FileToComponent[normalize(path)] = component
}

// RemoveFile drops path from the index.
func (m *Manifest) RemoveFile(path string) {
	delete(m.FileToComponent, normalize(path))
}

// UpdateFilePath renames a tracked file in place, preserving its component
// mapping. A no-op if oldPath isn't tracked.
func (m *Manifest) UpdateFilePath(oldPath, newPath string) {
	oldPath, newPath = normalize(oldPath), normalize(newPath)
	if component, ok := m.FileToComponent[oldPath]; ok {
		delete(m.FileToComponent, oldPath)
		m.FileToComponent[newPath] = component
	}
}

// IsExpanded reports whether component appears in ExpandedComponents.
func (m *Manifest) IsExpanded(component string) bool {
	for _, c := range m.ExpandedComponents {
		if c == component {
			return true
		}
	}
	return false
}

// MarkExpanded adds component to ExpandedComponents if not already present.
func (m *Manifest) MarkExpanded(component string) {
	if !m.IsExpanded(component) {
		m.ExpandedComponents = append(m.ExpandedComponents, component)
	}
}

func normalize(path string) string {
	path = filepath.ToSlash(path)
	return strings.TrimPrefix(path, "./")
}

// BuildFromAnalysis constructs a manifest by iterating every component's
// AssignedFiles, keyed by ComponentID (falling back to Name when a
// component has no ComponentID yet, for legacy compatibility — see
// DESIGN.md Open Question #2).
func BuildFromAnalysis(insights *analysismodel.AnalysisInsights, baseCommit, repoStateHash string) *Manifest {
	m := New(baseCommit, repoStateHash)
	for _, c := range insights.Components {
		key := c.ComponentID
		if key == "" {
			key = c.Name
		}
		for _, f := range c.AssignedFiles {
			m.AddFile(f, key)
		}
	}
	return m
}

// Load reads and schema-version-gates a manifest from dir. Returns
// ErrNotFound if absent and ErrSchemaVersionMismatch (wrapping the original
// manifest's version) if present but incompatible; both are "missing prior
// state" and callers should treat them identically unless they
// need to distinguish for diagnostics.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", path, err)
	}
	if m.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: on-disk version %d, expected %d", ErrSchemaVersionMismatch, m.SchemaVersion, SchemaVersion)
	}
	return &m, nil
}

// Save writes m to dir as FileName, pretty-printed for diffability.
func Save(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshaling: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: writing %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a manifest file is present at dir, without
// validating its schema version.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}
