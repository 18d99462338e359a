package staticanalysis

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is the disk-backed cache for Results, keyed by a hash of the
// working-tree state. original_source's AnalysisCache pickles results to a
// tempfile per run; here we swap the pickle blob for Go's gob encoding and
// the tempfile dance for a single-table SQLite database, since this cache is
// keyed by many repo-hashes over the program's lifetime rather than one file
// per run.
//
// An in-memory LRU of the most recently loaded N results fronts the
// database so repeated lookups for the same repo hash within one process
// (e.g. re-checking CanRunIncremental right after a write) avoid a round
// trip.
type Cache struct {
	db     *sql.DB
	lru    *lru.Cache[string, *Results]
	logger *slog.Logger
}

const lruSize = 8

// OpenCache opens (creating if absent) a SQLite database at dbPath holding
// the static-analysis result cache.
func OpenCache(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("staticanalysis: opening cache db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS static_analysis_cache (
		repo_hash TEXT PRIMARY KEY,
		payload   BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("staticanalysis: creating cache table: %w", err)
	}
	l, err := lru.New[string, *Results](lruSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db, lru: l, logger: slog.Default()}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Get loads cached results for repoHash, or (nil, false) if absent or
// corrupt. A corrupt blob is logged and treated as absent — :
// "Loading a corrupt cache returns None and the caller must rebuild" —
// never a fatal error.
func (c *Cache) Get(ctx context.Context, repoHash string) (*Results, bool) {
	if r, ok := c.lru.Get(repoHash); ok {
		return r, true
	}

	var payload []byte
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM static_analysis_cache WHERE repo_hash = ?`, repoHash).Scan(&payload)
	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Warn("staticanalysis: cache lookup failed", slog.String("repo_hash", repoHash), slog.Any("error", err))
		}
		return nil, false
	}

	results, decodeErr := decodeResults(payload)
	if decodeErr != nil {
		c.logger.Warn("staticanalysis: failed to decode cached results, discarding", slog.String("repo_hash", repoHash), slog.Any("error", decodeErr))
		return nil, false
	}
	c.lru.Add(repoHash, results)
	return results, true
}

// Put serializes and stores results under repoHash, replacing any prior
// entry for that hash.
func (c *Cache) Put(ctx context.Context, repoHash string, results *Results) error {
	payload, err := encodeResults(results)
	if err != nil {
		return fmt.Errorf("staticanalysis: encoding results: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, `INSERT INTO static_analysis_cache (repo_hash, payload) VALUES (?, ?)
		ON CONFLICT(repo_hash) DO UPDATE SET payload = excluded.payload`, repoHash, payload); err != nil {
		return fmt.Errorf("staticanalysis: writing cache entry: %w", err)
	}
	c.lru.Add(repoHash, results)
	return nil
}

// gobResults is the wire shape for gob encoding; Results.byLanguage is
// unexported so it cannot be gob-registered directly without this mirror.
type gobResults struct {
	ByLanguage map[string]*gobLanguageResults
}

type gobLanguageResults struct {
	CFGNodes     map[string]*Node
	CFGEdges     []Edge
	Hierarchy    map[string]HierarchyEntry
	Dependencies map[string]string
	References   map[string]*Node
	SourceFiles  []string
}

func encodeResults(r *Results) ([]byte, error) {
	gr := gobResults{ByLanguage: map[string]*gobLanguageResults{}}
	for lang, lr := range r.byLanguage {
		glr := &gobLanguageResults{
			Hierarchy:    lr.hierarchy,
			Dependencies: lr.dependencies,
			References:   lr.references,
			SourceFiles:  lr.sourceFiles,
		}
		if lr.cfg != nil {
			glr.CFGNodes = lr.cfg.Nodes
			glr.CFGEdges = lr.cfg.Edges
		}
		gr.ByLanguage[lang] = glr
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeResults(payload []byte) (*Results, error) {
	var gr gobResults
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&gr); err != nil {
		return nil, err
	}
	r := New()
	for lang, glr := range gr.ByLanguage {
		lr := r.lang(lang)
		lr.hierarchy = glr.Hierarchy
		lr.dependencies = glr.Dependencies
		lr.references = glr.References
		lr.sourceFiles = glr.SourceFiles
		if glr.CFGNodes != nil {
			lr.cfg = &CallGraph{Nodes: glr.CFGNodes, Edges: glr.CFGEdges}
		}
	}
	return r, nil
}
