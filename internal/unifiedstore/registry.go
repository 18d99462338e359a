package unifiedstore

import (
	"path/filepath"
	"sync"
)

// registry keeps one Store per canonicalized output directory per process,
// so every caller sharing a directory also shares the cache and lock
// bookkeeping rather than racing two independent in-memory snapshots
// against the same on-disk file ("shared mutable state across
// processes").
var (
	registryMu sync.Mutex
	registry   = map[string]*Store{}
)

// Open returns the process-wide Store for dir, creating it on first use.
func Open(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)

	registryMu.Lock()
	defer registryMu.Unlock()
	if s, ok := registry[abs]; ok {
		return s, nil
	}
	s := newStore(abs)
	registry[abs] = s
	return s, nil
}

// resetRegistryForTest clears the registry; unexported, used only from
// tests that need distinct Store identities across t.TempDir() directories.
func resetRegistryForTest() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]*Store{}
}
