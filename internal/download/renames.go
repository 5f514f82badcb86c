package download

import (
	"maps"
	"sync"
)

// RenameMap maps original resource identifiers to their mirror-relative
// paths. Keys are the raw attribute value found in the page and the resolved
// absolute URL. It is safe for concurrent use.
type RenameMap struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewRenameMap returns an empty map.
func NewRenameMap() *RenameMap {
	return &RenameMap{entries: make(map[string]string)}
}

// Set records that original now lives at localPath.
// A later Set for the same key replaces the earlier one.
func (m *RenameMap) Set(original, localPath string) {
	if original == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[original] = localPath
}

// Get returns the local path for original.
func (m *RenameMap) Get(original string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[original]
	return p, ok
}

// Len returns the number of entries.
func (m *RenameMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Snapshot returns a copy of the entries.
func (m *RenameMap) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.entries)
}
