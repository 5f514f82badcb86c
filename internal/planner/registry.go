package planner

import (
	"path"
	"strconv"
	"strings"
	"sync"
)

// PathRegistry hands out unique local paths within one mirror.
// It is safe for concurrent use.
//
// The registry keeps the mapping in both directions: a local path has at
// most one owning URL, and a URL keeps the first path it was given for the
// lifetime of the registry. Paths are compared byte for byte.
type PathRegistry struct {
	mu     sync.Mutex
	owners map[string]string // local path -> absolute URL
	byURL  map[string]string // absolute URL -> local path
}

// NewPathRegistry returns an empty registry.
func NewPathRegistry() *PathRegistry {
	return &PathRegistry{
		owners: make(map[string]string),
		byURL:  make(map[string]string),
	}
}

// Claim reserves a local path for absoluteURL.
//
// A URL that already holds a path gets the same path back. When the wanted
// path belongs to another URL, the first free "name-N.ext" with N >= 2 is
// returned instead.
func (r *PathRegistry) Claim(wanted, absoluteURL string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byURL[absoluteURL]; ok {
		return existing
	}

	candidate := wanted
	if _, taken := r.owners[candidate]; taken {
		dir, file := path.Split(wanted)
		ext := path.Ext(file)
		stem := strings.TrimSuffix(file, ext)
		for n := 2; ; n++ {
			candidate = dir + stem + "-" + strconv.Itoa(n) + ext
			if _, taken := r.owners[candidate]; !taken {
				break
			}
		}
	}

	r.owners[candidate] = absoluteURL
	r.byURL[absoluteURL] = candidate
	return candidate
}

// Len returns the number of claimed paths.
func (r *PathRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}
