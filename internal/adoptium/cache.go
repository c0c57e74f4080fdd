// SPDX-License-Identifier: MPL-2.0

package adoptium

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

type (
	// SpecCache is a small on-disk cache of resolved release specs, keyed by
	// "major:arch:os". It only exists to spare the API on rapid successive
	// resolutions (e.g. two launches minutes apart); entries expire after a
	// TTL and a corrupt or missing file is simply an empty cache.
	SpecCache struct {
		path string
		ttl  time.Duration

		mu      sync.Mutex
		entries map[string]cachedSpec
		loaded  bool
	}

	cachedSpec struct {
		StoredAt time.Time   `json:"storedAt"`
		Spec     ReleaseSpec `json:"spec"`
	}

	specCacheFile struct {
		Entries map[string]cachedSpec `json:"entries"`
	}
)

// NewSpecCache creates a cache backed by the file at path with the given TTL.
func NewSpecCache(path string, ttl time.Duration) *SpecCache {
	return &SpecCache{path: path, ttl: ttl}
}

// Get returns the cached spec for key if present and not expired.
func (c *SpecCache) Get(key string) (*ReleaseSpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.StoredAt) > c.ttl {
		return nil, false
	}
	spec := entry.Spec
	return &spec, true
}

// Put stores spec under key and persists the cache. Persistence failures are
// swallowed — the cache is an optimization, never a source of truth.
func (c *SpecCache) Put(key string, spec *ReleaseSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	c.entries[key] = cachedSpec{StoredAt: time.Now(), Spec: *spec}

	payload, err := json.MarshalIndent(specCacheFile{Entries: c.entries}, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(c.path, payload, 0o644)
}

// loadLocked reads the cache file once. Callers must hold c.mu.
func (c *SpecCache) loadLocked() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.entries = make(map[string]cachedSpec)

	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var file specCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return
	}
	if file.Entries != nil {
		c.entries = file.Entries
	}
}
