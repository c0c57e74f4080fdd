// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caldera-launcher/caldera/internal/lockfile"
)

const (
	// indexFileName is the per-role cache file at the role root.
	indexFileName = "index.json"

	// indexGuardName is the flock file serializing index-only writes.
	indexGuardName = "index.flock"
)

type (
	// IndexEntry summarizes one installed runtime so resolution can skip the
	// full directory walk. It is a cache, never a source of truth: when the
	// watermark disagrees with the directory, the entry is stale and must be
	// rebuilt from the manifest.
	IndexEntry struct {
		Identifier             string    `json:"identifier"`
		MajorVersion           int       `json:"majorVersion"`
		DisplayVersion         string    `json:"displayVersion"`
		Architecture           string    `json:"architecture"`
		InstalledAt            time.Time `json:"installedAt"`
		ExecutableRelativePath string    `json:"executableRelativePath,omitempty"`
		SourceDirModifiedAt    time.Time `json:"sourceDirectoryModifiedAt"`
	}

	// Index is the in-memory view of one role's index file. It is read once
	// and rewritten on every successful install or prune.
	Index struct {
		root string

		mu      sync.Mutex
		entries map[string]IndexEntry
	}

	indexFile struct {
		Entries map[string]IndexEntry `json:"entries"`
	}
)

// LoadIndex reads the index file under root. A missing or unparsable file is
// an empty index — consumers fall back to scanning manifests and repair it.
func LoadIndex(root string) *Index {
	ix := &Index{root: root, entries: make(map[string]IndexEntry)}

	data, err := os.ReadFile(filepath.Join(root, indexFileName))
	if err != nil {
		return ix
	}
	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return ix
	}
	if file.Entries != nil {
		ix.entries = file.Entries
	}
	return ix
}

// Lookup returns the entry for identifier, if cached.
func (ix *Index) Lookup(identifier string) (IndexEntry, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.entries[identifier]
	return e, ok
}

// Entries returns a snapshot of all cached entries.
func (ix *Index) Entries() []IndexEntry {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]IndexEntry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e)
	}
	return out
}

// Upsert records (or replaces) the entry for its identifier.
func (ix *Index) Upsert(entry IndexEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[entry.Identifier] = entry
}

// Invalidate drops the entry for identifier.
func (ix *Index) Invalidate(identifier string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.entries, identifier)
}

// Save rewrites the index file under the flock guard, via temp-and-rename so
// concurrent readers never observe a torn file.
func (ix *Index) Save() error {
	guard, err := lockfile.AcquireFlock(filepath.Join(ix.root, indexGuardName))
	if err != nil {
		return fmt.Errorf("guarding index write: %w", err)
	}
	defer guard.Release()

	ix.mu.Lock()
	payload, err := json.MarshalIndent(indexFile{Entries: ix.entries}, "", "  ")
	ix.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	tmp, err := os.CreateTemp(ix.root, ".index-*.json")
	if err != nil {
		return fmt.Errorf("creating index temp file: %w", err)
	}
	_, err = tmp.Write(payload)
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing index: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(ix.root, indexFileName)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("installing index: %w", err)
	}
	return nil
}

// Fresh reports whether the entry's watermark still matches the install
// directory. A mismatch means the directory changed behind the cache and the
// entry must be rebuilt from the manifest.
func (ix *Index) Fresh(entry IndexEntry) bool {
	info, err := os.Stat(filepath.Join(ix.root, entry.Identifier))
	if err != nil {
		return false
	}
	return info.ModTime().Equal(entry.SourceDirModifiedAt)
}

// entryFromManifest derives an index entry for the install at dir.
func entryFromManifest(m *Manifest, dir string) (IndexEntry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("stat install directory: %w", err)
	}
	return IndexEntry{
		Identifier:             m.Identifier,
		MajorVersion:           m.MajorVersion,
		DisplayVersion:         m.DisplayVersion,
		Architecture:           m.Architecture,
		InstalledAt:            m.InstalledAt,
		ExecutableRelativePath: m.ExecutableRelativePath,
		SourceDirModifiedAt:    info.ModTime(),
	}, nil
}
