// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxLocateDepth bounds the fallback recursive scan. Real runtime archives
// put the executable at most a few levels deep; anything deeper is not a
// runtime layout and scanning it would be a runaway walk.
const maxLocateDepth = 6

// LocateExecutables enumerates candidate java executables under root, in
// preference order: the standard layout (bin/java), the macOS bundle layout
// (Contents/Home/bin/java), then a bounded recursive search. The traversal is
// read-only and returns an empty slice — not an error — when nothing matches.
func LocateExecutables(root string) []string {
	exe := executableName()
	var candidates []string
	seen := make(map[string]bool)

	add := func(p string) {
		if seen[p] {
			return
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}

	add(filepath.Join(root, "bin", exe))
	add(filepath.Join(root, "Contents", "Home", "bin", exe))

	if len(candidates) > 0 {
		return candidates
	}

	// Neither standard layout matched; fall back to a depth-bounded scan.
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep going
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if strings.Count(rel, string(filepath.Separator)) >= maxLocateDepth {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == exe {
			add(path)
		}
		return nil
	})

	return candidates
}
