// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/caldera-launcher/caldera/internal/lockfile"
)

// Prune removes old runtimes for the role, keeping the newest KeepPerMajor
// installs of each major version. A nonzero major restricts pruning to that
// version's group. The currently resolved runtime and any install another
// process holds a lock against are never removed.
func (m *Manager) Prune(role Role, major int) error {
	if !role.Valid() {
		return fmt.Errorf("unknown runtime role %q", role)
	}
	return m.prune(role, major)
}

// pruneRole is the post-install hook; it considers every major.
func (m *Manager) pruneRole(role Role) error {
	return m.prune(role, 0)
}

func (m *Manager) prune(role Role, onlyMajor int) error {
	root := m.RoleRoot(role)
	installs, err := m.Installed(role)
	if err != nil {
		return err
	}

	byMajor := make(map[int][]InstalledRuntime)
	for _, inst := range installs {
		if inst.Manifest == nil {
			continue
		}
		byMajor[inst.Manifest.MajorVersion] = append(byMajor[inst.Manifest.MajorVersion], inst)
	}

	ix := m.index(role)
	var removed int
	var firstErr error
	for major, group := range byMajor {
		if onlyMajor != 0 && major != onlyMajor {
			continue
		}
		if len(group) <= m.keepPerMajor() {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[j].Manifest.InstalledAt.Before(group[i].Manifest.InstalledAt)
		})
		for _, victim := range group[m.keepPerMajor():] {
			if m.isActive(role, victim.Manifest.Identifier) {
				continue
			}
			if lockfile.IsLockedByOther(installLockPath(root, victim.Manifest.MajorVersion, victim.Manifest.Architecture), m.lockTTL()) {
				continue
			}
			m.logger().Info("removing retired runtime",
				"role", role, "identifier", victim.Manifest.Identifier)
			if err := os.RemoveAll(victim.Dir); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			ix.Invalidate(victim.Manifest.Identifier)
			removed++
		}
	}
	if removed > 0 {
		if err := ix.Save(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// installLockPath names the per-major, per-architecture install lock under
// a role root.
func installLockPath(root string, major int, arch string) string {
	return filepath.Join(root, fmt.Sprintf(".install_java%d_%s.lock", major, arch))
}
