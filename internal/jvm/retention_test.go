// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caldera-launcher/caldera/internal/lockfile"
)

// writeForeignLock plants a live lock record owned by another process.
func writeForeignLock(t *testing.T, path string, pid int) {
	t.Helper()
	payload, err := json.Marshal(lockfile.Record{OwnerPID: pid, AcquiredAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}
}

// seedInstall fabricates an install directory with a manifest, no network or
// probing involved.
func seedInstall(t *testing.T, root string, major int, patch int, installedAt time.Time) string {
	t.Helper()
	version := fmt.Sprintf("%d.0.%d", major, patch)
	identifier := MakeIdentifier(major, "Temurin", version, "x64")
	dir := filepath.Join(root, identifier)
	writeFakeJava(t, dir, version, true)

	m := &Manifest{
		SchemaVersion:          ManifestSchemaVersion,
		Identifier:             identifier,
		MajorVersion:           major,
		DisplayVersion:         version,
		Architecture:           "x64",
		InstalledAt:            installedAt,
		SourceURL:              "https://example.com/" + identifier,
		ExecutableRelativePath: "bin/java",
	}
	if err := WriteManifest(dir, m); err != nil {
		t.Fatal(err)
	}
	return identifier
}

func newRetentionManager(t *testing.T) *Manager {
	t.Helper()
	return &Manager{
		DataDir:   t.TempDir(),
		Validator: &Validator{},
		Installer: &Installer{Arch: "x64", OS: "linux"},
		LockTTL:   time.Minute,
		Getenv:    func(string) string { return "" },
	}
}

func TestPruneKeepsNewestPerMajor(t *testing.T) {
	requireUnix(t)
	m := newRetentionManager(t)
	root := m.RoleRoot(RoleGame)
	now := time.Now().UTC()

	oldest := seedInstall(t, root, 17, 1, now.Add(-3*time.Hour))
	middle := seedInstall(t, root, 17, 2, now.Add(-2*time.Hour))
	newest := seedInstall(t, root, 17, 3, now.Add(-time.Hour))
	other := seedInstall(t, root, 21, 1, now.Add(-4*time.Hour))

	if err := m.Prune(RoleGame, 0); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	for _, id := range []string{middle, newest, other} {
		if _, err := os.Stat(filepath.Join(root, id)); err != nil {
			t.Errorf("%s should survive: %v", id, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, oldest)); !os.IsNotExist(err) {
		t.Errorf("%s should be removed", oldest)
	}
}

func TestPruneSkipsActiveRuntime(t *testing.T) {
	requireUnix(t)
	m := newRetentionManager(t)
	root := m.RoleRoot(RoleGame)
	now := time.Now().UTC()

	oldest := seedInstall(t, root, 17, 1, now.Add(-3*time.Hour))
	seedInstall(t, root, 17, 2, now.Add(-2*time.Hour))
	seedInstall(t, root, 17, 3, now.Add(-time.Hour))

	m.markActive(RoleGame, oldest)
	if err := m.Prune(RoleGame, 0); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, oldest)); err != nil {
		t.Errorf("active runtime was pruned: %v", err)
	}
}

func TestPruneSkipsLockedMajor(t *testing.T) {
	requireUnix(t)
	m := newRetentionManager(t)
	root := m.RoleRoot(RoleGame)
	now := time.Now().UTC()

	oldest := seedInstall(t, root, 17, 1, now.Add(-3*time.Hour))
	seedInstall(t, root, 17, 2, now.Add(-2*time.Hour))
	seedInstall(t, root, 17, 3, now.Add(-time.Hour))

	// Another process is mid-install for this major; its lock protects the
	// whole group. pid 1 stands in for a live foreign owner.
	writeForeignLock(t, installLockPath(root, 17, "x64"), 1)

	if err := m.Prune(RoleGame, 0); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, oldest)); err != nil {
		t.Errorf("locked major was pruned: %v", err)
	}
}

func TestPruneIgnoresOwnInstallLock(t *testing.T) {
	requireUnix(t)
	m := newRetentionManager(t)
	root := m.RoleRoot(RoleGame)
	now := time.Now().UTC()

	oldest := seedInstall(t, root, 17, 1, now.Add(-3*time.Hour))
	seedInstall(t, root, 17, 2, now.Add(-2*time.Hour))
	seedInstall(t, root, 17, 3, now.Add(-time.Hour))

	// The post-install prune runs while this process still holds the
	// install lock it took for the new copy; that lock must not shield
	// retired installs of the same major.
	lock, err := lockfile.Acquire(installLockPath(root, 17, "x64"), time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if err := m.Prune(RoleGame, 0); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, oldest)); !os.IsNotExist(err) {
		t.Errorf("%s should be removed despite our own install lock", oldest)
	}
}

func TestPruneNeverConsultsRoleOverride(t *testing.T) {
	requireUnix(t)
	m := newRetentionManager(t)
	m.Getenv = func(key string) string {
		if key == EnvForceRole {
			return string(RoleTooling)
		}
		return ""
	}
	root := m.RoleRoot(RoleGame)
	now := time.Now().UTC()

	oldest := seedInstall(t, root, 17, 1, now.Add(-3*time.Hour))
	seedInstall(t, root, 17, 2, now.Add(-2*time.Hour))
	seedInstall(t, root, 17, 3, now.Add(-time.Hour))

	// The override redirects resolution, never retention: pruning RoleGame
	// still operates on the game root.
	if err := m.Prune(RoleGame, 0); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, oldest)); !os.IsNotExist(err) {
		t.Errorf("%s should be removed from the game root", oldest)
	}
}

func TestPruneEmptyRoot(t *testing.T) {
	m := newRetentionManager(t)
	if err := m.Prune(RoleGame, 0); err != nil {
		t.Fatalf("Prune on empty root: %v", err)
	}
}

func TestPruneRejectsUnknownRole(t *testing.T) {
	m := newRetentionManager(t)
	if err := m.Prune(Role("jukebox"), 0); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
