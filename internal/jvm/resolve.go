// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/caldera-launcher/caldera/internal/lockfile"
)

// EnvForceRole redirects resolution to another role's storage. Debug aid
// only: it affects which root Resolve reads from, never which runtimes the
// retention policy keeps.
const EnvForceRole = "CALDERA_FORCE_RUNTIME_ROLE"

const (
	defaultLockTTL      = 10 * time.Minute
	defaultLockWait     = 2 * time.Minute
	defaultKeepPerMajor = 2
)

type (
	// Request describes what a caller needs from Resolve. GameVersion
	// drives the requirement table for RoleGame; MinMajor, when nonzero,
	// overrides the table outright.
	Request struct {
		GameVersion string
		MinMajor    int
	}

	// LaunchDescriptor is the resolved runtime handed to process launch.
	LaunchDescriptor struct {
		ExecutablePath string
		HomeDir        string
		Identifier     string
		MajorVersion   int
		DisplayVersion string
	}

	// Manager resolves, installs and retires runtimes under DataDir. Each
	// role owns an isolated subtree; a runtime acquired for one role is
	// never silently served to another.
	Manager struct {
		DataDir   string
		Table     *RequirementTable
		Installer *Installer
		Validator *Validator
		Logger    *slog.Logger

		// LockTTL bounds how long an install lock from a dead or hung
		// process blocks others; 0 means the default.
		LockTTL time.Duration

		// LockWait bounds how long a Resolve waits behind another
		// process's install before giving up with the contention error;
		// 0 means the default.
		LockWait time.Duration

		// KeepPerMajor is the retention width per major version; 0 means
		// the default.
		KeepPerMajor int

		// Getenv is an env seam for tests; nil means os.Getenv.
		Getenv func(string) string

		mu      sync.Mutex
		indexes map[Role]*Index
		active  map[Role]string
	}
)

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Manager) table() *RequirementTable {
	if m.Table != nil {
		return m.Table
	}
	return DefaultRequirementTable()
}

func (m *Manager) lockTTL() time.Duration {
	if m.LockTTL != 0 {
		return m.LockTTL
	}
	return defaultLockTTL
}

func (m *Manager) lockWait() time.Duration {
	if m.LockWait != 0 {
		return m.LockWait
	}
	return defaultLockWait
}

func (m *Manager) keepPerMajor() int {
	if m.KeepPerMajor != 0 {
		return m.KeepPerMajor
	}
	return defaultKeepPerMajor
}

func (m *Manager) getenv(key string) string {
	if m.Getenv != nil {
		return m.Getenv(key)
	}
	return os.Getenv(key)
}

// RoleRoot returns the storage root for a role's runtimes.
func (m *Manager) RoleRoot(role Role) string {
	return filepath.Join(m.DataDir, "runtimes", string(role))
}

// RequiredMajor computes the feature version a request needs. RoleTooling is
// pinned; RoleGame follows an explicit override or the requirement table.
func (m *Manager) RequiredMajor(role Role, req Request) int {
	if role == RoleTooling {
		return ToolingMajor
	}
	if req.MinMajor > 0 {
		return req.MinMajor
	}
	return m.table().RequiredMajor(req.GameVersion)
}

// Resolve returns a usable runtime for the role, installing one if nothing
// on disk satisfies the request. Resolution order: index hit with a cheap
// freshness check, then a full directory scan with probing, then install.
func (m *Manager) Resolve(ctx context.Context, role Role, req Request) (*LaunchDescriptor, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown runtime role %q", role)
	}
	if forced := Role(m.getenv(EnvForceRole)); forced.Valid() && forced != role {
		m.logger().Warn("runtime role forced by environment", "requested", role, "forced", forced)
		role = forced
	}

	major := m.RequiredMajor(role, req)
	root := m.RoleRoot(role)
	lockfile.SweepStale(root, m.lockTTL())

	if desc := m.resolveFromIndex(ctx, role, major); desc != nil {
		m.markActive(role, desc.Identifier)
		return desc, nil
	}
	if desc := m.resolveFromScan(ctx, role, major); desc != nil {
		m.markActive(role, desc.Identifier)
		return desc, nil
	}

	manifest, err := m.EnsureInstalled(ctx, role, major)
	if err != nil {
		return nil, fmt.Errorf("%w: %s role needs Java %d: %v", ErrNoCompatibleRuntime, role, major, err)
	}
	desc := m.descriptor(root, manifest)
	m.markActive(role, desc.Identifier)
	return desc, nil
}

// resolveFromIndex serves the best indexed candidate whose backing directory
// still looks intact. Entries that fail verification are invalidated and
// skipped rather than repaired here; the scan pass repairs.
func (m *Manager) resolveFromIndex(ctx context.Context, role Role, major int) *LaunchDescriptor {
	root := m.RoleRoot(role)
	ix := m.index(role)

	candidates := ix.Entries()
	sortCandidateEntries(candidates)
	for _, entry := range candidates {
		if entry.MajorVersion < major || entry.Architecture != m.Installer.arch() {
			continue
		}
		dir := filepath.Join(root, entry.Identifier)
		if ix.Fresh(entry) && m.quickCheck(dir, major) {
			manifest, err := ReadManifest(dir)
			if err != nil {
				continue
			}
			return m.descriptor(root, manifest)
		}
		// Watermark moved or the cheap check failed; verify for real.
		manifest, err := m.verifyInstall(ctx, dir, major)
		if err != nil {
			m.logger().Warn("indexed runtime failed verification", "identifier", entry.Identifier, "error", err)
			ix.Invalidate(entry.Identifier)
			_ = ix.Save()
			continue
		}
		if repaired, err := entryFromManifest(manifest, dir); err == nil {
			ix.Upsert(repaired)
			_ = ix.Save()
		}
		return m.descriptor(root, manifest)
	}
	return nil
}

// resolveFromScan walks the role root for installs the index missed, probes
// them, and repairs the index with whatever it finds.
func (m *Manager) resolveFromScan(ctx context.Context, role Role, major int) *LaunchDescriptor {
	root := m.RoleRoot(role)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	ix := m.index(role)

	var manifests []*Manifest
	for _, dirent := range entries {
		if !dirent.IsDir() || skipRootEntry(dirent.Name()) {
			continue
		}
		dir := filepath.Join(root, dirent.Name())
		manifest, err := m.verifyInstall(ctx, dir, major)
		if err != nil {
			continue
		}
		if entry, err := entryFromManifest(manifest, dir); err == nil {
			ix.Upsert(entry)
		}
		manifests = append(manifests, manifest)
	}
	if len(manifests) == 0 {
		return nil
	}
	_ = ix.Save()

	sort.Slice(manifests, func(i, j int) bool {
		return candidateLess(manifests[j].MajorVersion, manifests[j].DisplayVersion, manifests[j].InstalledAt,
			manifests[i].MajorVersion, manifests[i].DisplayVersion, manifests[i].InstalledAt)
	})
	return m.descriptor(root, manifests[0])
}

// verifyInstall fully checks one install directory: readable manifest,
// matching architecture and major, intact executable checksum, and a live
// probe that reports a satisfying runtime.
func (m *Manager) verifyInstall(ctx context.Context, dir string, major int) (*Manifest, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	if manifest.Architecture != m.Installer.arch() {
		return nil, fmt.Errorf("architecture %s does not match host %s", manifest.Architecture, m.Installer.arch())
	}
	if manifest.MajorVersion < major {
		return nil, fmt.Errorf("major %d below required %d", manifest.MajorVersion, major)
	}
	exePath := manifest.ExecutablePath(dir)
	if !manifest.PermissionsApplied {
		// Older-schema or externally produced installs may lack the exec
		// bit; repair it once and record that in the manifest.
		if err := applyExecutableMode(exePath); err != nil {
			return nil, err
		}
		manifest.PermissionsApplied = true
		if err := WriteManifest(dir, manifest); err != nil {
			m.logger().Warn("recording permission normalization", "dir", dir, "error", err)
		}
	}
	if manifest.ExecutableChecksum != "" {
		if err := VerifyFile(exePath, manifest.ExecutableChecksum); err != nil {
			return nil, err
		}
	}
	if _, err := m.Validator.Validate(ctx, exePath, Requirement{MinMajor: major}); err != nil {
		return nil, err
	}
	return manifest, nil
}

// quickCheck is the cheap freshness path: the recorded executable still
// exists and the manifest still parses to a satisfying entry. No hashing,
// no subprocess.
func (m *Manager) quickCheck(dir string, major int) bool {
	manifest, err := ReadManifest(dir)
	if err != nil || manifest.Validate() != nil || manifest.MajorVersion < major {
		return false
	}
	info, err := os.Stat(manifest.ExecutablePath(dir))
	return err == nil && info.Mode().IsRegular()
}

// EnsureInstalled acquires the install lock for (role, major) and installs
// a runtime unless a concurrent installer already produced a satisfying one.
// Safe to call from multiple processes; exactly one does the work.
func (m *Manager) EnsureInstalled(ctx context.Context, role Role, major int) (*Manifest, error) {
	root := m.RoleRoot(role)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	lockPath := installLockPath(root, major, m.Installer.arch())
	lock, err := m.waitForLock(ctx, lockPath)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	CleanStaging(root)

	// A process we waited behind may have finished the same install.
	if desc := m.resolveFromScan(ctx, role, major); desc != nil {
		if manifest, err := ReadManifest(desc.HomeDir); err == nil {
			return manifest, nil
		}
	}

	manifest, err := m.Installer.Install(ctx, root, major)
	if err != nil {
		return nil, err
	}

	ix := m.index(role)
	dir := filepath.Join(root, manifest.Identifier)
	if entry, err := entryFromManifest(manifest, dir); err == nil {
		ix.Upsert(entry)
		if err := ix.Save(); err != nil {
			m.logger().Warn("saving runtime index", "role", role, "error", err)
		}
	}
	m.markActive(role, manifest.Identifier)

	if err := m.pruneRole(role); err != nil {
		m.logger().Warn("pruning old runtimes", "role", role, "error", err)
	}
	return manifest, nil
}

// waitForLock polls until the install lock is free, the wait budget runs
// out, or the context ends. Stale locks are reclaimed by Acquire itself; a
// lock that stays busy past LockWait surfaces the contention error so the
// caller fails instead of waiting forever.
func (m *Manager) waitForLock(ctx context.Context, path string) (*lockfile.Lock, error) {
	const pollInterval = 500 * time.Millisecond
	deadline := time.Now().Add(m.lockWait())
	for {
		lock, err := lockfile.Acquire(path, m.lockTTL())
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, lockfile.ErrBusy) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("install lock not released within %s: %w", m.lockWait(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for install lock %s: %w", path, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Installed lists the role's runtimes as recorded on disk, index-repaired.
// Directories without a readable manifest are reported with an error so
// diagnostics can surface them.
func (m *Manager) Installed(role Role) ([]InstalledRuntime, error) {
	root := m.RoleRoot(role)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []InstalledRuntime
	for _, dirent := range entries {
		if !dirent.IsDir() || skipRootEntry(dirent.Name()) {
			continue
		}
		dir := filepath.Join(root, dirent.Name())
		manifest, err := ReadManifest(dir)
		inst := InstalledRuntime{Dir: dir, Manifest: manifest, Err: err}
		if manifest != nil {
			inst.Active = m.isActive(role, manifest.Identifier)
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}

// InstalledRuntime is one entry of Installed. Err is set when the directory
// exists but its manifest could not be read.
type InstalledRuntime struct {
	Dir      string
	Manifest *Manifest
	Active   bool
	Err      error
}

func (m *Manager) descriptor(root string, manifest *Manifest) *LaunchDescriptor {
	dir := filepath.Join(root, manifest.Identifier)
	return &LaunchDescriptor{
		ExecutablePath: manifest.ExecutablePath(dir),
		HomeDir:        dir,
		Identifier:     manifest.Identifier,
		MajorVersion:   manifest.MajorVersion,
		DisplayVersion: manifest.DisplayVersion,
	}
}

func (m *Manager) index(role Role) *Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexes == nil {
		m.indexes = make(map[Role]*Index)
	}
	ix, ok := m.indexes[role]
	if !ok {
		ix = LoadIndex(m.RoleRoot(role))
		m.indexes[role] = ix
	}
	return ix
}

func (m *Manager) markActive(role Role, identifier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		m.active = make(map[Role]string)
	}
	m.active[role] = identifier
}

func (m *Manager) isActive(role Role, identifier string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[role] == identifier
}

// skipRootEntry filters role-root children that are not install directories.
func skipRootEntry(name string) bool {
	return name == stagingDirName ||
		strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, backupSuffix)
}

// sortCandidateEntries orders index entries best-first: higher major, then
// higher display version, then most recently installed.
func sortCandidateEntries(entries []IndexEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return candidateLess(entries[j].MajorVersion, entries[j].DisplayVersion, entries[j].InstalledAt,
			entries[i].MajorVersion, entries[i].DisplayVersion, entries[i].InstalledAt)
	})
}

// candidateLess reports whether candidate a ranks below candidate b.
func candidateLess(aMajor int, aVersion string, aInstalled time.Time, bMajor int, bVersion string, bInstalled time.Time) bool {
	if aMajor != bMajor {
		return aMajor < bMajor
	}
	if c := semver.Compare(canonicalVersion(aVersion), canonicalVersion(bVersion)); c != 0 {
		return c < 0
	}
	return aInstalled.Before(bInstalled)
}

// canonicalVersion maps a display version like "21.0.3+9" onto a comparable
// semver string. Unparseable versions compare as empty and sort last.
func canonicalVersion(version string) string {
	version, _, _ = strings.Cut(version, "+")
	version, _, _ = strings.Cut(version, "-")
	v := "v" + version
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
