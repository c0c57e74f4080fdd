// SPDX-License-Identifier: MPL-2.0

package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrBusy indicates another live process holds the lock. Callers decide their
// own backoff/retry policy; this package never queues or waits.
var ErrBusy = errors.New("lock held by another process")

var (
	// pidExists is a test seam for process liveness checks.
	//
	//nolint:gochecknoglobals // Test seam for gopsutil process.PidExists.
	pidExists = func(pid int) bool {
		alive, err := process.PidExists(int32(pid))
		if err != nil {
			// If liveness cannot be determined, assume the owner is alive so
			// the TTL remains the only reclaim path.
			return true
		}
		return alive
	}

	//nolint:gochecknoglobals // Test seam for os.Getpid.
	currentPID = os.Getpid
)

type (
	// Record is the on-disk lock payload. Presence/absence of the file plus
	// the staleness computation below is the entire protocol.
	Record struct {
		OwnerPID   int       `json:"pid"`
		AcquiredAt time.Time `json:"acquiredAt"`
	}

	// Lock represents a held lock. Release must run on every exit path of the
	// holder, including failure paths.
	Lock struct {
		path string
	}

	// BusyError carries enough detail for the caller to report contention and
	// schedule a retry. It wraps ErrBusy for errors.Is classification.
	BusyError struct {
		Path     string
		OwnerPID int
		Age      time.Duration
	}
)

// Error formats the contention details.
func (e *BusyError) Error() string {
	return fmt.Sprintf("lock %s held by pid %d for %s", e.Path, e.OwnerPID, e.Age.Round(time.Second))
}

// Unwrap returns ErrBusy so callers can use errors.Is.
func (e *BusyError) Unwrap() error { return ErrBusy }

// Stale reports whether the record may be reclaimed: the owning process is no
// longer running, or the record is older than ttl. The TTL check is
// deliberately independent of liveness — a recycled pid must not keep an
// abandoned lock alive forever.
func (r *Record) Stale(ttl time.Duration, now time.Time) bool {
	if !pidExists(r.OwnerPID) {
		return true
	}
	return now.Sub(r.AcquiredAt) > ttl
}

// Acquire attempts to take the lock at path. If no record exists, one is
// created with O_EXCL semantics and the lock is held. An existing stale record
// is reclaimed in one call. A live record yields a *BusyError.
//
// Reclaiming leaves a narrow window where two processes race to rewrite the
// record; after writing, the record is re-read and ownership verified, so at
// most one caller wins.
func Acquire(path string, ttl time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock, err := tryCreate(path)
	if err == nil {
		return lock, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	rec, readErr := readRecord(path)
	if readErr != nil {
		// Unreadable or truncated record (e.g. a crash mid-write): treat as
		// abandoned and reclaim.
		slog.Warn("reclaiming unreadable lock record", "path", path, "error", readErr)
		return reclaim(path)
	}

	now := time.Now()
	if !rec.Stale(ttl, now) {
		return nil, &BusyError{Path: path, OwnerPID: rec.OwnerPID, Age: now.Sub(rec.AcquiredAt)}
	}

	slog.Info("reclaiming stale lock", "path", path, "owner", rec.OwnerPID, "age", now.Sub(rec.AcquiredAt))
	return reclaim(path)
}

// Release deletes the lock record. It is safe to call multiple times and on a
// nil lock — subsequent calls are no-ops.
func (l *Lock) Release() {
	if l == nil || l.path == "" {
		return
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove lock record", "path", l.path, "error", err)
	}
	l.path = ""
}

// Path returns the location of the lock record, or "" after Release.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// IsLockedByOther reports whether a live (non-stale) record owned by a
// different process exists at path, without attempting to acquire it. A
// record owned by the calling process does not count: retention runs while
// the installer still holds its own install lock, and must not mistake that
// lock for foreign contention.
func IsLockedByOther(path string, ttl time.Duration) bool {
	rec, err := readRecord(path)
	if err != nil {
		return false
	}
	if rec.OwnerPID == currentPID() {
		return false
	}
	return !rec.Stale(ttl, time.Now())
}

// SweepStale removes abandoned *.lock files under dir. Failures are logged and
// ignored — the sweep is opportunistic hygiene, not a correctness requirement.
func SweepStale(dir string, ttl time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lock") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rec, err := readRecord(path)
		if err != nil || rec.Stale(ttl, now) {
			if rmErr := os.Remove(path); rmErr == nil {
				slog.Debug("swept stale lock", "path", path)
			}
		}
	}
}

// tryCreate writes a fresh record using create-if-absent semantics.
func tryCreate(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	rec := Record{OwnerPID: currentPID(), AcquiredAt: time.Now()}
	payload, err := json.Marshal(rec)
	if err == nil {
		_, err = f.Write(payload)
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing lock record %s: %w", path, err)
	}

	return &Lock{path: path}, nil
}

// reclaim overwrites an abandoned record and verifies ownership afterwards to
// resolve the race between concurrent reclaimers.
func reclaim(path string) (*Lock, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale lock %s: %w", path, err)
	}

	lock, err := tryCreate(path)
	if errors.Is(err, os.ErrExist) {
		// Another reclaimer won the create race.
		return nil, &BusyError{Path: path, OwnerPID: peekOwner(path)}
	}
	if err != nil {
		return nil, err
	}

	rec, err := readRecord(path)
	if err != nil || rec.OwnerPID != currentPID() {
		// A concurrent reclaimer overwrote the record between our write and
		// this verification read. Back off without deleting their record.
		lock.path = ""
		return nil, &BusyError{Path: path, OwnerPID: peekOwner(path)}
	}

	return lock, nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing lock record %s: %w", path, err)
	}
	if rec.OwnerPID <= 0 {
		return nil, fmt.Errorf("lock record %s has no owner pid", path)
	}
	return &rec, nil
}

func peekOwner(path string) int {
	rec, err := readRecord(path)
	if err != nil {
		return 0
	}
	return rec.OwnerPID
}
