// SPDX-License-Identifier: MPL-2.0

//go:build linux

package lockfile

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// FlockGuard holds a blocking exclusive flock on a well-known file path. It is
// the lightweight serialization used for index-only writes (pruning, cache
// repair), where the heavyweight install lock would be overkill. The zero-byte
// guard file is harmless if orphaned — the kernel releases the flock when the
// fd is closed, including on process crash.
type FlockGuard struct {
	file *os.File
}

// AcquireFlock opens (or creates) the guard file and takes a blocking
// exclusive flock. The call blocks until the lock is available.
func AcquireFlock(path string) (*FlockGuard, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open flock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &FlockGuard{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. It is safe to call
// multiple times — subsequent calls are no-ops.
func (g *FlockGuard) Release() {
	if g == nil || g.file == nil {
		return
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	if err := unix.Flock(int(g.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Debug("flock unlock failed", "error", err)
	}
	if err := g.file.Close(); err != nil {
		slog.Debug("flock file close failed", "error", err)
	}
	g.file = nil
}
