// SPDX-License-Identifier: MPL-2.0

// Package lockfile implements file-based mutual exclusion between caldera
// processes. A lock is a small JSON record (owner pid, acquisition time)
// created with O_EXCL semantics; stale records — dead owner or expired TTL —
// are reclaimed in place. A separate flock-based guard protects index-only
// writes on Linux.
package lockfile
