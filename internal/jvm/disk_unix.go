// SPDX-License-Identifier: MPL-2.0

//go:build linux || darwin

package jvm

import "golang.org/x/sys/unix"

// freeDiskBytes returns the bytes available to unprivileged writers on the
// filesystem holding path. ok is false when the query is unsupported or
// fails, in which case the caller skips the space check.
func freeDiskBytes(path string) (free uint64, ok bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, false
	}
	return uint64(st.Bavail) * uint64(st.Bsize), true
}
