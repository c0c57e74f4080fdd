// SPDX-License-Identifier: MPL-2.0

//go:build !linux && !darwin

package jvm

// freeDiskBytes is unsupported on this platform; the installer skips the
// free-space check and lets the download or extract fail naturally.
func freeDiskBytes(path string) (free uint64, ok bool) {
	return 0, false
}
