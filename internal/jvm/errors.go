// SPDX-License-Identifier: MPL-2.0

package jvm

import "errors"

var (
	// ErrNoManifest indicates a directory has no valid, parseable manifest
	// and therefore is not an installed runtime, regardless of its contents.
	ErrNoManifest = errors.New("no runtime manifest")

	// ErrNoCompatibleRuntime indicates resolution exhausted the index, the
	// on-disk scan, and installation without producing a usable runtime.
	ErrNoCompatibleRuntime = errors.New("no compatible runtime")

	// ErrValidationFailed indicates a candidate executable failed probing:
	// spawn failure, unparsable banner, insufficient major, or not 64-bit.
	ErrValidationFailed = errors.New("runtime validation failed")

	// ErrIntegrityMismatch indicates on-disk content no longer matches the
	// checksum recorded in the manifest. The install is treated as unusable
	// and reinstalled; the old copy stays until the replacement validates.
	ErrIntegrityMismatch = errors.New("runtime integrity mismatch")

	// ErrExtractionFailed indicates the downloaded archive could not be
	// unpacked. The staging area is discarded and the error surfaced without
	// retry.
	ErrExtractionFailed = errors.New("archive extraction failed")
)
