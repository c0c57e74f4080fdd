// SPDX-License-Identifier: MPL-2.0

// Package adoptium resolves downloadable runtime releases from the Adoptium
// (Eclipse Temurin) assets API. It provides release resolution with a
// jre-first/jdk-fallback policy, streamed asset download, bounded
// retry-with-backoff, and an on-disk resolution cache with TTL.
//
// The client is vendor metadata only: nothing here decides whether a runtime
// is usable — that is the validator's job after install.
package adoptium
