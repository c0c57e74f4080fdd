// SPDX-License-Identifier: MPL-2.0

// Package jvm manages the Java-compatible runtimes that caldera installs and
// launches games with. It owns everything under the runtimes directory tree:
// acquisition (download, verify, extract, atomic promote), validation by
// probing the executable, a per-role index cache, role-based resolution, and
// retention of superseded installs.
//
// The package is organized by concern:
//   - manifest.go: the on-disk record describing one installed runtime
//   - locate.go: candidate executable discovery across on-disk layouts
//   - probe.go: vendor-agnostic validation by spawning the executable
//   - install.go: the linear install pipeline with rollback on failure
//   - index.go: the per-role identifier->summary cache file
//   - resolve.go: the Manager facade collaborators call
//   - retention.go: keep-N-per-major pruning of superseded installs
//
// A directory is an installed runtime if and only if it holds a valid,
// parseable manifest; everything else under a role root is ignored. Installed
// directories are immutable after promotion, which is what makes resolution
// reads lock-free.
package jvm
