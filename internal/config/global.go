// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride redirects config directory lookup, bypassing
// os.UserHomeDir, which does not always follow a re-pointed HOME (macOS CI
// being the usual offender).
var configDirOverride string

// Reset clears the override. Call from test cleanup.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride pins the config directory for the process. Test-only.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
