// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with TOML as
// the file format.
//
// Configuration is loaded from ~/.config/caldera/config.toml (or XDG
// equivalent on Linux, ~/Library/Application Support/caldera/config.toml on
// macOS, %APPDATA%\caldera\config.toml on Windows). Every setting can also be
// supplied through the environment with the CALDERA_ prefix, e.g.
// CALDERA_RUNTIME_KEEP_PER_MAJOR=3.
package config
