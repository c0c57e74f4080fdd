// SPDX-License-Identifier: MPL-2.0

package jvm

import "runtime"

// PlatformArch returns the Adoptium architecture name for the current build.
func PlatformArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}

// PlatformOS returns the Adoptium operating system name for the current build.
func PlatformOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "mac"
	default:
		return runtime.GOOS
	}
}

// executableName returns the platform-appropriate java executable filename.
func executableName() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}
