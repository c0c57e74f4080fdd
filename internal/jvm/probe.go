// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// defaultProbeTimeout bounds each probe subprocess. A hung executable is a
// normal validation failure, not a fatal error.
const defaultProbeTimeout = 15 * time.Second

type (
	// Requirement is what a collaborator demands of a runtime: a minimum
	// feature version and (implicitly) a 64-bit build for the current
	// architecture. Vendor never appears here — validation is behavior-based
	// so runtimes installed by the host user qualify alongside managed ones.
	Requirement struct {
		MinMajor int
	}

	// Installation is the result of probing one executable.
	Installation struct {
		Path         string
		Version      string
		Major        int
		SixtyFourBit bool
		Vendor       string
	}

	// Validator classifies candidate executables as usable or not by running
	// them and parsing the version banner.
	Validator struct {
		// Timeout per probe subprocess; defaultProbeTimeout when zero.
		Timeout time.Duration
	}
)

// Satisfies reports whether the probed installation meets req.
func (inst *Installation) Satisfies(req Requirement) bool {
	return inst.Major >= req.MinMajor && inst.SixtyFourBit
}

// Probe spawns the executable with -XshowSettings:properties -version and
// parses the merged output. Any subprocess failure — spawn error, non-zero
// exit, timeout, unrecognizable banner — yields an error; a probe error never
// means anything more than "this candidate is unusable".
func (v *Validator) Probe(ctx context.Context, exePath string) (*Installation, error) {
	timeout := v.Timeout
	if timeout == 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The JVM prints the banner and the settings dump to stderr; merge both
	// streams so the parse does not depend on which one a given build uses.
	out, err := exec.CommandContext(ctx, exePath, "-XshowSettings:properties", "-version").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: spawning %s: %v", ErrValidationFailed, exePath, err)
	}

	banner := string(out)
	version, ok := parseVersionBanner(banner)
	if !ok {
		return nil, fmt.Errorf("%w: %s produced no recognizable version banner", ErrValidationFailed, exePath)
	}

	inst := &Installation{
		Path:         exePath,
		Version:      version,
		Major:        ParseMajorVersion(version),
		SixtyFourBit: is64BitBanner(banner),
		Vendor:       parseVendor(banner),
	}
	slog.Debug("probed runtime executable",
		"path", exePath, "version", version, "major", inst.Major, "64bit", inst.SixtyFourBit)
	return inst, nil
}

// Validate probes exePath and checks it against req. The returned error wraps
// ErrValidationFailed with the rejection reason.
func (v *Validator) Validate(ctx context.Context, exePath string, req Requirement) (*Installation, error) {
	inst, err := v.Probe(ctx, exePath)
	if err != nil {
		return nil, err
	}
	if inst.Major < req.MinMajor {
		return nil, fmt.Errorf("%w: %s is major %d, need >= %d", ErrValidationFailed, exePath, inst.Major, req.MinMajor)
	}
	if !inst.SixtyFourBit {
		return nil, fmt.Errorf("%w: %s is not a 64-bit build", ErrValidationFailed, exePath)
	}
	return inst, nil
}

// parseVersionBanner extracts the quoted version string from the first banner
// line that carries one, e.g. `openjdk version "17.0.9" 2023-10-17`.
func parseVersionBanner(output string) (string, bool) {
	for line := range strings.Lines(output) {
		start := strings.IndexByte(line, '"')
		if start < 0 {
			continue
		}
		end := strings.IndexByte(line[start+1:], '"')
		if end < 0 {
			continue
		}
		return line[start+1 : start+1+end], true
	}
	return "", false
}

// ParseMajorVersion maps a version string to its feature version, handling
// the legacy "1.8.0_392" scheme where the major lives in the second field.
func ParseMajorVersion(version string) int {
	parts := strings.Split(version, ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	if major == 1 && len(parts) > 1 {
		if legacy, err := strconv.Atoi(parts[1]); err == nil {
			return legacy
		}
	}
	return major
}

// is64BitBanner detects a 64-bit build from the settings dump. The data-model
// property is authoritative when present; the os.arch values cover JVMs that
// omit it.
func is64BitBanner(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "sun.arch.data.model = 64") ||
		strings.Contains(lower, "os.arch = amd64") ||
		strings.Contains(lower, "os.arch = x86_64") ||
		strings.Contains(lower, "os.arch = aarch64")
}

// parseVendor extracts a coarse vendor name for display purposes only;
// nothing downstream branches on it.
func parseVendor(output string) string {
	switch {
	case strings.Contains(output, "Temurin"):
		return "Temurin"
	case strings.Contains(output, "Adoptium"):
		return "Adoptium"
	case strings.Contains(output, "OpenJDK"):
		return "OpenJDK"
	}
	return "unknown"
}
