// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ManifestSchemaVersion is the current manifest schema. The field set only
	// ever grows; readers tolerate optional fields that older installs lack.
	ManifestSchemaVersion = 3

	// manifestFileName is the manifest's well-known name inside each install
	// directory.
	manifestFileName = "runtime.json"
)

// Manifest describes one installed runtime. It is written exactly once, as
// the final step before an install is promoted; a directory without a valid
// manifest is never considered installed.
type Manifest struct {
	SchemaVersion          int       `json:"schemaVersion"`
	Identifier             string    `json:"identifier"`
	MajorVersion           int       `json:"majorVersion"`
	DisplayVersion         string    `json:"displayVersion"`
	Architecture           string    `json:"architecture"`
	ArchiveChecksum        string    `json:"archiveChecksum"`
	ExecutableChecksum     string    `json:"executableChecksum"`
	InstalledAt            time.Time `json:"installedAt"`
	SourceURL              string    `json:"sourceUrl"`
	ExecutableRelativePath string    `json:"executableRelativePath,omitempty"`

	// PermissionsApplied records that the executable bit has been set, so
	// later resolutions skip the chmod. Added in schema version 3; absent in
	// older installs, which decode it as false and re-apply harmlessly.
	PermissionsApplied bool `json:"permissionsApplied,omitempty"`
}

// Validate checks the fields every reader depends on. Schema versions newer
// than ManifestSchemaVersion are accepted as long as these fields parse —
// the schema is forward-tolerant by construction.
func (m *Manifest) Validate() error {
	switch {
	case m.SchemaVersion <= 0:
		return fmt.Errorf("manifest missing schemaVersion")
	case m.Identifier == "":
		return fmt.Errorf("manifest missing identifier")
	case m.MajorVersion <= 0:
		return fmt.Errorf("manifest has no major version")
	case !is64BitArch(m.Architecture):
		return fmt.Errorf("manifest architecture %q is not a supported 64-bit architecture", m.Architecture)
	}
	return nil
}

// ExecutablePath returns the absolute executable path for an install rooted
// at dir, preferring the recorded relative path and falling back to layout
// discovery for manifests written before the field existed.
func (m *Manifest) ExecutablePath(dir string) string {
	if m.ExecutableRelativePath != "" {
		p := filepath.Join(dir, filepath.FromSlash(m.ExecutableRelativePath))
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if candidates := LocateExecutables(dir); len(candidates) > 0 {
		return candidates[0]
	}
	return filepath.Join(dir, "bin", executableName())
}

// ReadManifest loads and validates the manifest in dir. Any failure — missing
// file, unparsable JSON, invalid fields — is reported as ErrNoManifest: to
// every consumer those cases all mean "not installed".
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, manifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoManifest, dir)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: unparsable manifest in %s: %v", ErrNoManifest, dir, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoManifest, err)
	}

	return &m, nil
}

// WriteManifest persists m into dir via write-to-temp-then-rename so a crash
// mid-write never leaves a half-written manifest that a reader could parse.
func WriteManifest(dir string, m *Manifest) error {
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".runtime-*.json")
	if err != nil {
		return fmt.Errorf("creating manifest temp file: %w", err)
	}

	_, err = tmp.Write(payload)
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing manifest: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, manifestFileName)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("installing manifest: %w", err)
	}
	return nil
}

// MakeIdentifier builds the vendor-independent install key, e.g.
// "java17-temurin-17.0.9-x64". The identifier doubles as the install
// directory name, so version separators that are awkward in paths are
// normalized away.
func MakeIdentifier(major int, vendor, version, arch string) string {
	norm := strings.NewReplacer("+", "_", " ", "").Replace(version)
	return fmt.Sprintf("java%d-%s-%s-%s", major, strings.ToLower(vendor), norm, arch)
}

// is64BitArch reports whether arch names a supported 64-bit architecture.
func is64BitArch(arch string) bool {
	switch arch {
	case "x64", "aarch64", "arm64", "amd64", "x86_64":
		return true
	}
	return false
}
