// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caldera-launcher/caldera/internal/adoptium"
)

const (
	// stagingDirName holds per-install staging directories and downloaded
	// archives under a role root. Nothing inside it is ever treated as an
	// install; leftovers from crashed processes are ignored and cleaned
	// opportunistically.
	stagingDirName = "temp"

	// defaultMinFreeBytes is the free-space floor checked before download
	// and extract (512 MB).
	defaultMinFreeBytes = 512 << 20

	// defaultDownloadAttempts bounds download retries per install.
	defaultDownloadAttempts = 3

	// defaultDownloadBackoff is the initial download retry delay.
	defaultDownloadBackoff = time.Second
)

// Phase identifies a step of the install pipeline. The pipeline is linear
// with no skips; a failure carries the phase it occurred in so callers (and
// tests) can assert on exactly how far an install got.
type Phase int

const (
	PhaseResolveRelease Phase = iota
	PhaseDownload
	PhaseExtract
	PhaseNormalizePermissions
	PhaseWriteManifest
	PhasePromote
	PhasePostValidate
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseResolveRelease:
		return "resolve-release"
	case PhaseDownload:
		return "download"
	case PhaseExtract:
		return "extract"
	case PhaseNormalizePermissions:
		return "normalize-permissions"
	case PhaseWriteManifest:
		return "write-manifest"
	case PhasePromote:
		return "promote"
	case PhasePostValidate:
		return "post-validate"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// InstallError reports the failed phase along with the cause.
type InstallError struct {
	Phase Phase
	Err   error
}

// Error describes the failure and the phase it happened in.
func (e *InstallError) Error() string {
	return fmt.Sprintf("install failed during %s: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InstallError) Unwrap() error { return e.Err }

// Installer runs the install pipeline for one role root:
// resolve -> download -> extract -> normalize permissions -> write manifest
// -> atomic promote -> post-install validate. Failures before the promote
// discard staging and leave any previous install untouched; a post-validate
// failure rolls the promote back.
type Installer struct {
	Client    *adoptium.Client
	Validator *Validator
	Logger    *slog.Logger

	// Arch and OS default to the current platform's Adoptium names.
	Arch string
	OS   string

	// Progress receives download progress; nil disables reporting.
	Progress ProgressFunc

	// MinFreeBytes overrides the free-space floor; 0 means the default.
	MinFreeBytes uint64

	// DownloadAttempts and DownloadBackoff override the retry policy;
	// zero values mean the defaults.
	DownloadAttempts int
	DownloadBackoff  time.Duration
}

func (ins *Installer) logger() *slog.Logger {
	if ins.Logger != nil {
		return ins.Logger
	}
	return slog.Default()
}

func (ins *Installer) arch() string {
	if ins.Arch != "" {
		return ins.Arch
	}
	return PlatformArch()
}

func (ins *Installer) osName() string {
	if ins.OS != "" {
		return ins.OS
	}
	return PlatformOS()
}

// Install acquires a runtime of the given major under root and returns its
// manifest. The caller holds the install lock for root/major; Install itself
// does not lock.
func (ins *Installer) Install(ctx context.Context, root string, major int) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Join(root, stagingDirName), 0o755); err != nil {
		return nil, &InstallError{Phase: PhaseResolveRelease, Err: err}
	}

	spec, err := ins.Client.ResolveRelease(ctx, major, ins.arch(), ins.osName())
	if err != nil {
		return nil, &InstallError{Phase: PhaseResolveRelease, Err: err}
	}

	identifier := MakeIdentifier(spec.Major, spec.Vendor, spec.Version, spec.Arch)
	stagingID := uuid.NewString()
	stagingDir := filepath.Join(root, stagingDirName, stagingID)
	archivePath := filepath.Join(root, stagingDirName, stagingID+archiveExt(spec.URL))

	// Staging is discarded on every failure path before the promote; after a
	// successful promote the staging dir no longer exists and RemoveAll is a
	// no-op.
	defer func() {
		_ = os.RemoveAll(stagingDir)
		_ = os.Remove(archivePath)
	}()

	log := ins.logger().With("identifier", identifier, "major", major)
	log.Info("installing runtime", "url", spec.URL, "imageType", spec.ImageType)

	if err := ensureFreeDisk(root, ins.minFree()); err != nil {
		return nil, &InstallError{Phase: PhaseDownload, Err: err}
	}

	start := time.Now()
	err = downloadAndVerify(ctx, ins.Client, spec.URL, archivePath, spec.SHA256,
		ins.downloadAttempts(), ins.downloadBackoff(), ins.Progress)
	if err != nil {
		return nil, &InstallError{Phase: PhaseDownload, Err: err}
	}
	log.Info("runtime downloaded", "elapsed", time.Since(start))

	if err := ensureFreeDisk(root, ins.minFree()); err != nil {
		return nil, &InstallError{Phase: PhaseExtract, Err: err}
	}
	if err := extractArchive(archivePath, stagingDir); err != nil {
		return nil, &InstallError{Phase: PhaseExtract, Err: err}
	}

	exePath, err := normalizePermissions(stagingDir)
	if err != nil {
		return nil, &InstallError{Phase: PhaseNormalizePermissions, Err: err}
	}

	exeHash, err := HashFile(exePath)
	if err != nil {
		return nil, &InstallError{Phase: PhaseWriteManifest, Err: err}
	}
	exeRel, err := filepath.Rel(stagingDir, exePath)
	if err != nil {
		return nil, &InstallError{Phase: PhaseWriteManifest, Err: err}
	}

	manifest := &Manifest{
		SchemaVersion:          ManifestSchemaVersion,
		Identifier:             identifier,
		MajorVersion:           spec.Major,
		DisplayVersion:         spec.Version,
		Architecture:           spec.Arch,
		ArchiveChecksum:        spec.SHA256,
		ExecutableChecksum:     exeHash,
		InstalledAt:            time.Now().UTC(),
		SourceURL:              spec.URL,
		ExecutableRelativePath: filepath.ToSlash(exeRel),
		PermissionsApplied:     true,
	}
	if err := WriteManifest(stagingDir, manifest); err != nil {
		return nil, &InstallError{Phase: PhaseWriteManifest, Err: err}
	}

	// The promote pair is deliberately short and not cancellable: from here
	// to post-validate the previous install survives as the backup.
	finalDir := filepath.Join(root, identifier)
	promo, err := promoteDir(stagingDir, finalDir)
	if err != nil {
		return nil, &InstallError{Phase: PhasePromote, Err: err}
	}

	finalExe := manifest.ExecutablePath(finalDir)
	if _, err := ins.Validator.Validate(ctx, finalExe, Requirement{MinMajor: major}); err != nil {
		if rbErr := promo.Rollback(); rbErr != nil {
			log.Error("rollback after failed post-install validation", "error", rbErr)
		}
		return nil, &InstallError{Phase: PhasePostValidate, Err: err}
	}
	promo.Commit()

	log.Info("runtime installed", "dir", finalDir, "version", manifest.DisplayVersion)
	return manifest, nil
}

func (ins *Installer) minFree() uint64 {
	if ins.MinFreeBytes != 0 {
		return ins.MinFreeBytes
	}
	return defaultMinFreeBytes
}

func (ins *Installer) downloadAttempts() int {
	if ins.DownloadAttempts != 0 {
		return ins.DownloadAttempts
	}
	return defaultDownloadAttempts
}

func (ins *Installer) downloadBackoff() time.Duration {
	if ins.DownloadBackoff != 0 {
		return ins.DownloadBackoff
	}
	return defaultDownloadBackoff
}

// normalizePermissions marks the staged executable runnable and returns its
// path.
func normalizePermissions(stagingDir string) (string, error) {
	candidates := LocateExecutables(stagingDir)
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no executable found in extracted archive", ErrExtractionFailed)
	}
	exePath := candidates[0]
	if err := applyExecutableMode(exePath); err != nil {
		return "", err
	}
	return exePath, nil
}

// applyExecutableMode sets the executable bit on path. On Windows the chmod
// is unnecessary and skipped.
func applyExecutableMode(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("marking %s executable: %w", path, err)
	}
	return nil
}

// ensureFreeDisk fails fast when the target filesystem is nearly full, so a
// doomed download does not waste bandwidth. Platforms without a free-space
// query skip the check.
func ensureFreeDisk(path string, minBytes uint64) error {
	free, ok := freeDiskBytes(path)
	if !ok {
		return nil
	}
	if free < minBytes {
		return fmt.Errorf("insufficient disk space under %s: %d bytes free, need %d", path, free, minBytes)
	}
	return nil
}

// archiveExt preserves the source archive's extension for the staged
// download file so extraction can dispatch on it.
func archiveExt(url string) string {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return ".zip"
	case strings.HasSuffix(url, ".tgz"):
		return ".tgz"
	default:
		return ".tar.gz"
	}
}

// CleanStaging removes leftover staging content under root, typically debris
// from a crashed installer. Only called while holding the install lock.
func CleanStaging(root string) {
	staging := filepath.Join(root, stagingDirName)
	entries, err := os.ReadDir(staging)
	if err != nil {
		return
	}
	for _, entry := range entries {
		_ = os.RemoveAll(filepath.Join(staging, entry.Name()))
	}
}
