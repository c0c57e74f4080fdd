// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxEntryBytes caps a single extracted file (600 MB). Runtime archives hold
// nothing close to this; the limit guards against decompression bombs.
const maxEntryBytes = 600 << 20

// extractArchive unpacks the runtime archive at archivePath into destDir,
// dispatching on the filename. Adoptium ships zip for Windows and tar.gz for
// Linux and macOS. All failures wrap ErrExtractionFailed.
func extractArchive(archivePath, destDir string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(archivePath, destDir)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return extractTarGz(archivePath, destDir)
	default:
		return fmt.Errorf("%w: unrecognized archive format %s", ErrExtractionFailed, filepath.Base(archivePath))
	}
}

// extractZip unpacks a zip archive, stripping the single top-level directory
// that runtime archives wrap their contents in (jdk-17.0.9+9-jre/...).
func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrExtractionFailed, archivePath, err)
	}
	defer func() { _ = r.Close() }() // read-only archive handle

	for _, entry := range r.File {
		rel, ok := stripLeadingComponent(entry.Name)
		if !ok {
			continue
		}
		outPath, err := safeJoin(destDir, rel)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
			continue
		}

		if err := writeZipEntry(entry, outPath); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(entry *zip.File, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: opening entry %s: %v", ErrExtractionFailed, entry.Name, err)
	}
	defer func() { _ = in.Close() }() // read-only entry reader

	return copyEntry(in, outPath, entry.Mode())
}

// extractTarGz unpacks a tar.gz archive with the same leading-component strip
// as extractZip. Regular files, directories, and intra-archive symlinks are
// materialized; other entry types are skipped.
func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrExtractionFailed, archivePath, err)
	}
	defer func() { _ = f.Close() }() // read-only file handle

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: creating gzip reader: %v", ErrExtractionFailed, err)
	}
	defer func() { _ = gz.Close() }() // wraps the underlying file

	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return fmt.Errorf("%w: reading tar entry: %v", ErrExtractionFailed, nextErr)
		}

		rel, ok := stripLeadingComponent(hdr.Name)
		if !ok {
			continue
		}
		outPath, err := safeJoin(destDir, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
			if err := copyEntry(io.LimitReader(tr, maxEntryBytes), outPath, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			// Runtime bundles (notably macOS) use relative symlinks inside
			// the archive; reject anything that escapes the destination.
			if filepath.IsAbs(hdr.Linkname) || escapesDir(filepath.Dir(rel), hdr.Linkname) {
				return fmt.Errorf("%w: symlink %s escapes archive root", ErrExtractionFailed, hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
			if err := os.Symlink(hdr.Linkname, outPath); err != nil && !errors.Is(err, os.ErrExist) {
				return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
		}
	}
	return nil
}

// copyEntry streams an archive entry to outPath, capped at maxEntryBytes and
// preserving the entry's permission bits.
func copyEntry(in io.Reader, outPath string, mode fs.FileMode) (err error) {
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o200)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrExtractionFailed, outPath, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: closing %s: %v", ErrExtractionFailed, outPath, closeErr)
		}
	}()

	if _, err := io.Copy(out, io.LimitReader(in, maxEntryBytes)); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrExtractionFailed, outPath, err)
	}
	return nil
}

// stripLeadingComponent drops the archive's single wrapping directory from an
// entry name and reports whether anything remains.
func stripLeadingComponent(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	i := strings.IndexByte(name, '/')
	if i < 0 {
		return "", false
	}
	rest := strings.TrimPrefix(name[i+1:], "/")
	if rest == "" {
		return "", false
	}
	return rest, true
}

// safeJoin joins rel under dir and rejects entries that traverse outside it.
func safeJoin(dir, rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || escapesDir(".", cleaned) {
		return "", fmt.Errorf("%w: entry path %q escapes archive root", ErrExtractionFailed, rel)
	}
	return filepath.Join(dir, cleaned), nil
}

// escapesDir reports whether joining rel onto base climbs out of the archive
// root.
func escapesDir(base, rel string) bool {
	joined := filepath.Clean(filepath.Join(base, rel))
	return joined == ".." || strings.HasPrefix(joined, ".."+string(filepath.Separator))
}
