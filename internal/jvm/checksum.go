// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// IntegrityError reports content whose SHA256 digest differs from the value
// recorded for it. It wraps ErrIntegrityMismatch so callers can use errors.Is.
type IntegrityError struct {
	Path     string
	Expected string
	Got      string
}

// Error returns both hash values for debugging.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s\nExpected: %s\nGot:      %s", e.Path, e.Expected, e.Got)
}

// Unwrap returns ErrIntegrityMismatch so callers can use errors.Is.
func (e *IntegrityError) Unwrap() error { return ErrIntegrityMismatch }

// HashFile computes the lowercase hex-encoded SHA256 digest of the file at
// path, streaming it through the hash to avoid loading it into memory.
func HashFile(path string) (_ string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile compares the file's SHA256 digest against expectedHash
// (case-insensitive). A mismatch yields an *IntegrityError.
func VerifyFile(path, expectedHash string) error {
	got, err := HashFile(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, expectedHash) {
		return &IntegrityError{
			Path:     path,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}
	return nil
}
