// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHashAndVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	if err := os.WriteFile(path, []byte("hello runtime"), 0o644); err != nil {
		t.Fatal(err)
	}

	digest, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if len(digest) != 64 {
		t.Fatalf("digest length %d, want 64 hex chars", len(digest))
	}

	if err := VerifyFile(path, digest); err != nil {
		t.Errorf("VerifyFile with exact digest: %v", err)
	}
	if err := VerifyFile(path, strings.ToUpper(digest)); err != nil {
		t.Errorf("VerifyFile should be case-insensitive: %v", err)
	}
}

func TestVerifyFileMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := VerifyFile(path, strings.Repeat("0", 64))
	if !errors.Is(err, ErrIntegrityMismatch) {
		t.Fatalf("got %v, want ErrIntegrityMismatch", err)
	}
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("got %T, want *IntegrityError", err)
	}
	if ie.Path != path || ie.Got == ie.Expected {
		t.Errorf("unexpected error detail: %+v", ie)
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, err := HashFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
