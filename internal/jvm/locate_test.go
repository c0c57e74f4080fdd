// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestLocateExecutablesStandardLayout(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "bin", executableName())
	touch(t, want)

	got := LocateExecutables(root)
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %v, want [%s]", got, want)
	}
}

func TestLocateExecutablesBundleLayout(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "Contents", "Home", "bin", executableName())
	touch(t, want)

	got := LocateExecutables(root)
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %v, want [%s]", got, want)
	}
}

func TestLocateExecutablesRecursiveFallback(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "jdk-17.0.9+9-jre", "bin", executableName())
	touch(t, want)

	got := LocateExecutables(root)
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %v, want [%s]", got, want)
	}
}

func TestLocateExecutablesDepthBound(t *testing.T) {
	root := t.TempDir()
	deep := root
	for range maxLocateDepth + 2 {
		deep = filepath.Join(deep, "d")
	}
	touch(t, filepath.Join(deep, executableName()))

	if got := LocateExecutables(root); len(got) != 0 {
		t.Fatalf("expected nothing beyond the depth bound, got %v", got)
	}
}

func TestLocateExecutablesEmpty(t *testing.T) {
	if got := LocateExecutables(t.TempDir()); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}
