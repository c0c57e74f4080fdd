// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRequiredMajorDefaults(t *testing.T) {
	table := DefaultRequirementTable()
	tests := []struct {
		gameVersion string
		want        int
	}{
		{"1.16.5", 8},
		{"1.12.2", 8},
		{"1.8.9", 8},
		{"1.17", 17},
		{"1.17.1", 17},
		{"1.18.2", 17},
		{"1.20.4", 17},
		{"1.20.5", 21},
		{"1.20.6", 21},
		{"1.21", 21},
		{"1.21.4", 21},
		{"24w09a", 21},
		{"25w03b", 21},
		{"23w31a", 17},
		{"17w43a", 17},
		{"", 8},
	}
	for _, tc := range tests {
		if got := table.RequiredMajor(tc.gameVersion); got != tc.want {
			t.Errorf("RequiredMajor(%q) = %d, want %d", tc.gameVersion, got, tc.want)
		}
	}
}

func TestParseSnapshotYear(t *testing.T) {
	tests := []struct {
		version string
		year    int
		ok      bool
	}{
		{"24w09a", 24, true},
		{"23W31A", 23, true},
		{"1.20.5", 0, false},
		{"w01a", 0, false},
		{"xxw01a", 0, false},
	}
	for _, tc := range tests {
		year, ok := parseSnapshotYear(tc.version)
		if year != tc.year || ok != tc.ok {
			t.Errorf("parseSnapshotYear(%q) = (%d, %v), want (%d, %v)", tc.version, year, ok, tc.year, tc.ok)
		}
	}
}

func TestCompareGameVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.20.5", "1.20.5", 0},
		{"1.17", "1.17.0", 0},
		{"1.20.4", "1.20.5", -1},
		{"1.21", "1.20.5", 1},
		{"1.9", "1.10", -1},
	}
	for _, tc := range tests {
		if got := compareGameVersions(tc.a, tc.b); got != tc.want {
			t.Errorf("compareGameVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestLoadRequirementTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.toml")
	content := `
fallback_major = 8

[[snapshot]]
min_year = 26
major = 25

[[snapshot]]
min_year = 24
major = 21

[[release]]
min_version = "1.22"
major = 25

[[release]]
min_version = "1.20.5"
major = 21
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadRequirementTable(path)
	if err != nil {
		t.Fatalf("LoadRequirementTable: %v", err)
	}
	if got := table.RequiredMajor("1.22.1"); got != 25 {
		t.Errorf("RequiredMajor(1.22.1) = %d, want 25", got)
	}
	if got := table.RequiredMajor("26w02a"); got != 25 {
		t.Errorf("RequiredMajor(26w02a) = %d, want 25", got)
	}
	if got := table.RequiredMajor("1.4.7"); got != 8 {
		t.Errorf("RequiredMajor(1.4.7) = %d, want 8 via fallback", got)
	}
}

func TestLoadRequirementTableMissing(t *testing.T) {
	if _, err := LoadRequirementTable(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleGame.Valid() || !RoleTooling.Valid() {
		t.Error("built-in roles must be valid")
	}
	if Role("jukebox").Valid() {
		t.Error("unknown role must be invalid")
	}
}
