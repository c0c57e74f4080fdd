// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Role names a purpose for a runtime instance. Each role owns an isolated
// storage subtree, lock targets, and index, so the two lifecycles can never
// collide — even when both roles require the same major version.
type Role string

const (
	// RoleGame runtimes execute the game itself; the required major follows
	// the game version through the requirement table.
	RoleGame Role = "game"

	// RoleTooling runtimes run caldera's own internal tools (mod-loader
	// installers, bootstrap helpers); the required major is fixed and
	// conservative regardless of what the game needs.
	RoleTooling Role = "tooling"
)

// ToolingMajor is the fixed feature version for RoleTooling.
const ToolingMajor = 17

// Valid reports whether r names a known role.
func (r Role) Valid() bool {
	return r == RoleGame || r == RoleTooling
}

type (
	// ReleaseRule maps game versions at or above MinVersion to a required
	// major. Rules are data, not logic: the table can grow with new game
	// releases without touching the resolver.
	ReleaseRule struct {
		MinVersion string `toml:"min_version"`
		Major      int    `toml:"major"`
	}

	// SnapshotRule maps snapshot versions ("24w09a") by two-digit year.
	SnapshotRule struct {
		MinYear int `toml:"min_year"`
		Major   int `toml:"major"`
	}

	// RequirementTable derives the required runtime major from a game
	// version. Release rules are consulted in order, most-demanding first;
	// the first rule whose MinVersion is at or below the game version wins.
	RequirementTable struct {
		Snapshots []SnapshotRule `toml:"snapshot"`
		Releases  []ReleaseRule  `toml:"release"`
		// Fallback applies when no rule matches (ancient versions).
		Fallback int `toml:"fallback_major"`
	}
)

// DefaultRequirementTable mirrors the game's published runtime requirements:
// 1.20.5 moved to Java 21, 1.17 moved to Java 17, everything older runs on 8.
// Snapshots from the 2024 cycle onward need 21.
func DefaultRequirementTable() *RequirementTable {
	return &RequirementTable{
		Snapshots: []SnapshotRule{
			{MinYear: 24, Major: 21},
			{MinYear: 0, Major: 17},
		},
		Releases: []ReleaseRule{
			{MinVersion: "1.20.5", Major: 21},
			{MinVersion: "1.17", Major: 17},
		},
		Fallback: 8,
	}
}

// LoadRequirementTable reads a table from a TOML file, for deployments that
// need to extend the mapping ahead of a caldera release.
func LoadRequirementTable(path string) (*RequirementTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading requirement table: %w", err)
	}
	var table RequirementTable
	if err := toml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing requirement table %s: %w", path, err)
	}
	if table.Fallback == 0 {
		table.Fallback = 8
	}
	return &table, nil
}

// RequiredMajor returns the runtime major the given game version needs.
func (t *RequirementTable) RequiredMajor(gameVersion string) int {
	if year, ok := parseSnapshotYear(gameVersion); ok {
		for _, rule := range t.Snapshots {
			if year >= rule.MinYear {
				return rule.Major
			}
		}
		return t.Fallback
	}

	for _, rule := range t.Releases {
		if compareGameVersions(gameVersion, rule.MinVersion) >= 0 {
			return rule.Major
		}
	}
	return t.Fallback
}

// parseSnapshotYear recognizes the "YYwWWx" snapshot scheme and extracts the
// two-digit year.
func parseSnapshotYear(version string) (int, bool) {
	lower := strings.ToLower(version)
	w := strings.IndexByte(lower, 'w')
	if w < 2 {
		return 0, false
	}
	year, err := strconv.Atoi(lower[w-2 : w])
	if err != nil {
		return 0, false
	}
	return year, true
}

// compareGameVersions compares dotted numeric versions, treating missing
// segments as zero ("1.17" == "1.17.0"). Non-numeric segments compare as
// zero, which is good enough for release version strings.
func compareGameVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
