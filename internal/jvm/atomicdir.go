// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"fmt"
	"log/slog"
	"os"
)

// backupSuffix marks the previous install while its replacement is being
// post-validated. Directories with this suffix are never scanned as installs.
const backupSuffix = ".backup"

// promotion tracks an in-flight atomic directory replace. Between Promote and
// Commit/Rollback, the previous install (if any) sits at the backup path, so
// the final path is never simultaneously "new but broken" and "old and gone".
type promotion struct {
	final  string
	backup string // "" when there was no previous install
}

// promoteDir renames staging into final, first moving any previous install
// aside to a backup path. On rename failure the previous install is restored
// before the error is returned. The rename pair is the deliberately short,
// uncancellable window of an install.
func promoteDir(staging, final string) (*promotion, error) {
	p := &promotion{final: final}

	if _, err := os.Stat(final); err == nil {
		backup := final + backupSuffix
		// A backup left behind by a crashed predecessor is superseded.
		if err := os.RemoveAll(backup); err != nil {
			return nil, fmt.Errorf("clearing stale backup %s: %w", backup, err)
		}
		if err := os.Rename(final, backup); err != nil {
			return nil, fmt.Errorf("moving previous install aside: %w", err)
		}
		p.backup = backup
	}

	if err := os.Rename(staging, final); err != nil {
		if p.backup != "" {
			if restoreErr := os.Rename(p.backup, final); restoreErr != nil {
				slog.Error("failed to restore previous install after aborted promote",
					"backup", p.backup, "final", final, "error", restoreErr)
			}
		}
		return nil, fmt.Errorf("promoting staging directory: %w", err)
	}

	return p, nil
}

// Commit deletes the previous install now that the replacement has passed
// post-install validation.
func (p *promotion) Commit() {
	if p.backup == "" {
		return
	}
	if err := os.RemoveAll(p.backup); err != nil {
		slog.Warn("failed to remove superseded install", "path", p.backup, "error", err)
	}
	p.backup = ""
}

// Rollback discards the freshly promoted directory and restores the previous
// install, used when post-install validation fails.
func (p *promotion) Rollback() error {
	if err := os.RemoveAll(p.final); err != nil {
		return fmt.Errorf("removing failed install %s: %w", p.final, err)
	}
	if p.backup == "" {
		return nil
	}
	if err := os.Rename(p.backup, p.final); err != nil {
		return fmt.Errorf("restoring previous install: %w", err)
	}
	p.backup = ""
	return nil
}
