// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/caldera-launcher/caldera/internal/adoptium"
	"github.com/caldera-launcher/caldera/internal/config"
	"github.com/caldera-launcher/caldera/internal/jvm"
)

// specCacheTTL is how long resolved release metadata is reused before the
// release API is consulted again.
const specCacheTTL = time.Hour

var (
	runtimeRole        string
	runtimeGameVersion string
	runtimeMajor       int
	runtimePruneMajor  int
	runtimePruneKeep   int

	runtimeCmd = &cobra.Command{
		Use:   "runtime",
		Short: "Manage the Java runtimes caldera installs for the launcher",
	}

	runtimeEnsureCmd = &cobra.Command{
		Use:   "ensure",
		Short: "Resolve a usable runtime, installing one if needed",
		Long: `Resolve a runtime for the requested role, installing one when nothing on
disk satisfies the requirement. Prints the resolved executable path.

For the 'game' role the required Java major version is derived from
--game-version (or forced with --major). The 'tooling' role always uses
caldera's fixed tooling version.`,
		RunE: runRuntimeEnsure,
	}

	runtimeListCmd = &cobra.Command{
		Use:   "list",
		Short: "List managed runtimes for every role",
		RunE:  runRuntimeList,
	}

	runtimePruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Remove superseded runtimes",
		Long: `Remove old installs, keeping the newest copies of each major version per
role. Runtimes that are currently resolved or mid-install are never touched.`,
		RunE: runRuntimePrune,
	}

	runtimeDoctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Probe every managed runtime and report problems",
		RunE:  runRuntimeDoctor,
	}
)

func init() {
	runtimeEnsureCmd.Flags().StringVar(&runtimeRole, "role", string(jvm.RoleGame), "runtime role (game or tooling)")
	runtimeEnsureCmd.Flags().StringVar(&runtimeGameVersion, "game-version", "", "game version to resolve a runtime for")
	runtimeEnsureCmd.Flags().IntVar(&runtimeMajor, "major", 0, "force a minimum Java major version")
	runtimePruneCmd.Flags().StringVar(&runtimeRole, "role", "", "prune a single role instead of all")
	runtimePruneCmd.Flags().IntVar(&runtimePruneMajor, "major", 0, "prune only installs of this Java major version")
	runtimePruneCmd.Flags().IntVar(&runtimePruneKeep, "keep", 0, "override how many installs to keep per major version")

	runtimeCmd.AddCommand(runtimeEnsureCmd)
	runtimeCmd.AddCommand(runtimeListCmd)
	runtimeCmd.AddCommand(runtimePruneCmd)
	runtimeCmd.AddCommand(runtimeDoctorCmd)
}

// newManager wires a runtime manager from the loaded configuration.
func newManager(cfg *config.Config) (*jvm.Manager, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		resolved, err := config.DataDir()
		if err != nil {
			return nil, err
		}
		dataDir = resolved
	}

	table := jvm.DefaultRequirementTable()
	if cfg.Runtime.RequirementTable != "" {
		loaded, err := jvm.LoadRequirementTable(cfg.Runtime.RequirementTable)
		if err != nil {
			return nil, err
		}
		table = loaded
	}

	logger := slog.New(log.Default())
	cache := adoptium.NewSpecCache(filepath.Join(dataDir, "cache", "release-specs.json"), specCacheTTL)
	client := adoptium.NewClient(
		adoptium.WithBaseURL(cfg.APIBaseURL),
		adoptium.WithUserAgent("caldera/"+Version),
		adoptium.WithRetryPolicy(cfg.Runtime.MaxDownloadAttempts, time.Second),
		adoptium.WithSpecCache(cache),
		adoptium.WithCooldownMarker(filepath.Join(dataDir, "cache", "rate-limit")),
	)
	validator := &jvm.Validator{Timeout: cfg.Runtime.ProbeTimeout}

	return &jvm.Manager{
		DataDir:   dataDir,
		Table:     table,
		Validator: validator,
		Logger:    logger,
		Installer: &jvm.Installer{
			Client:           client,
			Validator:        validator,
			Logger:           logger,
			MinFreeBytes:     uint64(cfg.Runtime.MinFreeMB) << 20,
			DownloadAttempts: cfg.Runtime.MaxDownloadAttempts,
		},
		LockTTL:      cfg.Runtime.LockTTL,
		KeepPerMajor: cfg.Runtime.KeepPerMajor,
	}, nil
}

func parseRole(raw string) (jvm.Role, error) {
	role := jvm.Role(raw)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q (valid roles: %s, %s)", raw, jvm.RoleGame, jvm.RoleTooling)
	}
	return role, nil
}

func runRuntimeEnsure(cmd *cobra.Command, _ []string) error {
	role, err := parseRole(runtimeRole)
	if err != nil {
		return err
	}
	if role == jvm.RoleGame && runtimeGameVersion == "" && runtimeMajor == 0 {
		return fmt.Errorf("the game role needs --game-version or --major")
	}

	manager, err := newManager(loadedCfg)
	if err != nil {
		return err
	}

	var lastPct int64 = -1
	manager.Installer.Progress = func(downloaded, total int64) {
		if total <= 0 {
			return
		}
		pct := downloaded * 100 / total
		if pct/10 != lastPct/10 {
			lastPct = pct
			log.Info("downloading runtime", "progress", fmt.Sprintf("%d%%", pct))
		}
	}

	desc, err := manager.Resolve(cmd.Context(), role, jvm.Request{
		GameVersion: runtimeGameVersion,
		MinMajor:    runtimeMajor,
	})
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	fmt.Println(SuccessStyle.Render("✓ ") + fmt.Sprintf("Java %d ready ", desc.MajorVersion) +
		SubtitleStyle.Render("("+desc.DisplayVersion+")"))
	fmt.Println(PathStyle.Render(desc.ExecutablePath))
	return nil
}

func runRuntimeList(_ *cobra.Command, _ []string) error {
	manager, err := newManager(loadedCfg)
	if err != nil {
		return err
	}

	for _, role := range []jvm.Role{jvm.RoleGame, jvm.RoleTooling} {
		installs, err := manager.Installed(role)
		if err != nil {
			return err
		}
		fmt.Println(TitleStyle.Render(string(role)))
		if len(installs) == 0 {
			fmt.Println(SubtitleStyle.Render("  (no runtimes installed)"))
			continue
		}
		for _, inst := range installs {
			if inst.Err != nil {
				fmt.Printf("  %s %s %s\n",
					ErrorStyle.Render("!"),
					filepath.Base(inst.Dir),
					SubtitleStyle.Render("unreadable manifest"))
				continue
			}
			fmt.Printf("  Java %-3d %-14s %s\n",
				inst.Manifest.MajorVersion,
				inst.Manifest.DisplayVersion,
				SubtitleStyle.Render(inst.Manifest.Identifier))
		}
	}
	return nil
}

func runRuntimePrune(_ *cobra.Command, _ []string) error {
	manager, err := newManager(loadedCfg)
	if err != nil {
		return err
	}

	roles := []jvm.Role{jvm.RoleGame, jvm.RoleTooling}
	if runtimeRole != "" {
		role, err := parseRole(runtimeRole)
		if err != nil {
			return err
		}
		roles = []jvm.Role{role}
	}

	if runtimePruneKeep > 0 {
		manager.KeepPerMajor = runtimePruneKeep
	}
	for _, role := range roles {
		if err := manager.Prune(role, runtimePruneMajor); err != nil {
			return &ExitError{Code: 1, Err: err}
		}
	}
	fmt.Println(SuccessStyle.Render("✓ ") + "prune complete")
	return nil
}

func runRuntimeDoctor(cmd *cobra.Command, _ []string) error {
	manager, err := newManager(loadedCfg)
	if err != nil {
		return err
	}

	var problems int
	for _, role := range []jvm.Role{jvm.RoleGame, jvm.RoleTooling} {
		installs, err := manager.Installed(role)
		if err != nil {
			return err
		}
		fmt.Println(TitleStyle.Render(string(role)) + " " + PathStyle.Render(manager.RoleRoot(role)))
		if len(installs) == 0 {
			fmt.Println(SubtitleStyle.Render("  (no runtimes installed)"))
			continue
		}
		for _, inst := range installs {
			problems += reportInstall(cmd.Context(), manager, inst)
		}
	}

	if problems > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d runtime(s) failed verification", problems)}
	}
	fmt.Println(SuccessStyle.Render("✓ ") + "all runtimes healthy")
	return nil
}

// reportInstall verifies one install and prints a line for it, returning 1
// when it is unhealthy.
func reportInstall(ctx context.Context, manager *jvm.Manager, inst jvm.InstalledRuntime) int {
	name := filepath.Base(inst.Dir)
	if inst.Err != nil {
		fmt.Printf("  %s %s %s\n", ErrorStyle.Render("✗"), name, SubtitleStyle.Render("unreadable manifest"))
		return 1
	}

	exePath := inst.Manifest.ExecutablePath(inst.Dir)
	if inst.Manifest.ExecutableChecksum != "" {
		if err := jvm.VerifyFile(exePath, inst.Manifest.ExecutableChecksum); err != nil {
			fmt.Printf("  %s %s %s\n", ErrorStyle.Render("✗"), name, SubtitleStyle.Render("executable checksum mismatch"))
			return 1
		}
	}
	if _, err := manager.Validator.Validate(ctx, exePath,
		jvm.Requirement{MinMajor: inst.Manifest.MajorVersion}); err != nil {
		fmt.Printf("  %s %s %s\n", ErrorStyle.Render("✗"), name, SubtitleStyle.Render(err.Error()))
		return 1
	}

	fmt.Printf("  %s %s\n", SuccessStyle.Render("✓"), name)
	return 0
}
