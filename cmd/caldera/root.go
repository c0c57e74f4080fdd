// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for caldera.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/caldera-launcher/caldera/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// loadedCfg is the configuration resolved during initialization; commands
	// read it instead of re-loading.
	loadedCfg *config.Config

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "caldera",
		Short: "Game launcher companion for managed runtimes",
		Long: TitleStyle.Render("caldera") + SubtitleStyle.Render(" - Game launcher companion for managed runtimes") + `

caldera keeps the Java runtimes a launcher needs: it resolves which
feature version a game build requires, downloads verified releases,
installs them atomically, and retires superseded copies.

Runtimes are managed per role: the 'game' role follows the game
version's requirement, while the 'tooling' role runs caldera's own
helper processes on a fixed version. The two never share installs.

` + SubtitleStyle.Render("Examples:") + `
  caldera runtime ensure --game-version 1.21.4   Install or reuse a runtime for a game build
  caldera runtime ensure --role tooling          Prepare the internal tooling runtime
  caldera runtime list                           Show every managed runtime
  caldera runtime prune                          Remove superseded runtimes
  caldera runtime doctor                         Probe and verify all installs`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/caldera/config.toml)")

	// Add subcommands
	rootCmd.AddCommand(runtimeCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig reads in config file and ENV variables if set.
func initRootConfig() {
	cfg, err := config.NewProvider().Load(context.Background(), config.LoadOptions{
		ConfigFilePath: cfgFile,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
		cfg = config.DefaultConfig()
	}
	loadedCfg = cfg

	level := log.InfoLevel
	if parsed, err := log.ParseLevel(cfg.LogLevel); err == nil {
		level = parsed
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetReportTimestamp(false)
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}
