// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "caldera"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
)

// Config is the resolved application configuration.
type Config struct {
	// DataDir is where caldera keeps runtimes and other managed state.
	// Empty means the platform data directory.
	DataDir string `mapstructure:"data_dir"`
	// APIBaseURL points at the runtime release API.
	APIBaseURL string `mapstructure:"api_base_url"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	Runtime RuntimeConfig `mapstructure:"runtime"`
}

// RuntimeConfig holds the runtime manager's tunables.
type RuntimeConfig struct {
	// KeepPerMajor is how many installs of each major version survive a
	// prune.
	KeepPerMajor int `mapstructure:"keep_per_major"`
	// LockTTL is the age past which an install lock from a dead or hung
	// process is reclaimed.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	// ProbeTimeout bounds each candidate-executable probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// MaxDownloadAttempts bounds download retries per install.
	MaxDownloadAttempts int `mapstructure:"max_download_attempts"`
	// MinFreeMB is the free-space floor checked before downloads.
	MinFreeMB int `mapstructure:"min_free_mb"`
	// RequirementTable optionally points at a TOML file extending the
	// built-in game-version to runtime-major mapping.
	RequirementTable string `mapstructure:"requirement_table"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "https://api.adoptium.net",
		LogLevel:   "info",
		Runtime: RuntimeConfig{
			KeepPerMajor:        2,
			LockTTL:             10 * time.Minute,
			ProbeTimeout:        15 * time.Second,
			MaxDownloadAttempts: 3,
			MinFreeMB:           512,
		},
	}
}

// ConfigDir returns the caldera configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	dir, err := platformBaseDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// DataDir returns the caldera data directory: %APPDATA% on Windows,
// ~/Library/Application Support on macOS, $XDG_DATA_HOME (defaulting to
// ~/.local/share) on Linux and others.
func DataDir() (string, error) {
	dir, err := platformBaseDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

func platformBaseDir(xdgVar, xdgFallback string) (string, error) {
	switch runtime.GOOS {
	case "windows":
		dir := os.Getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return dir, nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	default: // Linux and others
		if dir := os.Getenv(xdgVar); dir != "" {
			return dir, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, xdgFallback), nil
	}
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. Callers that want caching can wrap this function.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("api_base_url", defaults.APIBaseURL)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("runtime.keep_per_major", defaults.Runtime.KeepPerMajor)
	v.SetDefault("runtime.lock_ttl", defaults.Runtime.LockTTL)
	v.SetDefault("runtime.probe_timeout", defaults.Runtime.ProbeTimeout)
	v.SetDefault("runtime.max_download_attempts", defaults.Runtime.MaxDownloadAttempts)
	v.SetDefault("runtime.min_free_mb", defaults.Runtime.MinFreeMB)
	v.SetDefault("runtime.requirement_table", defaults.Runtime.RequirementTable)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// If a custom config file path is set, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("reading config file %s: %w", opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		tomlPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(tomlPath) {
			v.SetConfigFile(tomlPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, "", fmt.Errorf("reading config file %s: %w", tomlPath, err)
			}
			resolvedPath = tomlPath
		}
		// If no config file found, use defaults (no error)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DataDir == "" {
		dataDir, err := DataDir()
		if err != nil {
			return nil, "", err
		}
		cfg.DataDir = dataDir
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}

	return &cfg, resolvedPath, nil
}

func (c *Config) validate() error {
	switch {
	case c.Runtime.KeepPerMajor < 1:
		return fmt.Errorf("runtime.keep_per_major must be at least 1, got %d", c.Runtime.KeepPerMajor)
	case c.Runtime.LockTTL <= 0:
		return fmt.Errorf("runtime.lock_ttl must be positive, got %s", c.Runtime.LockTTL)
	case c.Runtime.ProbeTimeout <= 0:
		return fmt.Errorf("runtime.probe_timeout must be positive, got %s", c.Runtime.ProbeTimeout)
	case c.Runtime.MaxDownloadAttempts < 1:
		return fmt.Errorf("runtime.max_download_attempts must be at least 1, got %d", c.Runtime.MaxDownloadAttempts)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

func configDirWithOverride(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return ConfigDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
