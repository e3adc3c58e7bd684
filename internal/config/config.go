// SPDX-License-Identifier: MPL-2.0

// Package config loads scaffold settings with Viper, overlaying an optional
// CUE config file (validated against an embedded schema) on built-in defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"groundwork-cli/internal/issue"
	"groundwork-cli/pkg/platform"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "groundwork"

	// FileName is the config file groundwork looks for in the workspace.
	FileName = "groundwork.cue"
)

//go:embed config_schema.cue
var configSchema string

// LoadOptions controls config resolution.
type LoadOptions struct {
	// ConfigFilePath is an explicit config file (--config flag). When set it
	// is used exclusively and must exist.
	ConfigFilePath string

	// WorkspaceDir is the target workspace; a groundwork.cue there takes
	// precedence over the user-level config. Empty means the current directory.
	WorkspaceDir string
}

// ConfigDir returns the groundwork configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Load resolves the effective configuration: built-in defaults, overlaid by
// the first config file found (explicit flag path, workspace groundwork.cue,
// then the user config directory).
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path, err := resolveConfigFile(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the values match the expected schema").
				WithSuggestion("Run 'groundwork config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("project.name", defaults.Project.Name)
	v.SetDefault("project.app", defaults.Project.App)
	v.SetDefault("project.python", defaults.Project.Python)
	v.SetDefault("project.dependencies.django", defaults.Project.Dependencies.Django)
	v.SetDefault("project.dependencies.djangorestframework", defaults.Project.Dependencies.RESTFramework)
	v.SetDefault("project.dependencies.psycopg2_binary", defaults.Project.Dependencies.PostgresDriver)
	v.SetDefault("database.name", defaults.Database.Name)
	v.SetDefault("database.user", defaults.Database.User)
	v.SetDefault("database.password", defaults.Database.Password)
	v.SetDefault("database.host", defaults.Database.Host)
	v.SetDefault("database.port", defaults.Database.Port)
	v.SetDefault("commit_message", defaults.CommitMessage)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	workspace := opts.WorkspaceDir
	if workspace == "" {
		workspace = "."
	}
	local := filepath.Join(workspace, FileName)
	if fileExists(local) {
		return local, nil
	}

	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	user := filepath.Join(cfgDir, "config.cue")
	if fileExists(user) {
		return user, nil
	}

	// No config file: defaults only.
	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
