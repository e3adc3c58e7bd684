// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProjectName is returned when a project or app name cannot be
	// used as a Python package name.
	ErrInvalidProjectName = errors.New("invalid project name")

	// ErrInvalidDatabasePort is returned when the database port is not numeric.
	ErrInvalidDatabasePort = errors.New("invalid database port")
)

type (
	// Config holds the scaffold settings for one provisioning run. The zero
	// value is not usable; start from DefaultConfig and overlay a config file.
	Config struct {
		Project       ProjectConfig  `mapstructure:"project"`
		Database      DatabaseConfig `mapstructure:"database"`
		CommitMessage string         `mapstructure:"commit_message"`
		UI            UIConfig       `mapstructure:"ui"`
	}

	// ProjectConfig identifies the generated Django project and its pinned
	// dependency set.
	ProjectConfig struct {
		// Name is the project package name; the settings artifact lives at
		// <Name>/settings.py.
		Name string `mapstructure:"name"`

		// App is the generated sub-application package name.
		App string `mapstructure:"app"`

		// Python is the runtime version constraint for the manifest.
		Python string `mapstructure:"python"`

		Dependencies DependencyConfig `mapstructure:"dependencies"`
	}

	// DependencyConfig pins the three fixed dependencies declared at
	// manifest initialization.
	DependencyConfig struct {
		Django         string `mapstructure:"django"`
		RESTFramework  string `mapstructure:"djangorestframework"`
		PostgresDriver string `mapstructure:"psycopg2_binary"`
	}

	// DatabaseConfig holds the PostgreSQL connection parameters written into
	// the settings artifact and the environment file.
	DatabaseConfig struct {
		Name     string `mapstructure:"name"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
	}

	// UIConfig holds presentation settings.
	UIConfig struct {
		Verbose bool `mapstructure:"verbose"`
	}
)

// DefaultConfig returns the built-in scaffold settings. These are the fixed
// constants a bare invocation runs with; a config file may override any of
// them.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Name:   "backend",
			App:    "api",
			Python: "^3.10",
			Dependencies: DependencyConfig{
				Django:         "^4.2",
				RESTFramework:  "^3.14",
				PostgresDriver: "^2.9",
			},
		},
		Database: DatabaseConfig{
			Name:     "backend",
			User:     "postgres",
			Password: "postgres",
			Host:     "localhost",
			Port:     "5432",
		},
		CommitMessage: "Initial project scaffold",
	}
}

// Validate checks constraints the CUE schema cannot fully express against
// merged defaults (package-name shape, numeric port).
func (c *Config) Validate() error {
	for _, name := range []string{c.Project.Name, c.Project.App} {
		if !isPackageName(name) {
			return fmt.Errorf("%w: %q is not a valid Python package name", ErrInvalidProjectName, name)
		}
	}
	if strings.TrimSpace(c.Database.Port) == "" || !isDigits(c.Database.Port) {
		return fmt.Errorf("%w: %q", ErrInvalidDatabasePort, c.Database.Port)
	}
	return nil
}

func isPackageName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_' && i > 0:
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
