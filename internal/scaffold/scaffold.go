// SPDX-License-Identifier: MPL-2.0

// Package scaffold emits the static configuration artifacts of a provisioned
// workspace: the ignore list, linter and formatter configs, the placeholder
// environment file, and the pre-commit hook descriptor.
//
// Emission is deliberately overwrite-on-rerun: the config-emit step detects
// completion through the ignore file alone, and re-emitting replaces every
// sibling file wholesale rather than merging.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates
var templatesFS embed.FS

// Generated artifact names, relative to the workspace root.
const (
	IgnoreFile       = ".gitignore"
	LintConfigFile   = "setup.cfg"
	ImportSorterFile = ".isort.cfg"
	EnvFile          = ".env"
	HookConfigFile   = ".pre-commit-config.yaml"
	ManifestFile     = "pyproject.toml"
)

// blackSection marks the formatter block appended to the dependency manifest.
// Its presence guards against appending the block twice.
const blackSection = "[tool.black]"

// EnvValues fills the DATABASE_URL placeholder in the environment file.
type EnvValues struct {
	Name     string
	User     string
	Password string
	Host     string
	Port     string
}

// ConfigFiles lists the artifacts written by EmitConfigSet, in emission order.
func ConfigFiles() []string {
	return []string{IgnoreFile, LintConfigFile, ImportSorterFile, EnvFile}
}

// EmitConfigSet writes the ignore list, linter config, import-sorter config,
// and environment file into workspace, and appends the formatter block to the
// dependency manifest. Existing files are overwritten; the manifest block is
// appended at most once.
func EmitConfigSet(workspace string, env EnvValues) error {
	static := map[string]string{
		IgnoreFile:       "templates/gitignore",
		LintConfigFile:   "templates/setup.cfg",
		ImportSorterFile: "templates/isort.cfg",
	}
	for name, src := range static {
		if err := emitStatic(workspace, name, src); err != nil {
			return err
		}
	}

	if err := emitEnv(workspace, env); err != nil {
		return err
	}

	return appendFormatterConfig(workspace)
}

// EmitHookConfig writes the pre-commit hook descriptor into workspace.
func EmitHookConfig(workspace string) error {
	return emitStatic(workspace, HookConfigFile, "templates/pre-commit-config.yaml")
}

func emitStatic(workspace, name, src string) error {
	data, err := templatesFS.ReadFile(src)
	if err != nil {
		return fmt.Errorf("missing embedded template %s: %w", src, err)
	}
	path := filepath.Join(workspace, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func emitEnv(workspace string, env EnvValues) error {
	raw, err := templatesFS.ReadFile("templates/env.tmpl")
	if err != nil {
		return fmt.Errorf("missing embedded template env.tmpl: %w", err)
	}

	tmpl, err := template.New("env").Parse(string(raw))
	if err != nil {
		return fmt.Errorf("invalid env template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return fmt.Errorf("failed to render env file: %w", err)
	}

	path := filepath.Join(workspace, EnvFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// appendFormatterConfig appends the [tool.black] block to the dependency
// manifest, unless the manifest already carries one.
func appendFormatterConfig(workspace string) error {
	path := filepath.Join(workspace, ManifestFile)
	existing, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.Contains(string(existing), blackSection) {
		return nil
	}

	block, err := templatesFS.ReadFile("templates/black.toml")
	if err != nil {
		return fmt.Errorf("missing embedded template black.toml: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(block); err != nil {
		return fmt.Errorf("failed to append formatter config to %s: %w", path, err)
	}
	return nil
}
