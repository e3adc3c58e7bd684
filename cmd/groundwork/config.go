// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"groundwork-cli/internal/config"

	"github.com/spf13/cobra"
)

// configCmd is the `groundwork config` command tree.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage groundwork configuration",
	Long: `Manage groundwork configuration.

Configuration is stored in:
  - Linux: ~/.config/groundwork/config.cue
  - macOS: ~/Library/Application Support/groundwork/config.cue
  - Windows: %APPDATA%\groundwork\config.cue

A ` + config.FileName + ` in the workspace takes precedence, and the
--config flag overrides both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return displayError(err)
			}
			showConfig(cfg)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the user configuration file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return displayError(err)
			}
			fmt.Println(filepath.Join(dir, "config.cue"))
			return nil
		},
	})
}

// showConfig prints the effective configuration grouped by section.
func showConfig(cfg *config.Config) {
	section := func(name string) { fmt.Println(TitleStyle.Render(name)) }
	entry := func(key, value string) {
		fmt.Printf("  %s %s\n", SubtitleStyle.Render(key+":"), value)
	}

	section("project")
	entry("name", cfg.Project.Name)
	entry("app", cfg.Project.App)
	entry("python", cfg.Project.Python)
	entry("django", cfg.Project.Dependencies.Django)
	entry("djangorestframework", cfg.Project.Dependencies.RESTFramework)
	entry("psycopg2-binary", cfg.Project.Dependencies.PostgresDriver)

	section("database")
	entry("name", cfg.Database.Name)
	entry("user", cfg.Database.User)
	entry("host", cfg.Database.Host)
	entry("port", cfg.Database.Port)

	section("commit")
	entry("message", cfg.CommitMessage)
}
