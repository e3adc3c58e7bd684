// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for groundwork.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"groundwork-cli/internal/config"
	"groundwork-cli/internal/execx"
	"groundwork-cli/internal/issue"
	"groundwork-cli/internal/provision"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
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
	// workspaceDir is the directory to provision
	workspaceDir string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "groundwork",
		Short: "Bootstrap a Django REST backend",
		Long: TitleStyle.Render("groundwork") + SubtitleStyle.Render(" - Bootstrap a Django REST backend") + `

groundwork provisions a ready-to-develop Django REST backend in eight
ordered steps: git repository, Poetry project, PostgreSQL settings,
REST framework registration, initial migrations, workspace config files,
pre-commit hooks, and the initial commit.

Every step probes for its completion marker before acting, so a failed
run can simply be rerun: finished steps are skipped and provisioning
resumes where it stopped.

` + SubtitleStyle.Render("Examples:") + `
  groundwork                    Provision the current directory
  groundwork --dir ./backend    Provision ./backend
  groundwork task               List maintenance tasks
  groundwork task lint          Run the lint task
  groundwork config show        Show the effective configuration`,
		SilenceUsage: true,
		RunE:         runProvision,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <dir>/groundwork.cue)")
	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "dir", "d", ".", "directory to provision")

	// Add subcommands
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(configCmd)
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
	// fang provides styled help, errors, and version output on top of cobra.
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

// loadConfig resolves and validates the effective configuration for the
// current flag set.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFilePath: cfgFile,
		WorkspaceDir:   workspaceDir,
	})
	if err != nil {
		return nil, err
	}
	if cfg.UI.Verbose {
		verbose = true
	}
	return cfg, nil
}

// newLogger builds the CLI logger, honoring the verbose flag.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// runProvision executes the full pipeline against the workspace directory.
func runProvision(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return displayError(err)
	}

	workspace, err := filepath.Abs(workspaceDir)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace directory: %w", err)
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	prov := provision.NewProvisioner(cfg, workspace, execx.NewSystemRunner())
	pipeline := provision.NewPipeline(prov.Steps(),
		provision.WithLogger(newLogger()),
		provision.WithEventFunc(renderStepEvent),
	)

	if err := pipeline.Run(cmd.Context()); err != nil {
		return displayError(err)
	}

	fmt.Println(SuccessStyle.Render("✓") + " workspace provisioned: " + workspace)
	return nil
}

// renderStepEvent prints one progress line per pipeline event.
func renderStepEvent(e provision.Event) {
	switch e.Kind {
	case provision.EventStarted:
		fmt.Println(CmdStyle.Render("▸") + " " + e.Step)
	case provision.EventSkipped:
		fmt.Println(SubtitleStyle.Render("∙ " + e.Step + " (" + e.Notice + ")"))
	case provision.EventCompleted:
		fmt.Println(SuccessStyle.Render("✓") + " " + e.Step)
	}
}

// displayError prints the formatted error and converts it for exit-code
// propagation: a failing external tool's status becomes the process status.
func displayError(err error) error {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))

	var statusErr *execx.ExitStatusError
	if errors.As(err, &statusErr) {
		return &ExitError{Code: statusErr.Code}
	}
	return &ExitError{Code: 1}
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// render their suggestions; verbose mode shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
