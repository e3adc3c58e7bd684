// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"groundwork-cli/internal/execx"
	"groundwork-cli/internal/task"

	"github.com/spf13/cobra"
)

// taskCmd runs the named maintenance tasks that live beside the pipeline.
var taskCmd = &cobra.Command{
	Use:   "task [name]",
	Short: "Run a maintenance task",
	Long: `Run a named maintenance task inside the workspace.

Without a name, the available tasks are listed. Task scripts execute
through an embedded POSIX shell interpreter, so they behave the same on
every host. A workspace tasks.toml overlays the built-in table.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeTaskNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, err := filepath.Abs(workspaceDir)
		if err != nil {
			return fmt.Errorf("failed to resolve workspace directory: %w", err)
		}

		runner, err := task.NewRunner(workspace, execx.NewSystemRunner())
		if err != nil {
			return displayError(err)
		}

		if len(args) == 0 {
			listTasks(runner)
			return nil
		}

		if err := runner.Run(cmd.Context(), args[0]); err != nil {
			return displayError(err)
		}
		return nil
	},
}

// listTasks prints the task table, one aligned line per task.
func listTasks(runner *task.Runner) {
	tasks := runner.List()

	width := 0
	for _, t := range tasks {
		if len(t.Name) > width {
			width = len(t.Name)
		}
	}

	fmt.Println(TitleStyle.Render("Available tasks"))
	for _, t := range tasks {
		fmt.Printf("  %s  %s\n",
			CmdStyle.Render(fmt.Sprintf("%-*s", width, t.Name)),
			SubtitleStyle.Render(t.Description))
	}
}

// completeTaskNames provides shell completion for task names.
func completeTaskNames(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	workspace, err := filepath.Abs(workspaceDir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	runner, err := task.NewRunner(workspace, execx.NewSystemRunner())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var names []string
	for _, t := range runner.List() {
		names = append(names, t.Name+"\t"+t.Description)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
