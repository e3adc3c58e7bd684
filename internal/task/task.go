// SPDX-License-Identifier: MPL-2.0

// Package task runs the named maintenance tasks that sit beside the
// provisioning pipeline. Tasks are declared in an embedded TOML table and run
// their scripts through the embedded shell interpreter; a workspace-local
// tasks.toml overlays entries by name. Tasks carry no state and no
// idempotence guarantees: a task does what it says, every time.
package task

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"groundwork-cli/internal/execx"
	"groundwork-cli/internal/issue"
	"groundwork-cli/internal/shellrun"
	"groundwork-cli/internal/watch"
	"groundwork-cli/pkg/platform"
)

//go:embed tasks.toml
var builtinTable []byte

// OverlayFile is the workspace-local task table, overlaying built-in entries.
const OverlayFile = "tasks.toml"

// Native handler names referenced by the task table.
const (
	nativeOpenDocs    = "open-docs"
	nativeInstallDeps = "install-deps"
	nativeWatch       = "watch"
)

// docsIndex is the entry point produced by the docs-generate task.
var docsIndex = filepath.Join("docs", "index.html")

type (
	// Task is one entry of the task table. A task either lists scripts or
	// names a native handler, never both.
	Task struct {
		Name        string   `toml:"-"`
		Description string   `toml:"description"`
		Scripts     []string `toml:"scripts"`
		Native      string   `toml:"native"`
	}

	table struct {
		Tasks map[string]Task `toml:"tasks"`
	}

	// Runner dispatches named tasks inside one workspace.
	Runner struct {
		workspace string
		exec      execx.Runner
		stdout    io.Writer
		stderr    io.Writer
		tasks     map[string]Task
	}

	// RunnerOption configures a Runner.
	RunnerOption func(*Runner)
)

// WithStdout overrides the writer task output streams to.
func WithStdout(w io.Writer) RunnerOption {
	return func(r *Runner) { r.stdout = w }
}

// WithStderr overrides the writer task diagnostics stream to.
func WithStderr(w io.Writer) RunnerOption {
	return func(r *Runner) { r.stderr = w }
}

// NewRunner loads the built-in task table, overlays the workspace table when
// present, and returns a Runner bound to the workspace.
func NewRunner(workspace string, exec execx.Runner, opts ...RunnerOption) (*Runner, error) {
	tasks, err := loadTable(builtinTable, "built-in task table")
	if err != nil {
		return nil, err
	}

	overlayPath := filepath.Join(workspace, OverlayFile)
	if data, readErr := os.ReadFile(overlayPath); readErr == nil {
		overlay, parseErr := loadTable(data, overlayPath)
		if parseErr != nil {
			return nil, parseErr
		}
		for name, t := range overlay {
			tasks[name] = t
		}
	} else if !os.IsNotExist(readErr) {
		return nil, issue.NewErrorContext().
			WithOperation("read task table").
			WithResource(overlayPath).
			Wrap(readErr).
			BuildError()
	}

	r := &Runner{
		workspace: workspace,
		exec:      exec,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		tasks:     tasks,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func loadTable(data []byte, source string) (map[string]Task, error) {
	var tbl table
	if err := toml.Unmarshal(data, &tbl); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse task table").
			WithResource(source).
			WithSuggestion("Check the file contains valid TOML").
			Wrap(err).
			BuildError()
	}
	tasks := make(map[string]Task, len(tbl.Tasks))
	for name, t := range tbl.Tasks {
		t.Name = name
		if len(t.Scripts) > 0 && t.Native != "" {
			return nil, fmt.Errorf("task %s in %s declares both scripts and a native handler", name, source)
		}
		tasks[name] = t
	}
	return tasks, nil
}

// List returns all tasks sorted by name.
func (r *Runner) List() []Task {
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the named task.
func (r *Runner) Get(name string) (Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Run executes the named task. Script exit codes pass through untouched as
// an *execx.ExitStatusError; an unknown name produces an actionable error
// listing the available tasks.
func (r *Runner) Run(ctx context.Context, name string) error {
	t, ok := r.tasks[name]
	if !ok {
		names := make([]string, 0, len(r.tasks))
		for n := range r.tasks {
			names = append(names, n)
		}
		sort.Strings(names)
		return issue.NewErrorContext().
			WithOperation("run task").
			WithResource(name).
			WithSuggestion("Available tasks: " + strings.Join(names, ", ")).
			BuildError()
	}

	if t.Native != "" {
		return r.runNative(ctx, t)
	}
	return r.runScripts(ctx, t)
}

// runScripts executes the task's scripts in order, stopping at the first
// non-zero exit.
func (r *Runner) runScripts(ctx context.Context, t Task) error {
	for _, script := range t.Scripts {
		code, err := shellrun.Run(ctx, script, shellrun.Options{
			Dir:    r.workspace,
			Stdout: r.stdout,
			Stderr: r.stderr,
		})
		if err != nil {
			return issue.NewErrorContext().
				WithOperation("run task").
				WithResource(t.Name).
				Wrap(err).
				BuildError()
		}
		if code != 0 {
			return &execx.ExitStatusError{Tool: t.Name, Code: code}
		}
	}
	return nil
}

func (r *Runner) runNative(ctx context.Context, t Task) error {
	switch t.Native {
	case nativeOpenDocs:
		return r.openDocs(ctx, t)
	case nativeInstallDeps:
		return r.installDeps(ctx, t)
	case nativeWatch:
		return r.watchAndRetest(ctx)
	default:
		return fmt.Errorf("task %s names unknown native handler %q", t.Name, t.Native)
	}
}

// openDocs launches the OS default application on the generated docs index.
// On a platform without a known opener the index path is rendered as a hint
// instead.
func (r *Runner) openDocs(ctx context.Context, t Task) error {
	index := filepath.Join(r.workspace, docsIndex)
	if _, err := os.Stat(index); err != nil {
		return issue.NewErrorContext().
			WithOperation("open documentation").
			WithResource(index).
			WithSuggestion("Run `groundwork task docs-generate` first").
			Wrap(err).
			BuildError()
	}

	opener, ok := platform.OpenerCommand(platform.Current())
	if !ok {
		rendered, err := issue.RenderMarkdown(
			fmt.Sprintf("No opener is available on this platform. The documentation index is at `%s`.", index))
		if err != nil {
			fmt.Fprintf(r.stdout, "documentation index: %s\n", index)
			return nil
		}
		fmt.Fprint(r.stdout, rendered)
		return nil
	}

	args := append(opener[1:], index)
	res := r.exec.Run(ctx, execx.Options{Dir: r.workspace, Stdout: r.stdout, Stderr: r.stderr}, opener[0], args...)
	return res.AsError(opener[0])
}

// installScripts maps each supported OS to its toolchain install script.
var installScripts = map[string]string{
	platform.Linux:   "sudo apt-get update && sudo apt-get install -y python3 python3-pip pipx && pipx install poetry",
	platform.Darwin:  "brew install python3 poetry",
	platform.Windows: "choco install -y python poetry",
}

func (r *Runner) installDeps(ctx context.Context, t Task) error {
	script, ok := installScripts[platform.Current()]
	if !ok {
		return issue.NewErrorContext().
			WithOperation("install toolchain").
			WithResource(platform.Current()).
			WithSuggestion("Install python3 and poetry manually for this platform").
			BuildError()
	}
	return r.runScripts(ctx, Task{Name: t.Name, Scripts: []string{script}})
}

// watchAndRetest blocks, re-running the test task on every debounced change
// to a source file. Failing test runs are reported and watching continues.
func (r *Runner) watchAndRetest(ctx context.Context) error {
	w, err := watch.New(watch.Config{
		BaseDir:  r.workspace,
		Patterns: []string{"**/*.py"},
		Stderr:   r.stderr,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(r.stdout, "changed: %s\n", strings.Join(changed, ", "))
			return r.Run(ctx, "test")
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(r.stdout, "watching **/*.py, press Ctrl+C to stop")
	return w.Run(ctx)
}
