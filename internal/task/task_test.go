// SPDX-License-Identifier: MPL-2.0

package task

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"groundwork-cli/internal/execx"
	"groundwork-cli/internal/issue"
	"groundwork-cli/internal/testutil"
	"groundwork-cli/pkg/platform"
)

func newTestRunner(t *testing.T, workspace string, opts ...RunnerOption) (*Runner, *testutil.FakeRunner) {
	t.Helper()
	fake := &testutil.FakeRunner{}
	r, err := NewRunner(workspace, fake, opts...)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r, fake
}

func writeOverlay(t *testing.T, workspace, content string) {
	t.Helper()
	testutil.MustWriteFile(t, filepath.Join(workspace, OverlayFile), []byte(content), 0o644)
}

func TestBuiltinTableLoads(t *testing.T) {
	r, _ := newTestRunner(t, t.TempDir())

	want := []string{
		"deps-install", "deps-validate", "docs-generate", "docs-open",
		"format", "lint", "self-update", "test", "watch",
	}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("got %d tasks, want %d", len(got), len(want))
	}
	for i, task := range got {
		if task.Name != want[i] {
			t.Errorf("task %d = %q, want %q", i, task.Name, want[i])
		}
		if task.Description == "" {
			t.Errorf("task %s has no description", task.Name)
		}
		if len(task.Scripts) == 0 && task.Native == "" {
			t.Errorf("task %s has neither scripts nor a native handler", task.Name)
		}
	}
}

func TestRunUnknownTaskListsAvailable(t *testing.T) {
	r, _ := newTestRunner(t, t.TempDir())

	err := r.Run(context.Background(), "deploy")
	if err == nil {
		t.Fatal("expected an error for an unknown task")
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error %T is not actionable", err)
	}
	if len(ae.Suggestions) == 0 || !strings.Contains(ae.Suggestions[0], "lint") {
		t.Errorf("suggestions do not list available tasks: %v", ae.Suggestions)
	}
}

func TestScriptTaskRunsThroughInterpreter(t *testing.T) {
	workspace := t.TempDir()
	writeOverlay(t, workspace, `
[tasks.hello]
description = "Say hello"
scripts = ["echo hello from task"]
`)

	var stdout bytes.Buffer
	r, _ := newTestRunner(t, workspace, WithStdout(&stdout))

	if err := r.Run(context.Background(), "hello"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "hello from task") {
		t.Errorf("script output missing: %q", stdout.String())
	}
}

func TestExitCodePassesThroughUntouched(t *testing.T) {
	workspace := t.TempDir()
	writeOverlay(t, workspace, `
[tasks.boom]
description = "Fail with a specific code"
scripts = ["exit 3"]
`)

	r, _ := newTestRunner(t, workspace)
	err := r.Run(context.Background(), "boom")

	var exitErr *execx.ExitStatusError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %T does not carry an exit status", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}
}

func TestScriptsStopAtFirstFailure(t *testing.T) {
	workspace := t.TempDir()
	writeOverlay(t, workspace, `
[tasks.partial]
description = "Fail in the middle"
scripts = ["echo before", "exit 2", "echo after"]
`)

	var stdout bytes.Buffer
	r, _ := newTestRunner(t, workspace, WithStdout(&stdout))

	err := r.Run(context.Background(), "partial")
	var exitErr *execx.ExitStatusError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("expected exit status 2, got %v", err)
	}
	if !strings.Contains(stdout.String(), "before") {
		t.Error("script before the failure did not run")
	}
	if strings.Contains(stdout.String(), "after") {
		t.Error("script after the failure ran anyway")
	}
}

func TestOverlayOverridesBuiltinTask(t *testing.T) {
	workspace := t.TempDir()
	writeOverlay(t, workspace, `
[tasks.lint]
description = "Project-specific lint"
scripts = ["echo custom lint"]
`)

	var stdout bytes.Buffer
	r, _ := newTestRunner(t, workspace, WithStdout(&stdout))

	lint, ok := r.Get("lint")
	if !ok {
		t.Fatal("lint task missing")
	}
	if lint.Description != "Project-specific lint" {
		t.Errorf("overlay did not replace the built-in entry: %q", lint.Description)
	}
	if err := r.Run(context.Background(), "lint"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "custom lint") {
		t.Error("overlay scripts did not run")
	}
}

func TestTaskWithScriptsAndNativeHandlerRejected(t *testing.T) {
	workspace := t.TempDir()
	writeOverlay(t, workspace, `
[tasks.bad]
description = "Ambiguous"
scripts = ["echo x"]
native = "open-docs"
`)

	if _, err := NewRunner(workspace, &testutil.FakeRunner{}); err == nil {
		t.Fatal("expected an error for a task with both scripts and a native handler")
	}
}

func TestOpenDocsRequiresGeneratedDocs(t *testing.T) {
	r, _ := newTestRunner(t, t.TempDir())

	err := r.Run(context.Background(), "docs-open")
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error %T is not actionable", err)
	}
	if len(ae.Suggestions) == 0 || !strings.Contains(ae.Suggestions[0], "docs-generate") {
		t.Errorf("suggestions do not mention docs-generate: %v", ae.Suggestions)
	}
}

func TestOpenDocsInvokesPlatformOpener(t *testing.T) {
	opener, ok := platform.OpenerCommand(platform.Current())
	if !ok {
		t.Skipf("no opener on %s", platform.Current())
	}

	workspace := t.TempDir()
	index := filepath.Join(workspace, "docs", "index.html")
	testutil.MustWriteFile(t, index, []byte("<html></html>"), 0o644)

	r, fake := newTestRunner(t, workspace)
	if err := r.Run(context.Background(), "docs-open"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d opener invocations, want 1", len(calls))
	}
	if calls[0].Name != opener[0] {
		t.Errorf("opener = %q, want %q", calls[0].Name, opener[0])
	}
	if got := calls[0].Args[len(calls[0].Args)-1]; got != index {
		t.Errorf("opener target = %q, want %q", got, index)
	}
}

func TestInstallScriptsCoverSupportedPlatforms(t *testing.T) {
	for _, goos := range []string{platform.Linux, platform.Darwin, platform.Windows} {
		script, ok := installScripts[goos]
		if !ok || script == "" {
			t.Errorf("no install script for %s", goos)
		}
	}
	if _, ok := installScripts["plan9"]; ok {
		t.Error("unexpected install script for plan9")
	}
}

func TestBrokenOverlaySurfacesParseError(t *testing.T) {
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, OverlayFile), []byte("tasks = [not toml"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewRunner(workspace, &testutil.FakeRunner{})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error %T is not actionable", err)
	}
}
