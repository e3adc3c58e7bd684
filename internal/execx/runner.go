// SPDX-License-Identifier: MPL-2.0

// Package execx provides a stub-friendly interface for running external
// commands. Provisioning steps depend on the Runner interface rather than
// os/exec directly so tests can substitute a fake and record invocations.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

type (
	// Options holds optional parameters for a command invocation.
	Options struct {
		// Dir is the working directory. Empty means the process's current directory.
		Dir string

		// Env are extra KEY=VALUE pairs appended to the inherited environment.
		Env []string

		// Stdout and Stderr override the default output writers (os.Stdout /
		// os.Stderr). Capturing runs set these to buffers.
		Stdout io.Writer
		Stderr io.Writer
	}

	// Result contains the outcome of a command invocation.
	Result struct {
		// ExitCode is the process exit status. Zero means success. When Err is
		// set because the process could not be started, ExitCode is -1.
		ExitCode int

		// Stdout holds captured standard output. Only populated by RunCapture.
		Stdout string

		// Err is set when the command could not be executed at all (binary not
		// found, context canceled). A non-zero exit from a started process is
		// reported through ExitCode with Err nil.
		Err error
	}

	// Runner executes external commands.
	Runner interface {
		// Run executes a command, streaming its output to the configured
		// writers, and reports the exit status.
		Run(ctx context.Context, opts Options, name string, args ...string) Result
	}

	// SystemRunner is the production Runner backed by os/exec.
	SystemRunner struct{}
)

// Compile-time interface check
var _ Runner = (*SystemRunner)(nil)

// NewSystemRunner creates a Runner that executes commands on the host.
func NewSystemRunner() *SystemRunner {
	return &SystemRunner{}
}

// Run executes the command, wiring stdout/stderr straight through so the
// invoked tool's own diagnostics stay visible to the operator.
func (r *SystemRunner) Run(ctx context.Context, opts Options, name string, args ...string) Result {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir

	if len(opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), opts.Env...)
	}

	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return Result{ExitCode: exitErr.ExitCode()}
		}
		return Result{ExitCode: -1, Err: fmt.Errorf("failed to execute %s: %w", name, err)}
	}

	return Result{ExitCode: 0}
}

// RunCapture executes a command through the given Runner with stdout captured
// into the Result. Stderr still streams through (or into opts.Stderr).
func RunCapture(ctx context.Context, r Runner, opts Options, name string, args ...string) Result {
	var stdout bytes.Buffer
	opts.Stdout = &stdout
	res := r.Run(ctx, opts, name, args...)
	res.Stdout = stdout.String()
	return res
}

// ExitStatusError reports a non-zero exit from an external tool. The code is
// preserved so the CLI can propagate the failing tool's own exit status.
type ExitStatusError struct {
	// Tool is the command name, for diagnostics.
	Tool string

	// Code is the tool's exit status.
	Code int
}

// Error implements the error interface.
func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Tool, e.Code)
}

// ExitFailure reports whether the result represents any kind of failure,
// either a non-zero exit or a failure to start the process.
func (res Result) ExitFailure() bool {
	return res.Err != nil || res.ExitCode != 0
}

// AsError converts a failed Result into an error describing the command.
// Returns nil for successful results; non-zero exits produce an
// *ExitStatusError carrying the tool's code.
func (res Result) AsError(name string) error {
	if res.Err != nil {
		return res.Err
	}
	if res.ExitCode != 0 {
		return &ExitStatusError{Tool: name, Code: res.ExitCode}
	}
	return nil
}
