// SPDX-License-Identifier: MPL-2.0

// Package shellrun executes task scripts through an embedded POSIX shell
// interpreter (mvdan/sh), so named tasks behave the same on hosts without a
// usable system shell.
package shellrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Options configures a script invocation.
type Options struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env are extra KEY=VALUE pairs layered over the inherited environment.
	Env []string

	// Stdin, Stdout, Stderr override the process streams. nil values default
	// to os.Stdin / os.Stdout / os.Stderr.
	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

// Validate parses the script without executing it, surfacing syntax errors.
func Validate(script string) error {
	_, err := syntax.NewParser().Parse(strings.NewReader(script), "script")
	if err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

// Run executes the script and returns its exit code. A non-zero exit from the
// script is reported through the code with a nil error; the error is reserved
// for parse and interpreter failures.
func Run(ctx context.Context, script string, opts Options) (int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "script")
	if err != nil {
		return 1, fmt.Errorf("failed to parse script: %w", err)
	}

	env := append(os.Environ(), opts.Env...)

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Dir(opts.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(stdin, stdout, stderr),
	)
	if err != nil {
		return 1, fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return int(exitStatus), nil
		}
		return 1, fmt.Errorf("script execution failed: %w", err)
	}
	return 0, nil
}
