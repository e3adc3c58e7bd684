// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"strings"
	"sync"

	"groundwork-cli/internal/execx"
)

type (
	// FakeCall records one invocation observed by a FakeRunner.
	FakeCall struct {
		Name string
		Args []string
		Dir  string
	}

	// FakeRunner is an execx.Runner for tests. It records every invocation
	// and delegates behavior to OnRun; without a handler every command
	// succeeds with exit code 0.
	FakeRunner struct {
		mu    sync.Mutex
		calls []FakeCall

		// OnRun, when set, produces the result (and may simulate the tool's
		// on-disk side effects).
		OnRun func(call FakeCall) execx.Result
	}
)

// Compile-time interface check
var _ execx.Runner = (*FakeRunner)(nil)

// Run implements execx.Runner.
func (f *FakeRunner) Run(_ context.Context, opts execx.Options, name string, args ...string) execx.Result {
	call := FakeCall{Name: name, Args: args, Dir: opts.Dir}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.OnRun != nil {
		return f.OnRun(call)
	}
	return execx.Result{ExitCode: 0}
}

// Calls returns the recorded invocations in order.
func (f *FakeRunner) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CommandLine renders the call as a single space-joined string, convenient
// for substring assertions.
func (c FakeCall) CommandLine() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}
