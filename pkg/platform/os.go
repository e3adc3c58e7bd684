// SPDX-License-Identifier: MPL-2.0

// Package platform centralizes OS name handling for runtime.GOOS comparisons.
package platform

import "runtime"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// OpenerCommand returns the command and leading arguments used to open a file
// or URL with the default application on the given OS. The boolean is false
// when the OS has no known opener.
func OpenerCommand(goos string) ([]string, bool) {
	switch goos {
	case Linux:
		return []string{"xdg-open"}, true
	case Darwin:
		return []string{"open"}, true
	case Windows:
		return []string{"cmd", "/c", "start", ""}, true
	default:
		return nil, false
	}
}

// Current returns runtime.GOOS. It exists so callers can keep the platform
// package as the single import for OS dispatch.
func Current() string { return runtime.GOOS }
