// SPDX-License-Identifier: MPL-2.0

// Package patch edits generated configuration artifacts in place.
//
// Edits are declarative values (a regex replacement, an anchor-relative
// insertion) applied to a file's content as a unit. A file is rewritten only
// when an edit actually changes its content, so applying the same edits twice
// leaves the file byte-identical, including its checksum.
package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

type (
	// Edit transforms file content. Implementations must be pure: same input,
	// same output.
	Edit interface {
		Apply(content string) (string, error)
	}

	// Replacement substitutes every match of Pattern with With.
	Replacement struct {
		// Pattern is an RE2 regular expression matched against the whole content.
		Pattern string

		// With is the replacement text. Capture group references ($1, ...) are
		// expanded per regexp.ReplaceAllString.
		With string
	}

	// Insertion inserts Lines immediately after the first line that contains
	// Anchor. The anchor line itself is preserved verbatim.
	Insertion struct {
		// Anchor is the substring identifying the insertion point line.
		Anchor string

		// Lines are inserted, in order, directly below the anchor line.
		Lines []string
	}
)

// Apply implements Edit.
func (r Replacement) Apply(content string) (string, error) {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid replacement pattern %q: %w", r.Pattern, err)
	}
	return re.ReplaceAllString(content, r.With), nil
}

// Apply implements Edit.
func (i Insertion) Apply(content string) (string, error) {
	lines := strings.Split(content, "\n")
	for idx, line := range lines {
		if !strings.Contains(line, i.Anchor) {
			continue
		}
		out := make([]string, 0, len(lines)+len(i.Lines))
		out = append(out, lines[:idx+1]...)
		out = append(out, i.Lines...)
		out = append(out, lines[idx+1:]...)
		return strings.Join(out, "\n"), nil
	}
	return "", fmt.Errorf("anchor %q not found", i.Anchor)
}

// Contains reports whether the file at path contains the given substring.
// Step preconditions use this as their detection probe.
func Contains(path, needle string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return strings.Contains(string(data), needle), nil
}

// ApplyFile applies edits to the file at path in order and reports whether
// the file was rewritten. When no edit changes the content, the file is left
// untouched (no write, same mtime, same checksum).
func ApplyFile(path string, edits ...Edit) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	content := string(data)
	patched := content
	for _, edit := range edits {
		patched, err = edit.Apply(patched)
		if err != nil {
			return false, fmt.Errorf("failed to patch %s: %w", path, err)
		}
	}

	if patched == content {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := writeAtomic(path, []byte(patched), info.Mode()); err != nil {
		return false, err
	}
	return true, nil
}

// writeAtomic writes data to a temp file in the target directory and renames
// it over path, so a crash mid-write never leaves a half-patched artifact.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
