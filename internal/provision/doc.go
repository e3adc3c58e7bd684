// SPDX-License-Identifier: MPL-2.0

// Package provision implements the staged workspace bootstrap pipeline.
//
// A Pipeline is a fixed, ordered sequence of Steps. Each Step carries two
// independently testable parts: a Done predicate that probes the workspace
// for the step's completion marker, and a Run action that performs the work.
// Running the pipeline executes each step strictly in order, skipping steps
// whose marker already exists and aborting on the first failure.
//
// The model is fail-fast, rerun-to-resume: no rollback and no retry. The
// operator fixes the underlying cause and reruns; completed steps skip via
// their markers and execution resumes at the step that failed.
//
// Steps communicate only through on-disk side effects. There is no shared
// runtime state, so the pipeline needs no synchronization.
package provision
