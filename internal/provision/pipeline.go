// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

type (
	// Step is one named, idempotent unit of the pipeline.
	Step struct {
		// Name identifies the step in progress output and errors.
		Name string

		// Done probes the workspace for the step's completion marker. When it
		// reports true, the returned notice explains why the step is skipped.
		// Done must not mutate the workspace.
		Done func(ctx context.Context) (bool, string, error)

		// Run performs the step's action. It is only called when Done
		// reported false.
		Run func(ctx context.Context) error
	}

	// EventKind classifies pipeline progress events.
	EventKind int

	// Event describes one step's progress for display.
	Event struct {
		Step   string
		Kind   EventKind
		Notice string
	}

	// Pipeline executes steps strictly in order, failing fast.
	Pipeline struct {
		steps   []Step
		logger  *log.Logger
		onEvent func(Event)
	}

	// PipelineOption configures a Pipeline.
	PipelineOption func(*Pipeline)

	// StepError wraps a step failure with the step's name. The cause is
	// preserved untranslated, per the abort-and-rerun model.
	StepError struct {
		Step string
		Err  error
	}
)

// Progress event kinds, in lifecycle order.
const (
	EventStarted EventKind = iota
	EventSkipped
	EventCompleted
)

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error { return e.Err }

// WithLogger sets the logger used for verbose step diagnostics.
func WithLogger(logger *log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithEventFunc sets the callback invoked on every step lifecycle event.
// The CLI layer uses it to render progress lines.
func WithEventFunc(fn func(Event)) PipelineOption {
	return func(p *Pipeline) { p.onEvent = fn }
}

// NewPipeline creates a pipeline over the given steps.
func NewPipeline(steps []Step, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{steps: steps}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.New(io.Discard)
	}
	if p.onEvent == nil {
		p.onEvent = func(Event) {}
	}
	return p
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes the pipeline. Each step's Done predicate is evaluated first;
// satisfied steps are skipped with their notice, everything else runs to
// completion before the next step starts. The first failure aborts the whole
// run, wrapped in a StepError naming the step.
func (p *Pipeline) Run(ctx context.Context) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}

		done, notice, err := step.Done(ctx)
		if err != nil {
			return &StepError{Step: step.Name, Err: fmt.Errorf("precondition probe failed: %w", err)}
		}
		if done {
			p.logger.Debug("skipping step", "step", step.Name, "notice", notice)
			p.onEvent(Event{Step: step.Name, Kind: EventSkipped, Notice: notice})
			continue
		}

		p.logger.Debug("running step", "step", step.Name)
		p.onEvent(Event{Step: step.Name, Kind: EventStarted})

		if err := step.Run(ctx); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}
		p.onEvent(Event{Step: step.Name, Kind: EventCompleted})
	}
	return nil
}
