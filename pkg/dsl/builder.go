package dsl

import (
	"fmt"

	"github.com/aretw0/interlude/pkg/adapters/script"
)

// Builder manages the workflow construction. Steps run in the order they are
// first added.
type Builder struct {
	name   string
	order  []string
	steps  map[string]*StepBuilder
	report string
}

// New creates a new workflow builder.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		steps: make(map[string]*StepBuilder),
	}
}

// Step appends a step to the workflow.
// If the step already exists, it returns the existing builder.
func (b *Builder) Step(id string) *StepBuilder {
	if sb, ok := b.steps[id]; ok {
		return sb
	}
	sb := &StepBuilder{step: script.Step{ID: id}}
	b.steps[id] = sb
	b.order = append(b.order, id)
	return sb
}

// Report sets the template of the final artifact.
func (b *Builder) Report(tmpl string) *Builder {
	b.report = tmpl
	return b
}

// Build compiles the workflow, rejecting invalid templates.
func (b *Builder) Build() (*script.Workflow, error) {
	steps := make([]script.Step, 0, len(b.order))
	for _, id := range b.order {
		steps = append(steps, b.steps[id].step)
	}

	wf, err := script.NewWorkflow(b.name, steps, b.report)
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow %q: %w", b.name, err)
	}
	return wf, nil
}
