package dsl

import "github.com/aretw0/interlude/pkg/adapters/script"

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step script.Step
}

// Progress appends the progress events the step emits before its output.
func (s *StepBuilder) Progress(names ...string) *StepBuilder {
	s.step.Progress = append(s.step.Progress, names...)
	return s
}

// Output sets the template rendered into the run values under the step ID.
func (s *StepBuilder) Output(tmpl string) *StepBuilder {
	s.step.Output = tmpl
	return s
}

// Gate makes the step pause for feedback with the rendered prompt.
func (s *StepBuilder) Gate(tmpl string) *StepBuilder {
	s.step.Gate = tmpl
	return s
}
