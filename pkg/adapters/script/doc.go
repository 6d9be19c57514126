// Package script provides an in-process WorkflowEngine driven by a YAML workflow.
//
// A workflow is an ordered list of steps. Each step emits its progress events
// and may end in a feedback gate, where the run pauses with a rendered prompt.
// Resuming a gate with user content records the feedback and re-runs the step;
// resuming it with an acknowledgement approves the step and moves on. When no
// steps remain the report template is rendered into the final artifact.
//
// Checkpoints are kept in memory and committed before the pause or completion is
// emitted, so a consumer closing the stream early never loses a gate.
package script
