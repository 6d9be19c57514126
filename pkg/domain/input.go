package domain

// InputKind discriminates external inputs.
type InputKind string

const (
	// InputContent carries arbitrary user content.
	InputContent InputKind = "content"
	// InputAck is the synthetic acknowledgement used to push the engine past a
	// confirmation gate.
	InputAck InputKind = "ack"
)

// AckValue is the sentinel the engine receives as the acknowledgement resume.
const AckValue = true

// Input is the payload delivered to start or resume a run.
type Input struct {
	Kind    InputKind `json:"kind"`
	Content string    `json:"content,omitempty"`
}

// Content builds a user-content input.
func Content(text string) Input {
	return Input{Kind: InputContent, Content: text}
}

// Ack builds the synthetic acknowledgement input.
func Ack() Input {
	return Input{Kind: InputAck}
}

// IsAck reports whether the input is the acknowledgement sentinel.
func (i Input) IsAck() bool {
	return i.Kind == InputAck
}

// Value returns the raw value handed to the engine.
func (i Input) Value() any {
	if i.IsAck() {
		return AckValue
	}
	return i.Content
}
