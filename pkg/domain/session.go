package domain

import "time"

// Status is the orchestrator state of a session.
type Status string

const (
	StatusUnknown       Status = ""
	StatusFresh         Status = "fresh"          // Record reserved, no run started yet
	StatusAwaitingInput Status = "awaiting_input" // Engine paused, Prompt holds the latest payload
	StatusDraining      Status = "draining"       // Acknowledgement drive in progress
	StatusCompleted     Status = "completed"      // No further pauses, Artifact is set
	StatusDegraded      Status = "degraded"       // An engine fault left the checkpoint undefined
)

// Session is the registry record for one workflow instance.
type Session struct {
	// ID is the caller-facing session identifier.
	ID string `json:"id"`

	// Coordinate is the key the engine uses to locate the persisted checkpoint.
	Coordinate string `json:"coordinate"`

	Status Status `json:"status"`

	// Prompt is the most recent pause payload surfaced to the caller.
	Prompt any `json:"prompt,omitempty"`

	// Artifact is set once the workflow completed.
	Artifact *Artifact `json:"artifact,omitempty"`

	// Error holds the fault that degraded the session.
	Error string `json:"error,omitempty"`

	// Drives counts every start or resume issued against the engine.
	Drives int `json:"drives"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a Fresh record for the given id and checkpoint coordinate.
func NewSession(id, coordinate string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         id,
		Coordinate: coordinate,
		Status:     StatusFresh,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Active reports whether the session can accept a continue call.
func (s *Session) Active() bool {
	return s.Status == StatusAwaitingInput
}

// Artifact is the terminal output of a session.
type Artifact struct {
	Content string         `json:"content"`
	Values  map[string]any `json:"values,omitempty"`
}

// Reply is what the façades return for initiate and continue calls.
type Reply struct {
	SessionID string `json:"session_id"`
	Status    Status `json:"status"`

	// Message is the pause payload, or the artifact content once completed.
	Message any `json:"ai_message"`

	// Prompts lists every pause observed during the call, in arrival order.
	Prompts []any `json:"prompts,omitempty"`

	Artifact *Artifact `json:"artifact,omitempty"`
}

// ReplyFor builds the reply describing the current state of a session.
func ReplyFor(s *Session) *Reply {
	r := &Reply{
		SessionID: s.ID,
		Status:    s.Status,
		Message:   s.Prompt,
	}
	if s.Status == StatusCompleted && s.Artifact != nil {
		r.Message = s.Artifact.Content
		r.Artifact = s.Artifact
	}
	return r
}
