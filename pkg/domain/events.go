package domain

import (
	"context"
	"time"
)

// EventKind discriminates workflow events.
type EventKind string

const (
	// EventPaused signals that the engine suspended and awaits external input.
	EventPaused EventKind = "paused"
	// EventOther is any other progress event; opaque to the orchestrator.
	EventOther EventKind = "other"
)

// Event is a value produced by the engine during a drive.
type Event struct {
	Kind EventKind `json:"kind"`

	// Payload is the human-facing pause value (Paused only).
	Payload any `json:"payload,omitempty"`

	// Name and Data describe progress events (Other only).
	Name string `json:"name,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Paused builds a pause event.
func Paused(payload any) Event {
	return Event{Kind: EventPaused, Payload: payload}
}

// Progress builds an opaque progress event.
func Progress(name string, data any) Event {
	return Event{Kind: EventOther, Name: name, Data: data}
}

// IsPause reports whether the event is the distinguished pause event.
func (e Event) IsPause() bool {
	return e.Kind == EventPaused
}

// Phase names the purpose of a drive.
type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseResume Phase = "resume"
	PhaseAck    Phase = "ack"
)

// Outcome names how a drive ended.
type Outcome string

const (
	OutcomePaused    Outcome = "paused"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeError     Outcome = "error"
)

// DriveEvent describes one finished drive.
type DriveEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	Phase     Phase         `json:"phase"`
	Outcome   Outcome       `json:"outcome"`
	Discarded int           `json:"discarded"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// PauseEvent describes a pause observed by the orchestrator.
type PauseEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Phase     Phase     `json:"phase"`
	Payload   any       `json:"payload"`
	// Surfaced is false when the pause was dropped by the acknowledgement policy.
	Surfaced bool `json:"surfaced"`
}

// TransitionEvent describes a session status change.
type TransitionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
}

// LifecycleHooks defines callbacks for orchestrator observability.
type LifecycleHooks struct {
	OnDrive      func(context.Context, *DriveEvent)
	OnPause      func(context.Context, *PauseEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnBusy       func(ctx context.Context, sessionID string)
}
