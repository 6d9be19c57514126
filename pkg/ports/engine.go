package ports

import (
	"context"

	"github.com/aretw0/interlude/pkg/domain"
)

// EventStream is an asynchronous, single-consumer, forward-only sequence of
// workflow events. Once drained it cannot be replayed.
type EventStream interface {
	// Next blocks until the engine yields an event. It returns io.EOF once the
	// stream is exhausted.
	Next(ctx context.Context) (domain.Event, error)

	// Close stops consumption and releases engine-side resources. It must be
	// called whether or not the stream was drained, and is safe to call twice.
	Close() error
}

// WorkflowEngine wraps the opaque external engine.
// Each run is addressed by a checkpoint coordinate chosen by the caller.
type WorkflowEngine interface {
	// Start creates a new run keyed by coord, feeding input as the initial input.
	Start(ctx context.Context, coord string, input domain.Input) (EventStream, error)

	// Resume re-enters the paused run at coord, feeding input as the resolution
	// of the pause. Returns domain.ErrUnknownCheckpoint if no paused run exists.
	Resume(ctx context.Context, coord string, input domain.Input) (EventStream, error)

	// InspectFinalState reads the latest persisted state without advancing
	// execution. A nil artifact means the workflow is still mid-flight.
	InspectFinalState(ctx context.Context, coord string) (*domain.Artifact, error)
}
