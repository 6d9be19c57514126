package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/ports"
)

// Outcome is the interpretation of one drive's event stream.
type Outcome struct {
	// Paused is true when the engine suspended; Payload holds the pause value.
	Paused  bool
	Payload any

	// Pauses lists every pause payload seen (Drain only; FirstPause stops at one).
	Pauses []any

	// Discarded counts the progress events that were consumed and dropped.
	Discarded int
}

// Exhausted reports whether the stream ended without pausing.
func (o Outcome) Exhausted() bool {
	return !o.Paused
}

// FirstPause consumes s until the first pause event and closes it, propagating
// cancellation to the producer. Progress events before the pause are discarded.
// If the stream ends without pausing the outcome is exhausted.
func FirstPause(ctx context.Context, s ports.EventStream) (Outcome, error) {
	defer s.Close()

	var out Outcome
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, classify(err)
		}
		if ev.IsPause() {
			out.Paused = true
			out.Payload = ev.Payload
			out.Pauses = []any{ev.Payload}
			return out, nil
		}
		out.Discarded++
	}
}

// Drain consumes s entirely, collecting every pause payload in arrival order.
// Payload holds the last pause, if any.
func Drain(ctx context.Context, s ports.EventStream) (Outcome, error) {
	defer s.Close()

	var out Outcome
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, classify(err)
		}
		if ev.IsPause() {
			out.Paused = true
			out.Payload = ev.Payload
			out.Pauses = append(out.Pauses, ev.Payload)
			continue
		}
		out.Discarded++
	}
}

// classify maps stream errors onto the error taxonomy. Errors that already
// belong to it, and context errors, pass through unchanged.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownCheckpoint),
		errors.Is(err, domain.ErrEngineFailure),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEngineFailure, err)
}
