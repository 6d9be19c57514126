package stream

import (
	"context"
	"io"

	"github.com/aretw0/interlude/pkg/domain"
)

// Slice is a finite, in-memory EventStream. It is mostly useful in tests and for
// engines that compute a whole drive eagerly.
type Slice struct {
	events []domain.Event
	pos    int
	err    error
	closed bool
}

// FromEvents returns a stream yielding events in order, then io.EOF.
func FromEvents(events ...domain.Event) *Slice {
	return &Slice{events: events}
}

// FromError returns a stream yielding events in order, then err.
func FromError(err error, events ...domain.Event) *Slice {
	return &Slice{events: events, err: err}
}

// Next returns the next event.
func (s *Slice) Next(ctx context.Context) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	if s.closed {
		return domain.Event{}, ErrClosed
	}
	if s.pos >= len(s.events) {
		if s.err != nil {
			return domain.Event{}, s.err
		}
		return domain.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// Close marks the stream as consumed.
func (s *Slice) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Slice) Closed() bool {
	return s.closed
}

// Consumed returns how many events were read.
func (s *Slice) Consumed() int {
	return s.pos
}
