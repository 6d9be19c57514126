package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aretw0/interlude/pkg/domain"
)

// ErrClosed is returned by Next after Close has been called.
var ErrClosed = errors.New("stream closed")

// Emit hands one event to the consumer. It blocks until the consumer reads the
// event or the stream is closed, in which case it returns the context error.
type Emit func(domain.Event) error

// Producer generates events for a stream. It must return when ctx is done.
// Returning nil exhausts the stream; any other error is reported by Next.
type Producer func(ctx context.Context, emit Emit) error

// Stream is a channel-backed EventStream driven by a producer goroutine.
type Stream struct {
	events chan domain.Event
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	err    error
	closed bool
	once   sync.Once
}

// New starts producer in a goroutine and returns the consuming side.
// The producer context is derived from ctx and canceled by Close.
func New(ctx context.Context, producer Producer) *Stream {
	pctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan domain.Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	emit := func(ev domain.Event) error {
		select {
		case s.events <- ev:
			return nil
		case <-pctx.Done():
			return pctx.Err()
		}
	}

	go func() {
		defer close(s.done)
		err := producer(pctx, emit)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()

	return s
}

// Next returns the next event, io.EOF once the producer finished cleanly, or
// the producer error.
func (s *Stream) Next(ctx context.Context) (domain.Event, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.Event{}, ErrClosed
	}

	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.done:
		// The producer may have raced a final send with its exit.
		select {
		case ev := <-s.events:
			return ev, nil
		default:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err != nil {
			return domain.Event{}, s.err
		}
		return domain.Event{}, io.EOF
	case <-ctx.Done():
		return domain.Event{}, ctx.Err()
	}
}

// Close cancels the producer and waits for it to return.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		<-s.done
	})
	return nil
}

// Done is closed once the producer goroutine has returned.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
