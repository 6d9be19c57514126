package stream_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_YieldsThenEOF(t *testing.T) {
	ctx := context.Background()
	s := stream.New(ctx, func(ctx context.Context, emit stream.Emit) error {
		if err := emit(domain.Progress("plan", nil)); err != nil {
			return err
		}
		return emit(domain.Paused("Confirm scope?"))
	})
	defer s.Close()

	ev, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventOther, ev.Kind)

	ev, err = s.Next(ctx)
	require.NoError(t, err)
	assert.True(t, ev.IsPause())
	assert.Equal(t, "Confirm scope?", ev.Payload)

	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_ProducerError(t *testing.T) {
	boom := errors.New("boom")
	s := stream.New(context.Background(), func(ctx context.Context, emit stream.Emit) error {
		return boom
	})
	defer s.Close()

	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStream_CloseCancelsProducer(t *testing.T) {
	stopped := make(chan struct{})
	s := stream.New(context.Background(), func(ctx context.Context, emit stream.Emit) error {
		defer close(stopped)
		for i := 0; ; i++ {
			if err := emit(domain.Progress("tick", i)); err != nil {
				return err
			}
		}
	})

	_, err := s.Next(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close must be idempotent")

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("producer goroutine still running after Close")
	}

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, stream.ErrClosed)
}

func TestStream_NextHonorsContext(t *testing.T) {
	release := make(chan struct{})
	s := stream.New(context.Background(), func(ctx context.Context, emit stream.Emit) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	defer s.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSlice(t *testing.T) {
	s := stream.FromEvents(domain.Progress("a", nil), domain.Paused("p"))

	ev, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Name)
	assert.Equal(t, 1, s.Consumed())

	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, stream.ErrClosed)
}
