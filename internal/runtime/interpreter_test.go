package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/interlude/internal/runtime"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstPause_StopsAtFirstPause(t *testing.T) {
	s := stream.FromEvents(
		domain.Progress("generate_report_plan", nil),
		domain.Progress("search_web", nil),
		domain.Paused("Confirm scope?"),
		domain.Progress("never_read", nil),
		domain.Paused("never surfaced"),
	)

	out, err := runtime.FirstPause(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, out.Paused)
	assert.Equal(t, "Confirm scope?", out.Payload)
	assert.Equal(t, 2, out.Discarded)
	assert.Equal(t, 3, s.Consumed(), "events after the pause must not be consumed")
	assert.True(t, s.Closed(), "stream must be closed on early exit")
}

func TestFirstPause_Exhausted(t *testing.T) {
	s := stream.FromEvents(domain.Progress("a", nil), domain.Progress("b", nil))

	out, err := runtime.FirstPause(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, out.Exhausted())
	assert.Nil(t, out.Payload)
	assert.Equal(t, 2, out.Discarded)
	assert.True(t, s.Closed())
}

func TestFirstPause_CancelsProducer(t *testing.T) {
	produced := 0
	s := stream.New(context.Background(), func(ctx context.Context, emit stream.Emit) error {
		if err := emit(domain.Paused("stop here")); err != nil {
			return err
		}
		for {
			if err := emit(domain.Progress("tail", nil)); err != nil {
				return err
			}
			produced++
		}
	})

	out, err := runtime.FirstPause(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "stop here", out.Payload)

	select {
	case <-s.Done():
	default:
		t.Fatal("producer must have returned once FirstPause closed the stream")
	}
	assert.Zero(t, produced)
}

func TestFirstPause_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"opaque", errors.New("node crashed"), domain.ErrEngineFailure},
		{"unknown checkpoint", domain.ErrUnknownCheckpoint, domain.ErrUnknownCheckpoint},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stream.FromError(tt.err, domain.Progress("a", nil))
			_, err := runtime.FirstPause(context.Background(), s)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, s.Closed())
		})
	}
}

func TestDrain_CollectsEveryPause(t *testing.T) {
	s := stream.FromEvents(
		domain.Progress("a", nil),
		domain.Paused("first"),
		domain.Progress("b", nil),
		domain.Paused("second"),
	)

	out, err := runtime.Drain(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, out.Paused)
	assert.Equal(t, "second", out.Payload)
	assert.Equal(t, []any{"first", "second"}, out.Pauses)
	assert.Equal(t, 2, out.Discarded)
	assert.Equal(t, 4, s.Consumed())
	assert.True(t, s.Closed())
}
