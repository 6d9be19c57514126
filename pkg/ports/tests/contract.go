package tests

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/ports"
)

// WorkflowEngineContractTest is a reusable test suite that verifies if an adapter
// complies with ports.WorkflowEngine. The engine must run a workflow with a single
// feedback gate: Start pauses at it, user content pauses at it again and an
// acknowledgement runs the workflow to completion.
func WorkflowEngineContractTest(t *testing.T, engine ports.WorkflowEngine, coord string) {
	t.Helper()
	ctx := context.Background()

	// 1. Nothing to inspect before the run starts
	t.Run("InspectBeforeStart", func(t *testing.T) {
		artifact, err := engine.InspectFinalState(ctx, coord+"-missing")
		if err != nil {
			t.Fatalf("unexpected error inspecting unknown coordinate: %v", err)
		}
		if artifact != nil {
			t.Errorf("expected no artifact for unknown coordinate, got %+v", artifact)
		}
	})

	// 2. Resume without a paused run
	t.Run("ResumeUnknownCheckpoint", func(t *testing.T) {
		s, err := engine.Resume(ctx, coord+"-missing", domain.Ack())
		if err == nil {
			_, err = drain(ctx, s)
		}
		if !errors.Is(err, domain.ErrUnknownCheckpoint) {
			t.Errorf("expected ErrUnknownCheckpoint, got %v", err)
		}
	})

	// 3. Start pauses
	t.Run("StartPauses", func(t *testing.T) {
		s, err := engine.Start(ctx, coord, domain.Content("quantum annealing"))
		if err != nil {
			t.Fatalf("unexpected error starting: %v", err)
		}
		pauses, err := drain(ctx, s)
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		if len(pauses) != 1 {
			t.Fatalf("expected one pause, got %d", len(pauses))
		}
		artifact, err := engine.InspectFinalState(ctx, coord)
		if err != nil || artifact != nil {
			t.Errorf("expected no artifact mid-flight, got %+v (err %v)", artifact, err)
		}
	})

	// 4. Content resume pauses again at the gate
	t.Run("ContentResumePauses", func(t *testing.T) {
		s, err := engine.Resume(ctx, coord, domain.Content("add a section on hardware"))
		if err != nil {
			t.Fatalf("unexpected error resuming: %v", err)
		}
		pauses, err := drain(ctx, s)
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		if len(pauses) != 1 {
			t.Fatalf("expected one pause, got %d", len(pauses))
		}
	})

	// 5. Acknowledgement completes
	t.Run("AckCompletes", func(t *testing.T) {
		s, err := engine.Resume(ctx, coord, domain.Ack())
		if err != nil {
			t.Fatalf("unexpected error resuming: %v", err)
		}
		pauses, err := drain(ctx, s)
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		if len(pauses) != 0 {
			t.Errorf("expected no pause after acknowledgement, got %v", pauses)
		}

		artifact, err := engine.InspectFinalState(ctx, coord)
		if err != nil {
			t.Fatalf("unexpected error inspecting: %v", err)
		}
		if artifact == nil || artifact.Content == "" {
			t.Fatalf("expected a final artifact, got %+v", artifact)
		}

		again, err := engine.InspectFinalState(ctx, coord)
		if err != nil || again == nil || again.Content != artifact.Content {
			t.Errorf("inspection must be repeatable, got %+v (err %v)", again, err)
		}
	})

	// 6. A completed run has nothing to resume
	t.Run("ResumeCompleted", func(t *testing.T) {
		s, err := engine.Resume(ctx, coord, domain.Ack())
		if err == nil {
			_, err = drain(ctx, s)
		}
		if !errors.Is(err, domain.ErrUnknownCheckpoint) {
			t.Errorf("expected ErrUnknownCheckpoint, got %v", err)
		}
	})
}

func drain(ctx context.Context, s ports.EventStream) ([]any, error) {
	defer s.Close()
	var pauses []any
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return pauses, nil
		}
		if err != nil {
			return pauses, err
		}
		if ev.IsPause() {
			pauses = append(pauses, ev.Payload)
		}
	}
}
