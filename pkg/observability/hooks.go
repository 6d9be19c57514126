package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/interlude/pkg/domain"
)

// Combine fans every event out to all hook sets, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks

	for _, h := range sets {
		if fn := h.OnDrive; fn != nil {
			prev := out.OnDrive
			out.OnDrive = func(ctx context.Context, e *domain.DriveEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				fn(ctx, e)
			}
		}
		if fn := h.OnPause; fn != nil {
			prev := out.OnPause
			out.OnPause = func(ctx context.Context, e *domain.PauseEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				fn(ctx, e)
			}
		}
		if fn := h.OnTransition; fn != nil {
			prev := out.OnTransition
			out.OnTransition = func(ctx context.Context, e *domain.TransitionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				fn(ctx, e)
			}
		}
		if fn := h.OnBusy; fn != nil {
			prev := out.OnBusy
			out.OnBusy = func(ctx context.Context, sessionID string) {
				if prev != nil {
					prev(ctx, sessionID)
				}
				fn(ctx, sessionID)
			}
		}
	}
	return out
}

// AuditHooks logs drive outcomes at info level, for an audit trail separate
// from the debug logging of the orchestrator.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDrive: func(ctx context.Context, e *domain.DriveEvent) {
			attrs := []any{
				"session_id", e.SessionID,
				"phase", e.Phase,
				"outcome", e.Outcome,
				"duration", e.Duration,
			}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err)
			}
			logger.Info("drive", attrs...)
		},
		OnBusy: func(ctx context.Context, sessionID string) {
			logger.Warn("session busy", "session_id", sessionID)
		},
	}
}
