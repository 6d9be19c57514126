package interlude

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/internal/runtime"
	"github.com/aretw0/interlude/pkg/adapters/memory"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/ports"
	"github.com/aretw0/interlude/pkg/session"
)

// AckPolicy decides what happens to pauses raised by the acknowledgement drive.
type AckPolicy = runtime.AckPolicy

const (
	// AckSurface returns acknowledgement pauses to the caller (default).
	AckSurface = runtime.AckSurface
	// AckDiscard logs and drops acknowledgement pauses.
	AckDiscard = runtime.AckDiscard
)

// CoordinateFunc derives the engine checkpoint coordinate from a session ID.
type CoordinateFunc = runtime.CoordinateFunc

// Engine is the high-level entry point for the Interlude library.
// It binds a workflow engine to a session registry and exposes the
// conversational protocol: initiate, continue, and result inspection.
type Engine struct {
	workflow ports.WorkflowEngine
	store    ports.SessionStore
	locker   ports.DistributedLocker
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	driveTimeout time.Duration
	ackPolicy    AckPolicy
	coordinate   CoordinateFunc
	queue        bool
	lockTTL      time.Duration

	sessions     *session.Manager
	orchestrator *runtime.Orchestrator
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the session store (default: in-memory).
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables cross-process single-flight through a distributed lock.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL bounds how long a distributed lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithQueueing makes concurrent calls on one session wait instead of failing
// with domain.ErrSessionBusy.
func WithQueueing(queue bool) Option {
	return func(e *Engine) {
		e.queue = queue
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDriveTimeout bounds every engine drive. Zero (default) disables it.
func WithDriveTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.driveTimeout = d
	}
}

// WithAckPolicy selects how acknowledgement-phase pauses are handled.
func WithAckPolicy(p AckPolicy) Option {
	return func(e *Engine) {
		e.ackPolicy = p
	}
}

// WithCoordinateFunc overrides how checkpoint coordinates are derived from
// session IDs (default: identity).
func WithCoordinateFunc(fn CoordinateFunc) Option {
	return func(e *Engine) {
		e.coordinate = fn
	}
}

// New initializes an Engine driving workflow.
func New(workflow ports.WorkflowEngine, opts ...Option) (*Engine, error) {
	if workflow == nil {
		return nil, errors.New("workflow engine is required")
	}

	eng := &Engine{workflow: workflow, ackPolicy: AckSurface}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	managerOpts := []session.Option{
		session.WithLogger(eng.logger),
		session.WithQueueing(eng.queue),
		session.WithLockTTL(eng.lockTTL),
	}
	if eng.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.store, managerOpts...)

	eng.orchestrator = runtime.NewOrchestrator(eng.workflow, eng.sessions,
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithDriveTimeout(eng.driveTimeout),
		runtime.WithAckPolicy(eng.ackPolicy),
		runtime.WithCoordinateFunc(eng.coordinate),
	)
	return eng, nil
}

// Initiate starts the workflow for sessionID with content as its initial input
// and returns the first pause prompt, or the final artifact when the workflow
// completes without pausing. Initiating an existing session does not drive the
// engine again.
func (e *Engine) Initiate(ctx context.Context, sessionID, content string) (*domain.Reply, error) {
	return e.orchestrator.Initiate(ctx, sessionID, content)
}

// Continue delivers content to the paused session, acknowledges the feedback
// gate, and returns either the next prompt or the final artifact.
func (e *Engine) Continue(ctx context.Context, sessionID, content string) (*domain.Reply, error) {
	return e.orchestrator.Continue(ctx, sessionID, content)
}

// Session returns the registry record for sessionID.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.orchestrator.Session(ctx, sessionID)
}

// Result reads the final artifact without advancing the workflow.
func (e *Engine) Result(ctx context.Context, sessionID string) (*domain.Artifact, error) {
	return e.orchestrator.Result(ctx, sessionID)
}

// Sessions lists known session IDs.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.orchestrator.Sessions(ctx)
}

// Delete removes the session record, waiting for any in-flight drive.
// The engine checkpoint is left untouched.
func (e *Engine) Delete(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

// Workflow returns the underlying workflow engine.
func (e *Engine) Workflow() ports.WorkflowEngine {
	return e.workflow
}
