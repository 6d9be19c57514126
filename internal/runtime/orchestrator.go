package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/ports"
	"github.com/aretw0/interlude/pkg/session"
)

// AckPolicy decides what happens to pauses raised by the acknowledgement drive.
type AckPolicy string

const (
	// AckSurface returns acknowledgement pauses to the caller; the latest one
	// becomes the session prompt.
	AckSurface AckPolicy = "surface"
	// AckDiscard logs and drops acknowledgement pauses, keeping the prompt
	// captured by the user-content drive.
	AckDiscard AckPolicy = "discard"
)

// CoordinateFunc derives the engine checkpoint coordinate from a session ID.
type CoordinateFunc func(sessionID string) string

// interpretFunc consumes one drive's stream.
type interpretFunc func(context.Context, ports.EventStream) (Outcome, error)

// Orchestrator implements the session protocol on top of a WorkflowEngine:
// initiate, two-phase continue, and final artifact retrieval.
type Orchestrator struct {
	engine   ports.WorkflowEngine
	sessions *session.Manager

	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	driveTimeout time.Duration
	ackPolicy    AckPolicy
	coordinate   CoordinateFunc
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithDriveTimeout bounds every single drive. Zero disables the deadline.
func WithDriveTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.driveTimeout = d
	}
}

// WithAckPolicy selects how acknowledgement-phase pauses are handled.
func WithAckPolicy(p AckPolicy) Option {
	return func(o *Orchestrator) {
		if p != "" {
			o.ackPolicy = p
		}
	}
}

// WithCoordinateFunc overrides how checkpoint coordinates are derived.
func WithCoordinateFunc(fn CoordinateFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.coordinate = fn
		}
	}
}

// NewOrchestrator creates an orchestrator driving engine, with sessions as registry.
func NewOrchestrator(engine ports.WorkflowEngine, sessions *session.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:     engine,
		sessions:   sessions,
		logger:     logging.NewNop(),
		ackPolicy:  AckSurface,
		coordinate: func(id string) string { return id },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Initiate starts the workflow for a new session and returns the first pause
// prompt, or the final artifact if the workflow completed without pausing.
// For an existing session it returns the current prompt or artifact without
// driving the engine.
func (o *Orchestrator) Initiate(ctx context.Context, sessionID, content string) (*domain.Reply, error) {
	var (
		reply *domain.Reply
		last  = domain.StatusUnknown
	)
	err := o.sessions.Drive(ctx, sessionID, func(ctx context.Context) error {
		sess, _, err := o.sessions.Create(ctx, sessionID, o.coordinate(sessionID))
		if err != nil {
			return err
		}
		last = sess.Status

		switch sess.Status {
		case domain.StatusAwaitingInput, domain.StatusCompleted:
			reply = domain.ReplyFor(sess)
			return nil
		case domain.StatusDegraded:
			return domain.ErrSessionDegraded
		case domain.StatusDraining:
			last, err = o.abandoned(ctx, sess)
			return err
		}

		// Fresh, or a previous start that timed out before the first pause.
		out, err := o.drive(ctx, sess, domain.PhaseStart, domain.Content(content), FirstPause)
		if err != nil {
			last, err = o.fail(ctx, sess, domain.PhaseStart, err)
			return err
		}

		settle := context.WithoutCancel(ctx)
		var prompts []any
		if out.Paused {
			o.pause(settle, sess, domain.PhaseStart, out.Payload, true)
			prompts = append(prompts, out.Payload)
			sess.Prompt = out.Payload
			o.transition(settle, sess, domain.StatusAwaitingInput)
		} else if err := o.complete(settle, sess); err != nil {
			last, err = o.fail(settle, sess, domain.PhaseStart, err)
			return err
		}

		last = sess.Status
		if err := o.sessions.Save(settle, sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		reply = domain.ReplyFor(sess)
		reply.Prompts = prompts
		return nil
	})
	if err != nil {
		return nil, o.annotate(ctx, sessionID, last, err)
	}
	return reply, nil
}

// Continue delivers content to a paused session, then issues the mandatory
// acknowledgement resume, and finally checks whether the workflow completed.
func (o *Orchestrator) Continue(ctx context.Context, sessionID, content string) (*domain.Reply, error) {
	var (
		reply *domain.Reply
		last  = domain.StatusUnknown
	)
	err := o.sessions.Drive(ctx, sessionID, func(ctx context.Context) error {
		sess, err := o.sessions.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		last = sess.Status

		switch {
		case sess.Active():
		case sess.Status == domain.StatusDegraded:
			return domain.ErrSessionDegraded
		case sess.Status == domain.StatusDraining:
			last, err = o.abandoned(ctx, sess)
			return err
		default:
			return fmt.Errorf("%w: session is %s", domain.ErrNoActiveSession, sess.Status)
		}

		// Phase 1: deliver the user content.
		out, err := o.drive(ctx, sess, domain.PhaseResume, domain.Content(content), FirstPause)
		if err != nil {
			last, err = o.fail(ctx, sess, domain.PhaseResume, err)
			return err
		}

		// From here on the checkpoint has moved; a disconnecting caller must not
		// truncate the acknowledgement phase.
		settle := context.WithoutCancel(ctx)

		var prompts []any
		if out.Paused {
			o.pause(settle, sess, domain.PhaseResume, out.Payload, true)
			prompts = append(prompts, out.Payload)
			sess.Prompt = out.Payload
		}

		// Phase 2: the acknowledgement resume is always issued.
		o.transition(settle, sess, domain.StatusDraining)
		if err := o.sessions.Save(settle, sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}

		ack, err := o.drive(settle, sess, domain.PhaseAck, domain.Ack(), Drain)
		switch {
		case err != nil && !out.Paused && errors.Is(err, domain.ErrUnknownCheckpoint):
			// The run already finished on the content alone; there was no gate
			// left to acknowledge.
			o.logger.Debug("Acknowledgement found no paused run",
				"session_id", sess.ID,
				"coordinate", sess.Coordinate,
			)
		case err != nil:
			last, err = o.fail(settle, sess, domain.PhaseAck, err)
			return err
		}
		for _, p := range ack.Pauses {
			surfaced := o.ackPolicy == AckSurface
			o.pause(settle, sess, domain.PhaseAck, p, surfaced)
			if surfaced {
				prompts = append(prompts, p)
				sess.Prompt = p
			}
		}

		artifact, err := o.engine.InspectFinalState(settle, sess.Coordinate)
		if err != nil {
			last, err = o.fail(settle, sess, domain.PhaseAck, classify(err))
			return err
		}
		switch {
		case artifact != nil:
			sess.Artifact = artifact
			o.transition(settle, sess, domain.StatusCompleted)
		case out.Paused || ack.Paused:
			o.transition(settle, sess, domain.StatusAwaitingInput)
		default:
			// The engine finished on the user content alone but left no artifact.
			o.logger.Warn("Workflow exhausted without a final artifact",
				"session_id", sess.ID,
				"coordinate", sess.Coordinate,
			)
			sess.Artifact = &domain.Artifact{}
			o.transition(settle, sess, domain.StatusCompleted)
		}

		last = sess.Status
		if err := o.sessions.Save(settle, sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		reply = domain.ReplyFor(sess)
		reply.Prompts = prompts
		return nil
	})
	if err != nil {
		return nil, o.annotate(ctx, sessionID, last, err)
	}
	return reply, nil
}

// Session returns the registry record for sessionID.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := o.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, o.annotate(ctx, sessionID, domain.StatusUnknown, err)
	}
	return sess, nil
}

// Result reads the final artifact from the engine without advancing it.
// It returns domain.ErrNoActiveSession while the workflow is still mid-flight.
func (o *Orchestrator) Result(ctx context.Context, sessionID string) (*domain.Artifact, error) {
	sess, err := o.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, o.annotate(ctx, sessionID, domain.StatusUnknown, err)
	}
	artifact, err := o.engine.InspectFinalState(ctx, sess.Coordinate)
	if err != nil {
		return nil, o.annotate(ctx, sessionID, sess.Status, classify(err))
	}
	if artifact == nil {
		return nil, o.annotate(ctx, sessionID, sess.Status,
			fmt.Errorf("%w: workflow has no final artifact yet", domain.ErrNoActiveSession))
	}
	return artifact, nil
}

// Sessions lists the known session IDs.
func (o *Orchestrator) Sessions(ctx context.Context) ([]string, error) {
	return o.sessions.List(ctx)
}

// drive issues one start or resume and interprets its stream under the
// configured deadline.
func (o *Orchestrator) drive(ctx context.Context, sess *domain.Session, phase domain.Phase, input domain.Input, interpret interpretFunc) (Outcome, error) {
	dctx, cancel := ctx, context.CancelFunc(func() {})
	if o.driveTimeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, o.driveTimeout)
	}
	defer cancel()

	started := time.Now()
	sess.Drives++
	o.logger.Debug("Drive started",
		"session_id", sess.ID,
		"coordinate", sess.Coordinate,
		"phase", phase,
	)

	var (
		s   ports.EventStream
		out Outcome
		err error
	)
	if phase == domain.PhaseStart {
		s, err = o.engine.Start(dctx, sess.Coordinate, input)
	} else {
		s, err = o.engine.Resume(dctx, sess.Coordinate, input)
	}
	if err == nil {
		out, err = interpret(dctx, s)
	} else {
		err = classify(err)
	}

	if err != nil && dctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s: %w", domain.ErrDriveTimeout, o.driveTimeout, err)
	}

	ev := &domain.DriveEvent{
		Timestamp: time.Now(),
		SessionID: sess.ID,
		Phase:     phase,
		Discarded: out.Discarded,
		Duration:  time.Since(started),
		Err:       err,
	}
	switch {
	case errors.Is(err, domain.ErrDriveTimeout):
		ev.Outcome = domain.OutcomeTimeout
	case err != nil:
		ev.Outcome = domain.OutcomeError
	case out.Paused:
		ev.Outcome = domain.OutcomePaused
	default:
		ev.Outcome = domain.OutcomeExhausted
	}
	if o.hooks.OnDrive != nil {
		o.hooks.OnDrive(ctx, ev)
	}

	o.logger.Debug("Drive finished",
		"session_id", sess.ID,
		"phase", phase,
		"outcome", ev.Outcome,
		"discarded", out.Discarded,
		"duration", ev.Duration,
	)
	return out, err
}

// complete fetches the final artifact after a drive exhausted its stream.
func (o *Orchestrator) complete(ctx context.Context, sess *domain.Session) error {
	artifact, err := o.engine.InspectFinalState(ctx, sess.Coordinate)
	if err != nil {
		return classify(err)
	}
	if artifact == nil {
		o.logger.Warn("Workflow exhausted without a final artifact",
			"session_id", sess.ID,
			"coordinate", sess.Coordinate,
		)
		artifact = &domain.Artifact{}
	}
	sess.Artifact = artifact
	o.transition(ctx, sess, domain.StatusCompleted)
	return nil
}

// fail records a drive failure. Interrupted drives outside the acknowledgement
// phase leave the stored status untouched, since the engine only moves the
// checkpoint on pause or completion boundaries. Everything else degrades the
// session. It returns the status the session is left in.
func (o *Orchestrator) fail(ctx context.Context, sess *domain.Session, phase domain.Phase, err error) (domain.Status, error) {
	settle := context.WithoutCancel(ctx)
	retryable := errors.Is(err, domain.ErrDriveTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)

	if retryable && phase != domain.PhaseAck {
		o.logger.Warn("Drive interrupted, session left unchanged",
			"session_id", sess.ID,
			"phase", phase,
			"status", sess.Status,
			"err", err,
		)
		// Persist the drive counter; the status is unchanged.
		if serr := o.sessions.Save(settle, sess); serr != nil {
			o.logger.Error("Failed to save session", "session_id", sess.ID, "err", serr)
		}
		return sess.Status, err
	}

	o.logger.Error("Drive failed, session degraded",
		"session_id", sess.ID,
		"phase", phase,
		"status", sess.Status,
		"err", err,
	)
	sess.Error = err.Error()
	o.transition(settle, sess, domain.StatusDegraded)
	if serr := o.sessions.Save(settle, sess); serr != nil {
		o.logger.Error("Failed to save session", "session_id", sess.ID, "err", serr)
	}
	return sess.Status, err
}

// abandoned degrades a session found mid-acknowledgement: a previous call
// stopped between the two drives and the checkpoint position is unknown.
func (o *Orchestrator) abandoned(ctx context.Context, sess *domain.Session) (domain.Status, error) {
	settle := context.WithoutCancel(ctx)
	o.logger.Error("Session interrupted during acknowledgement, degrading",
		"session_id", sess.ID,
		"coordinate", sess.Coordinate,
	)
	sess.Error = "interrupted during the acknowledgement drive"
	o.transition(settle, sess, domain.StatusDegraded)
	if err := o.sessions.Save(settle, sess); err != nil {
		return sess.Status, fmt.Errorf("failed to save session: %w", err)
	}
	return sess.Status, fmt.Errorf("%w: %s", domain.ErrSessionDegraded, sess.Error)
}

func (o *Orchestrator) pause(ctx context.Context, sess *domain.Session, phase domain.Phase, payload any, surfaced bool) {
	if !surfaced {
		o.logger.Warn("Acknowledgement pause dropped",
			"session_id", sess.ID,
			"phase", phase,
			"payload", payload,
		)
	}
	if o.hooks.OnPause != nil {
		o.hooks.OnPause(ctx, &domain.PauseEvent{
			Timestamp: time.Now(),
			SessionID: sess.ID,
			Phase:     phase,
			Payload:   payload,
			Surfaced:  surfaced,
		})
	}
}

func (o *Orchestrator) transition(ctx context.Context, sess *domain.Session, to domain.Status) {
	from := sess.Status
	if from == to {
		return
	}
	sess.Status = to
	o.logger.Info("Session transition",
		"session_id", sess.ID,
		"from", from,
		"to", to,
	)
	if o.hooks.OnTransition != nil {
		o.hooks.OnTransition(ctx, &domain.TransitionEvent{
			Timestamp: time.Now(),
			SessionID: sess.ID,
			From:      from,
			To:        to,
		})
	}
}

// annotate attaches the session and its last known status to err.
func (o *Orchestrator) annotate(ctx context.Context, sessionID string, last domain.Status, err error) error {
	if errors.Is(err, domain.ErrSessionBusy) && o.hooks.OnBusy != nil {
		o.hooks.OnBusy(ctx, sessionID)
	}
	return &domain.SessionError{SessionID: sessionID, Status: last, Err: err}
}
