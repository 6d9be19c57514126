package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/google/uuid"
)

// Conversation is the session protocol driven by the runner.
// *interlude.Engine implements it.
type Conversation interface {
	Initiate(ctx context.Context, sessionID, content string) (*domain.Reply, error)
	Continue(ctx context.Context, sessionID, content string) (*domain.Reply, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Runner handles the chat loop of a session using the provided IO.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// SessionID names the session to initiate or resume.
	SessionID string

	// Topic is the initial input of a new session.
	Topic string

	// InterruptSource ends the run when it fires or is closed.
	InterruptSource <-chan struct{}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run initiates or resumes the session and relays prompts and answers until
// the workflow completes, the user leaves ("exit", "quit", EOF) or a signal
// arrives. Leaving keeps the session resumable. The last reply is returned.
func (r *Runner) Run(ctx context.Context, conv Conversation) (*domain.Reply, error) {
	handler := r.resolveHandler()
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}

	signals := NewSignalManager(ctx)
	defer signals.Stop()
	ctx = signals.Context()

	if r.InterruptSource != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-r.InterruptSource:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	reply, err := r.open(ctx, conv, handler, signals)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return reply, err
	}

	for {
		if err := handler.Output(ctx, reply); err != nil {
			return reply, fmt.Errorf("output error: %w", err)
		}
		if reply.Status != domain.StatusAwaitingInput {
			return reply, nil
		}

		answer, err := r.read(ctx, handler, signals)
		if errors.Is(err, io.EOF) {
			handler.SystemOutput(ctx, fmt.Sprintf("Session %s is paused. Run again with the same session ID to resume.", r.SessionID))
			return reply, nil
		}
		if err != nil {
			return reply, err
		}

		next, err := conv.Continue(ctx, r.SessionID, answer)
		if errors.Is(err, domain.ErrSessionBusy) {
			handler.SystemOutput(ctx, "The session is busy in another process. Try again.")
			continue
		}
		if err != nil {
			return reply, err
		}
		r.Logger.Debug("Session continued", "session_id", r.SessionID, "status", next.Status)
		reply = next
	}
}

// open resumes an existing session or initiates a new one.
func (r *Runner) open(ctx context.Context, conv Conversation, handler IOHandler, signals *SignalManager) (*domain.Reply, error) {
	sess, err := conv.Session(ctx, r.SessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
	case err != nil:
		return nil, err
	case sess.Status == domain.StatusDegraded:
		return domain.ReplyFor(sess), fmt.Errorf("%w: %s", domain.ErrSessionDegraded, sess.Error)
	case sess.Status != domain.StatusFresh:
		handler.SystemOutput(ctx, fmt.Sprintf("Resuming session %s.", r.SessionID))
		return domain.ReplyFor(sess), nil
	}

	topic := r.Topic
	if topic == "" {
		handler.SystemOutput(ctx, "What should the report be about?")
		if topic, err = r.read(ctx, handler, signals); err != nil {
			return nil, err
		}
	}

	reply, err := conv.Initiate(ctx, r.SessionID, topic)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("Session initiated", "session_id", r.SessionID, "status", reply.Status)
	return reply, nil
}

// read returns io.EOF when the user leaves or the run is interrupted.
func (r *Runner) read(ctx context.Context, handler IOHandler, signals *SignalManager) (string, error) {
	text, err := handler.Input(ctx)
	if err != nil {
		if ctx.Err() != nil || signals.Interrupted() {
			r.Logger.Debug("Runner input: interrupted", "err", err)
			return "", io.EOF
		}
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("input error: %w", err)
	}
	if text == "exit" || text == "quit" {
		return "", io.EOF
	}
	return text, nil
}

func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}
