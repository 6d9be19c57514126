package runner

import "log/slog"

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithSessionID sets the session to initiate or resume. A new ID is generated
// when empty.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.SessionID = id
	}
}

// WithTopic sets the initial input of a new session. When empty the user is
// asked for it.
func WithTopic(topic string) Option {
	return func(r *Runner) {
		r.Topic = topic
	}
}

// WithInterruptSource sets a channel that cancels the pending input, ending the run.
func WithInterruptSource(ch <-chan struct{}) Option {
	return func(r *Runner) {
		r.InterruptSource = ch
	}
}
