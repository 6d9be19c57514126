package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownCheckpoint is returned by engines when a resume targets a coordinate
// with no paused run. It is not retryable without initiating a new session.
var ErrUnknownCheckpoint = errors.New("unknown checkpoint")

// ErrSessionBusy is returned when another drive is already in flight for the session.
// It is transient: callers may retry after a backoff.
var ErrSessionBusy = errors.New("session busy")

// ErrEngineFailure wraps opaque faults reported by the workflow engine.
var ErrEngineFailure = errors.New("engine failure")

// ErrDriveTimeout is returned when a drive exceeds the configured deadline.
var ErrDriveTimeout = errors.New("drive timeout")

// ErrNoActiveSession is returned when a session exists but is not awaiting input.
var ErrNoActiveSession = errors.New("no active session")

// ErrSessionDegraded is returned when a session was left in an undefined state by a
// previous engine fault and can no longer be driven.
var ErrSessionDegraded = errors.New("session degraded")

// SessionError annotates an error with the session it happened on and the last
// status known to the registry.
type SessionError struct {
	SessionID string
	Status    Status
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %q (%s): %v", e.SessionID, e.Status, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// StatusOf extracts the last known session status from an error chain.
// It returns StatusUnknown when the error carries no session annotation.
func StatusOf(err error) Status {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusUnknown
}
