package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalManager ties input reads to OS interrupts and mitigates the race where
// Ctrl+C surfaces as an input error slightly before the signal is delivered.
type SignalManager struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSignalManager creates a manager listening for SIGINT and SIGTERM on behalf of parent.
func NewSignalManager(parent context.Context) *SignalManager {
	sm := &SignalManager{}
	sm.ctx, sm.cancel = signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return sm
}

// Context is cancelled once a signal arrives or the parent is done.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Stop permanently stops the signal listener.
func (sm *SignalManager) Stop() {
	sm.cancel()
}

// Interrupted waits briefly for a signal to follow an input error and reports
// whether the context ended.
func (sm *SignalManager) Interrupted() bool {
	if sm.ctx.Err() == nil {
		select {
		case <-sm.ctx.Done():
		case <-time.After(100 * time.Millisecond):
		}
	}
	return sm.ctx.Err() != nil
}
