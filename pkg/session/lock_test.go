package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/interlude/pkg/domain"
)

// MockStore structure
type MockStore struct{}

func (m *MockStore) Save(ctx context.Context, sessionID string, s *domain.Session) error {
	return nil
}
func (m *MockStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}
func (m *MockStore) Delete(ctx context.Context, sessionID string) error { return nil }
func (m *MockStore) List(ctx context.Context) ([]string, error)         { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Drive(ctx, sid, func(ctx context.Context) error {
			_, _, err := mgr.Create(ctx, sid, sid)
			return err
		})
		_ = mgr.Delete(ctx, sid)
	}

	lockCount := len(mgr.locks)
	t.Logf("Sessions Created: %d, Locks Leaked: %d", count, lockCount)

	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}

func TestManager_BusyReleasesEntry(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()

	inside := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = mgr.Drive(ctx, "s1", func(ctx context.Context) error {
			close(inside)
			<-done
			return nil
		})
	}()
	<-inside

	if err := mgr.Drive(ctx, "s1", func(ctx context.Context) error { return nil }); err != domain.ErrSessionBusy {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
	close(done)

	// Wait for the first drive to release its entry.
	for i := 0; i < 1000; i++ {
		mgr.mu.Lock()
		n := len(mgr.locks)
		mgr.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Errorf("lock entry leaked after busy rejection")
}
