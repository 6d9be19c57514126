package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 5 * time.Minute

// lockEntry holds the per-session semaphore and the reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	queue   bool // Block instead of failing fast when a session is busy
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiration of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithQueueing makes Drive wait for the in-flight drive to finish instead of
// returning domain.ErrSessionBusy.
func WithQueueing(queue bool) Option {
	return func(m *Manager) {
		m.queue = queue
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST call release(sessionID) once done with the entry.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Drive runs fn while holding the single-flight lock for the session.
// With the default policy a concurrent call fails with domain.ErrSessionBusy;
// with WithQueueing it waits until the lock is free or ctx is done.
func (m *Manager) Drive(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	return m.withLock(ctx, sessionID, !m.queue, fn)
}

// WithLock executes fn while holding the lock for the session, always waiting.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	return m.withLock(ctx, sessionID, false, fn)
}

func (m *Manager) withLock(ctx context.Context, sessionID string, failFast bool, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	defer m.release(sessionID)

	if failFast {
		select {
		case entry.sem <- struct{}{}:
		default:
			return domain.ErrSessionBusy
		}
	} else {
		select {
		case entry.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer func() { <-entry.sem }()

	// Distributed Locking
	if m.locker != nil {
		var (
			unlock ports.UnlockFunc
			err    error
		)
		if failFast {
			var ok bool
			unlock, ok, err = m.locker.TryLock(ctx, sessionID, m.lockTTL)
			if err == nil && !ok {
				return domain.ErrSessionBusy
			}
		} else {
			unlock, err = m.locker.Lock(ctx, sessionID, m.lockTTL)
		}
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The drive may have outlived ctx; release with a fresh one.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.store.Load(ctx, sessionID)
}

// Create reserves a Fresh record for sessionID unless one already exists.
// It returns the stored record and whether it was created by this call.
// Callers are expected to hold the session lock.
func (m *Manager) Create(ctx context.Context, sessionID, coordinate string) (*domain.Session, bool, error) {
	existing, err := m.store.Load(ctx, sessionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, false, fmt.Errorf("failed to check session existence: %w", err)
	}

	s := domain.NewSession(sessionID, coordinate)
	s.CreatedAt = m.now().UTC()
	s.UpdatedAt = s.CreatedAt

	// Persist immediately to reserve the ID
	if err := m.store.Save(ctx, sessionID, s); err != nil {
		return nil, false, fmt.Errorf("failed to initialize session: %w", err)
	}
	m.logger.Debug("Session created", "session_id", sessionID, "coordinate", coordinate)
	return s, true, nil
}

// Save persists the session record, stamping UpdatedAt.
// Callers are expected to hold the session lock.
func (m *Manager) Save(ctx context.Context, s *domain.Session) error {
	s.UpdatedAt = m.now().UTC()
	return m.store.Save(ctx, s.ID, s)
}

// Delete removes the session from the store.
// The orchestrator never evicts sessions; this is for external supervisors.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
