package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/interlude/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPollInterval is how often Lock retries a held lock.
const DefaultPollInterval = 100 * time.Millisecond

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Locker implements ports.DistributedLocker using Redis SET NX PX.
type Locker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

var _ ports.DistributedLocker = (*Locker)(nil)

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		poll:   DefaultPollInterval,
	}
}

// WithPollInterval changes the retry interval of Lock.
func (l *Locker) WithPollInterval(d time.Duration) *Locker {
	if d > 0 {
		l.poll = d
	}
	return l
}

func (l *Locker) lockKey(key string) string {
	return l.prefix + "lock:" + key
}

// TryLock makes a single acquisition attempt.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, bool, error) {
	lockKey := l.lockKey(key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis error acquiring lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return l.release(lockKey, token), true, nil
}

// Lock polls until the lock is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		unlock, ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			return unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) release(lockKey, token string) ports.UnlockFunc {
	return func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("redis error releasing lock: %w", err)
		}
		return nil
	}
}
