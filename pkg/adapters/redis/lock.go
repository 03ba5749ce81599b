package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/gridswap/gridswap/pkg/ports"
)

// unlockScript deletes the lock key only when it still holds our token,
// so a lock that expired and was reacquired elsewhere is never released
// by the old holder.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Locker implements ports.DistributedLocker with SET NX and a token
// check on release.
type Locker struct {
	client *backend.Client
	prefix string
	retry  time.Duration
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLockPrefix overrides the lock key prefix.
func WithLockPrefix(prefix string) LockerOption {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// WithRetryInterval sets how often a blocked Lock call re-attempts
// acquisition.
func WithRetryInterval(interval time.Duration) LockerOption {
	return func(l *Locker) {
		l.retry = interval
	}
}

// NewLocker creates a locker over an existing client.
func NewLocker(client *backend.Client, opts ...LockerOption) *Locker {
	locker := &Locker{
		client: client,
		prefix: "gridswap:lock:",
		retry:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(locker)
	}
	return locker
}

// Lock acquires the lock for key, polling until it succeeds or ctx is
// done. The lock auto-expires after ttl if the holder never releases
// it.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	acquire := func() (bool, error) {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		return ok, nil
	}

	ok, err := acquire()
	if err != nil {
		return nil, err
	}
	if !ok {
		ticker := time.NewTicker(l.retry)
		defer ticker.Stop()
		for !ok {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("acquire lock %q: %w", key, ctx.Err())
			case <-ticker.C:
			}
			ok, err = acquire()
			if err != nil {
				return nil, err
			}
		}
	}

	unlock := func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %q: %w", key, err)
		}
		return nil
	}
	return unlock, nil
}
