package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a previously acquired distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates state-key access across replicas. The
// in-process session manager already serializes runs within one
// process; a DistributedLocker extends the same guarantee to a fleet
// sharing a Redis store.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired, the context is
	// canceled, or the attempt times out. The returned UnlockFunc must
	// be called to release the lock; ttl bounds how long a crashed
	// holder can wedge the key.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
