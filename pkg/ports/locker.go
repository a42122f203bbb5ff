package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It allows the session manager to keep a single writer per identity across replicas.
type DistributedLocker interface {
	// Lock attempts to acquire a distributed lock for the given key (e.g., an identity).
	// It blocks until the lock is acquired or the context is canceled. The holder keeps the
	// lock until it calls the returned UnlockFunc; ttl bounds how long a crashed holder
	// blocks others. The UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
