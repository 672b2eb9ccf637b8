package driven

import (
	"context"
	"time"
)

// DistributedLock grants short-lived named leases across worker instances.
// The pipeline holds one lease per document for the duration of a run.
type DistributedLock interface {
	// Acquire takes the lease on name for ttl. acquired is false when another
	// holder has an unexpired lease. The returned token identifies this lease.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, acquired bool, err error)

	// Release drops the lease only if it is still the one identified by token.
	// An expired or taken-over lease is left alone and is not an error.
	Release(ctx context.Context, name, token string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
