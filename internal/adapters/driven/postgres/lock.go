package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/google/uuid"
)

// Verify interface compliance
var _ driven.DistributedLock = (*LeaseLock)(nil)

// LeaseLock implements DistributedLock with rows in the run_locks table.
//
// Session-level advisory locks are tied to one pooled connection, so a lock
// taken on one connection cannot reliably be released through another. A lease
// row is independent of the connection and expires after its TTL, which lets a
// crashed worker's document lock lapse on its own.
//
// This is the fallback when Redis is unavailable.
type LeaseLock struct {
	db *DB
}

// NewLeaseLock creates a new PostgreSQL lease lock adapter.
func NewLeaseLock(db *DB) *LeaseLock {
	return &LeaseLock{db: db}
}

// Acquire inserts the lease, or takes over an expired one.
func (l *LeaseLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := l.db.ExecContext(ctx, `
		INSERT INTO run_locks (name, owner, expires_at)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 millisecond')
		ON CONFLICT (name) DO UPDATE
			SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
			WHERE run_locks.expires_at < NOW()
	`, name, token, ttl.Milliseconds())
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if rows != 1 {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes the lease if it still carries token.
func (l *LeaseLock) Release(ctx context.Context, name, token string) error {
	if token == "" {
		return nil
	}
	_, err := l.db.ExecContext(ctx, `DELETE FROM run_locks WHERE name = $1 AND owner = $2`, name, token)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (l *LeaseLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
