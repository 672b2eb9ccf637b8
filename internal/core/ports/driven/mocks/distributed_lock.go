package mocks

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MockDistributedLock is an in-memory lease lock. Leases expire by wall clock.
type MockDistributedLock struct {
	mu     sync.Mutex
	leases map[string]lease
	seq    int

	// Acquisitions counts successful Acquire calls per name
	Acquisitions map[string]int

	// Optional error injection
	AcquireErr error
	ReleaseErr error
	PingErr    error
}

type lease struct {
	token   string
	expires time.Time
}

// NewMockDistributedLock creates an empty lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		leases:       make(map[string]lease),
		Acquisitions: make(map[string]int),
	}
}

// Acquire takes the lease unless an unexpired one exists.
func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AcquireErr != nil {
		return "", false, m.AcquireErr
	}
	if l, ok := m.leases[name]; ok && time.Now().Before(l.expires) {
		return "", false, nil
	}

	m.seq++
	token := "lease-" + strconv.Itoa(m.seq)
	m.leases[name] = lease{token: token, expires: time.Now().Add(ttl)}
	m.Acquisitions[name]++
	return token, true, nil
}

// Release drops the lease if token still matches.
func (m *MockDistributedLock) Release(ctx context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReleaseErr != nil {
		return m.ReleaseErr
	}
	if l, ok := m.leases[name]; ok && l.token == token {
		delete(m.leases, name)
	}
	return nil
}

// Ping returns PingErr.
func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return m.PingErr
}

// IsHeld reports whether an unexpired lease exists (for test assertions).
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[name]
	return ok && time.Now().Before(l.expires)
}

// SetLockHeld installs a lease owned by someone else (for test setup).
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leases[name] = lease{token: "external", expires: time.Now().Add(ttl)}
}
