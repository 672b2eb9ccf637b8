package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

var _ driven.TaskQueue = (*MockTaskQueue)(nil)

// MockTaskQueue is an in-memory FIFO queue with dedup keys.
type MockTaskQueue struct {
	mu      sync.Mutex
	pending []*domain.Task
	tasks   map[string]*domain.Task
	notify  chan struct{}

	EnqueueErr error
}

// NewMockTaskQueue creates an empty queue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{
		tasks:  make(map[string]*domain.Task),
		notify: make(chan struct{}, 1),
	}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	if task.DedupKey != "" {
		for _, t := range m.tasks {
			if t.DedupKey == task.DedupKey &&
				(t.Status == domain.TaskStatusPending || t.Status == domain.TaskStatusProcessing) {
				return domain.ErrTaskDeduplicated
			}
		}
	}
	m.tasks[task.ID] = task
	m.pending = append(m.pending, task)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

func (m *MockTaskQueue) Dequeue(ctx context.Context) (*domain.Task, error) {
	for {
		if task := m.pop(); task != nil {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.notify:
		}
	}
}

func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if task := m.pop(); task != nil {
		return task, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.notify:
		return m.pop(), nil
	case <-time.After(time.Duration(timeout) * time.Second):
		return nil, nil
	}
}

func (m *MockTaskQueue) pop() *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	task := m.pending[0]
	m.pending = m.pending[1:]
	task.Status = domain.TaskStatusProcessing
	task.Attempts++
	return task
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[taskID]; ok {
		t.Status = domain.TaskStatusCompleted
	}
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[taskID]; ok {
		t.Status = domain.TaskStatusFailed
		t.Error = reason
	}
	return nil
}

func (m *MockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTaskQueue) PurgeTasks(ctx context.Context, olderThan int) (int, error) {
	return 0, nil
}

func (m *MockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &driven.QueueStats{}
	for _, t := range m.tasks {
		switch t.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error {
	return nil
}

func (m *MockTaskQueue) Close() error {
	return nil
}

// Enqueued returns every task ever accepted, in no particular order
func (m *MockTaskQueue) Enqueued() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out
}
