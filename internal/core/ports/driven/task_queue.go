package driven

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// TaskQueue handles background task queuing and processing.
// Implementations can use Redis (preferred) or Postgres (fallback).
type TaskQueue interface {
	// Enqueue adds a task to the queue for processing.
	// A task whose DedupKey matches a task that is still pending or processing
	// is dropped, and Enqueue returns domain.ErrTaskDeduplicated.
	Enqueue(ctx context.Context, task *domain.Task) error

	// Dequeue retrieves the next available task for processing.
	// This blocks until a task is available or context is cancelled.
	Dequeue(ctx context.Context) (*domain.Task, error)

	// DequeueWithTimeout retrieves the next available task, waiting up to timeout seconds.
	// Returns nil, nil if timeout is reached with no tasks available.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack acknowledges successful completion of a task.
	Ack(ctx context.Context, taskID string) error

	// Nack indicates task processing failed.
	// The task is retried only while attempts remain, otherwise it is marked failed.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask retrieves a task by ID (for status checking).
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// PurgeTasks removes completed/failed tasks older than the given age in seconds.
	PurgeTasks(ctx context.Context, olderThan int) (int, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// QueueStats contains queue statistics
type QueueStats struct {
	PendingCount     int64 `json:"pending_count"`
	ProcessingCount  int64 `json:"processing_count"`
	CompletedCount   int64 `json:"completed_count"`
	FailedCount      int64 `json:"failed_count"`
	OldestPendingAge int64 `json:"oldest_pending_age"`
}
