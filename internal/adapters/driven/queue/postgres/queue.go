package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Ensure Queue implements TaskQueue
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using PostgreSQL with SKIP LOCKED for reliable task processing.
// This is the fallback queue when Redis is not available.
type Queue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewQueue creates a new PostgreSQL-backed task queue.
// Assumes the tasks table exists (see CreateTasksTableSQL).
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, pollInterval: time.Second}
}

const taskColumns = `id, type, owner_id, dedup_key, payload, status, priority,
	attempts, max_attempts, error, created_at, updated_at,
	started_at, completed_at, scheduled_for`

// Enqueue adds a task to the queue. A conflicting in-flight dedup key is
// caught by the partial unique index; the insert is skipped and
// domain.ErrTaskDeduplicated returned.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO tasks (
			id, type, owner_id, dedup_key, payload, status, priority,
			attempts, max_attempts, error, created_at, updated_at, scheduled_for
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING
	`

	res, err := q.db.ExecContext(ctx, query,
		task.ID,
		task.Type,
		task.OwnerID,
		task.DedupKey,
		payload,
		task.Status,
		task.Priority,
		task.Attempts,
		task.MaxAttempts,
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
		task.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrTaskDeduplicated
	}
	return nil
}

// Dequeue retrieves the next available task using SELECT FOR UPDATE SKIP LOCKED.
// It polls until a task is available or ctx is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	for {
		task, err := q.dequeueOnce(ctx)
		if err != nil || task != nil {
			return task, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

// DequeueWithTimeout retrieves the next task, waiting up to timeout seconds
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	for {
		task, err := q.dequeueOnce(ctx)
		if err != nil || task != nil {
			return task, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *Queue) dequeueOnce(ctx context.Context) (*domain.Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	selectQuery := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1
		  AND scheduled_for <= NOW()
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	task, err := scanTask(tx.QueryRowContext(ctx, selectQuery, domain.TaskStatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, started_at = $2, updated_at = $2, attempts = attempts + 1
		WHERE id = $3
	`, domain.TaskStatusProcessing, now, task.ID)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	task.Status = domain.TaskStatusProcessing
	task.StartedAt = &now
	task.UpdatedAt = now
	task.Attempts++
	return task, nil
}

// Ack marks a task as completed
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	now := time.Now()
	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, completed_at = $2, updated_at = $2, error = ''
		WHERE id = $3
	`, domain.TaskStatusCompleted, now, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Nack marks a task as failed, scheduling a retry only while attempts remain
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	if task.CanRetry() {
		task.Retry(reason)
		_, err = q.db.ExecContext(ctx, `
			UPDATE tasks
			SET status = $1, error = $2, updated_at = $3, scheduled_for = $4
			WHERE id = $5
		`, domain.TaskStatusPending, reason, task.UpdatedAt, task.ScheduledFor, taskID)
	} else {
		_, err = q.db.ExecContext(ctx, `
			UPDATE tasks
			SET status = $1, error = $2, updated_at = $3
			WHERE id = $4
		`, domain.TaskStatusFailed, reason, time.Now(), taskID)
	}
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := scanTask(q.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// PurgeTasks removes old completed/failed tasks
func (q *Queue) PurgeTasks(ctx context.Context, olderThanSeconds int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)

	result, err := q.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE status IN ($1, $2)
		  AND updated_at < $3
	`, domain.TaskStatusCompleted, domain.TaskStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(rows), nil
}

// Stats returns queue statistics
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}

		switch domain.TaskStatus(status) {
		case domain.TaskStatusPending:
			stats.PendingCount = count
		case domain.TaskStatusProcessing:
			stats.ProcessingCount = count
		case domain.TaskStatusCompleted:
			stats.CompletedCount = count
		case domain.TaskStatusFailed:
			stats.FailedCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}

	var age sql.NullInt64
	err = q.db.QueryRowContext(ctx, `
		SELECT EXTRACT(EPOCH FROM (NOW() - MIN(created_at)))::bigint
		FROM tasks
		WHERE status = $1
	`, domain.TaskStatusPending).Scan(&age)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query oldest age: %w", err)
	}
	if age.Valid {
		stats.OldestPendingAge = age.Int64
	}

	return stats, nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op for the Postgres queue (db connection managed externally)
func (q *Queue) Close() error {
	return nil
}

func scanTask(row *sql.Row) (*domain.Task, error) {
	var task domain.Task
	var dedupKey sql.NullString
	var payload []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.OwnerID,
		&dedupKey,
		&payload,
		&task.Status,
		&task.Priority,
		&task.Attempts,
		&task.MaxAttempts,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
		&task.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}

	task.DedupKey = dedupKey.String
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

// CreateTasksTableSQL creates the tasks table. The partial unique index keeps
// at most one in-flight task per dedup key.
const CreateTasksTableSQL = `
CREATE TABLE IF NOT EXISTS tasks (
    id VARCHAR(36) PRIMARY KEY,
    type VARCHAR(50) NOT NULL,
    owner_id VARCHAR(64) NOT NULL,
    dedup_key VARCHAR(128),
    payload JSONB DEFAULT '{}',
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    priority INTEGER NOT NULL DEFAULT 0,
    attempts INTEGER NOT NULL DEFAULT 0,
    max_attempts INTEGER NOT NULL DEFAULT 1,
    error TEXT DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    scheduled_for TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tasks_status_scheduled ON tasks (status, scheduled_for) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_tasks_owner_id ON tasks (owner_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_dedup_inflight ON tasks (dedup_key)
    WHERE dedup_key IS NOT NULL AND status IN ('pending', 'processing');
`
