package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeProcessDocument runs the processing pipeline for one document
	TaskTypeProcessDocument TaskType = "process_document"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// OwnerID is the user the task acts for
	OwnerID string `json:"owner_id"`

	// DedupKey collapses duplicate submissions while a task is in flight.
	// For process_document it is the document ID.
	DedupKey string `json:"dedup_key,omitempty"`

	// Payload contains task-specific data
	// For process_document: {"document_id": "..."}
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum attempt count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed tasks)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, ownerID string, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		OwnerID:      ownerID,
		Payload:      payload,
		Status:       TaskStatusPending,
		Priority:     0,
		Attempts:     0,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewProcessDocumentTask creates a pipeline task for a document.
// Pipeline runs are never retried automatically, so one attempt is allowed.
func NewProcessDocumentTask(ownerID, documentID string) *Task {
	task := NewTask(TaskTypeProcessDocument, ownerID, map[string]string{
		"document_id": documentID,
	})
	task.MaxAttempts = 1
	task.DedupKey = documentID
	return task
}

// DocumentID extracts the document_id from the payload
func (t *Task) DocumentID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["document_id"]
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && time.Now().After(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// Exponential backoff: 1s, 2s, 4s, 8s, etc.
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}
