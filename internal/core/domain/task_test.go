package domain

import (
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" {
		t.Error("expected non-empty ID")
	}
	if id2 == "" {
		t.Error("expected non-empty ID")
	}
	if id1 == id2 {
		t.Error("expected unique IDs")
	}
	// Base64 URL encoding of 16 bytes = 22 chars
	if len(id1) != 22 {
		t.Errorf("expected ID length 22, got %d", len(id1))
	}
}

func TestNewTask(t *testing.T) {
	ownerID := "user-123"
	payload := map[string]string{"key": "value"}

	task := NewTask(TaskTypeProcessDocument, ownerID, payload)

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeProcessDocument {
		t.Errorf("expected type %s, got %s", TaskTypeProcessDocument, task.Type)
	}
	if task.OwnerID != ownerID {
		t.Errorf("expected owner ID %s, got %s", ownerID, task.OwnerID)
	}
	if task.Payload["key"] != "value" {
		t.Error("expected payload to be set")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Priority != 0 {
		t.Errorf("expected priority 0, got %d", task.Priority)
	}
	if task.Attempts != 0 {
		t.Errorf("expected attempts 0, got %d", task.Attempts)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
	if task.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if task.ScheduledFor.IsZero() {
		t.Error("expected ScheduledFor to be set")
	}
}


func TestNewProcessDocumentTask(t *testing.T) {
	task := NewProcessDocumentTask("user-123", "doc-456")

	if task.Type != TaskTypeProcessDocument {
		t.Errorf("expected type %s, got %s", TaskTypeProcessDocument, task.Type)
	}
	if task.OwnerID != "user-123" {
		t.Errorf("expected owner ID user-123, got %s", task.OwnerID)
	}
	if task.DocumentID() != "doc-456" {
		t.Errorf("expected document ID doc-456, got %s", task.DocumentID())
	}
	if task.DedupKey != "doc-456" {
		t.Errorf("expected dedup key doc-456, got %s", task.DedupKey)
	}
	if task.MaxAttempts != 1 {
		t.Errorf("expected a single attempt, got %d", task.MaxAttempts)
	}

	task.MarkProcessing()
	if task.CanRetry() {
		t.Error("expected pipeline task not to be retryable after one attempt")
	}
}

func TestTask_DocumentID(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]string
		expected string
	}{
		{
			name:     "with document_id",
			payload:  map[string]string{"document_id": "doc-123"},
			expected: "doc-123",
		},
		{
			name:     "without document_id",
			payload:  map[string]string{"other": "value"},
			expected: "",
		},
		{
			name:     "nil payload",
			payload:  nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Payload: tt.payload}
			if got := task.DocumentID(); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestTask_CanRetry(t *testing.T) {
	tests := []struct {
		name        string
		attempts    int
		maxAttempts int
		expected    bool
	}{
		{"no attempts yet", 0, 3, true},
		{"one attempt", 1, 3, true},
		{"two attempts", 2, 3, true},
		{"max attempts reached", 3, 3, false},
		{"over max attempts", 4, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Attempts: tt.attempts, MaxAttempts: tt.maxAttempts}
			if got := task.CanRetry(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTask_IsReady(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name         string
		status       TaskStatus
		scheduledFor time.Time
		expected     bool
	}{
		{"pending and past scheduled", TaskStatusPending, past, true},
		{"pending and future scheduled", TaskStatusPending, future, false},
		{"processing", TaskStatusProcessing, past, false},
		{"completed", TaskStatusCompleted, past, false},
		{"failed", TaskStatusFailed, past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Status: tt.status, ScheduledFor: tt.scheduledFor}
			if got := task.IsReady(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTask_MarkProcessing(t *testing.T) {
	task := NewTask(TaskTypeProcessDocument, "user-123", nil)

	task.MarkProcessing()

	if task.Status != TaskStatusProcessing {
		t.Errorf("expected status %s, got %s", TaskStatusProcessing, task.Status)
	}
	if task.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}
	if task.Attempts != 1 {
		t.Errorf("expected attempts 1, got %d", task.Attempts)
	}
}

func TestTask_MarkCompleted(t *testing.T) {
	task := NewTask(TaskTypeProcessDocument, "user-123", nil)
	task.Error = "some error"

	task.MarkCompleted()

	if task.Status != TaskStatusCompleted {
		t.Errorf("expected status %s, got %s", TaskStatusCompleted, task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if task.Error != "" {
		t.Error("expected Error to be cleared")
	}
}

func TestTask_MarkFailed(t *testing.T) {
	task := NewTask(TaskTypeProcessDocument, "user-123", nil)
	errorMsg := "something went wrong"

	task.MarkFailed(errorMsg)

	if task.Status != TaskStatusFailed {
		t.Errorf("expected status %s, got %s", TaskStatusFailed, task.Status)
	}
	if task.Error != errorMsg {
		t.Errorf("expected error %s, got %s", errorMsg, task.Error)
	}
}

func TestTask_Retry(t *testing.T) {
	task := NewTask(TaskTypeProcessDocument, "user-123", nil)
	task.Attempts = 1
	errorMsg := "retry error"
	beforeRetry := time.Now()

	task.Retry(errorMsg)

	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Error != errorMsg {
		t.Errorf("expected error %s, got %s", errorMsg, task.Error)
	}
	// With 1 attempt, backoff should be 2^1 = 2 seconds
	expectedBackoff := 2 * time.Second
	expectedScheduledFor := beforeRetry.Add(expectedBackoff)
	if task.ScheduledFor.Before(expectedScheduledFor.Add(-time.Second)) {
		t.Errorf("expected ScheduledFor around %v, got %v", expectedScheduledFor, task.ScheduledFor)
	}
}

func TestTask_Retry_ExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempts        int
		expectedBackoff time.Duration
	}{
		{0, 1 * time.Second},  // 2^0 = 1
		{1, 2 * time.Second},  // 2^1 = 2
		{2, 4 * time.Second},  // 2^2 = 4
		{3, 8 * time.Second},  // 2^3 = 8
		{10, 5 * time.Minute}, // Capped at 5 minutes
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			task := NewTask(TaskTypeProcessDocument, "user-123", nil)
			task.Attempts = tt.attempts
			before := time.Now()

			task.Retry("error")

			expectedMin := before.Add(tt.expectedBackoff)
			expectedMax := before.Add(tt.expectedBackoff + time.Second)

			if task.ScheduledFor.Before(expectedMin) || task.ScheduledFor.After(expectedMax) {
				t.Errorf("attempts=%d: expected ScheduledFor between %v and %v, got %v",
					tt.attempts, expectedMin, expectedMax, task.ScheduledFor)
			}
		})
	}
}

