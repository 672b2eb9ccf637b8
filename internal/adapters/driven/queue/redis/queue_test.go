package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

func setupTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	q, err := NewQueue(client, "test-worker")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	return q, mr
}

func TestNewQueue_RequiresClient(t *testing.T) {
	if _, err := NewQueue(nil, "worker"); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestQueue_EnqueueStoresTask(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewProcessDocumentTask("user-1", "doc-1")
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil {
		t.Fatal("expected stored task")
	}
	if stored.DocumentID() != "doc-1" {
		t.Errorf("expected document doc-1, got %s", stored.DocumentID())
	}
	if stored.OwnerID != "user-1" {
		t.Errorf("expected owner user-1, got %s", stored.OwnerID)
	}
}

func TestQueue_EnqueueDeduplicatesInFlightDocument(t *testing.T) {
	q, mr := setupTestQueue(t)
	ctx := context.Background()

	first := domain.NewProcessDocumentTask("user-1", "doc-1")
	second := domain.NewProcessDocumentTask("user-1", "doc-1")

	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Enqueue(ctx, second); !errors.Is(err, domain.ErrTaskDeduplicated) {
		t.Fatalf("expected ErrTaskDeduplicated, got %v", err)
	}

	if got := mr.HGet(dedupHash, "doc-1"); got != first.ID {
		t.Errorf("expected dedup entry to point at first task, got %s", got)
	}
	dropped, err := q.GetTask(ctx, second.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != nil {
		t.Error("expected duplicate task not to be stored")
	}
}

func TestQueue_EnqueueReplacesFinishedHolder(t *testing.T) {
	q, mr := setupTestQueue(t)
	ctx := context.Background()

	first := domain.NewProcessDocumentTask("user-1", "doc-1")
	first.Status = domain.TaskStatusFailed
	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	retrigger := domain.NewProcessDocumentTask("user-1", "doc-1")
	if err := q.Enqueue(ctx, retrigger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mr.HGet(dedupHash, "doc-1"); got != retrigger.ID {
		t.Errorf("expected dedup entry to move to the new task, got %s", got)
	}
}

func TestQueue_DequeueAndAck(t *testing.T) {
	q, mr := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewProcessDocumentTask("user-1", "doc-1")
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a task")
	}
	if got.ID != task.ID {
		t.Errorf("expected task %s, got %s", task.ID, got.ID)
	}
	if got.Status != domain.TaskStatusProcessing {
		t.Errorf("expected processing status, got %s", got.Status)
	}

	if err := q.Ack(ctx, got.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acked, _ := q.GetTask(ctx, got.ID)
	if acked.Status != domain.TaskStatusCompleted {
		t.Errorf("expected completed status, got %s", acked.Status)
	}
	if mr.Exists(dedupHash) && mr.HGet(dedupHash, "doc-1") != "" {
		t.Error("expected dedup entry to be released on ack")
	}
}

func TestQueue_NackDoesNotRetryPipelineTask(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewProcessDocumentTask("user-1", "doc-1")
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil || got == nil {
		t.Fatalf("expected a task, got %v (err %v)", got, err)
	}

	if err := q.Nack(ctx, got.ID, "extraction failed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failed, _ := q.GetTask(ctx, got.ID)
	if failed.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed status, got %s", failed.Status)
	}
	if failed.Error != "extraction failed" {
		t.Errorf("expected error to be recorded, got %q", failed.Error)
	}
}

func TestQueue_Ping(t *testing.T) {
	q, _ := setupTestQueue(t)

	if err := q.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
