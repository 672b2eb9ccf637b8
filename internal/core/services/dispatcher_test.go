package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_EnqueuesPendingDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := env.addDocument(t, "user-1", ndaText, domain.DocumentStatusPending)

	require.NoError(t, env.dispatcher.SubmitForProcessing(context.Background(), doc.ID))

	tasks := env.queue.Enqueued()
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskTypeProcessDocument, tasks[0].Type)
	assert.Equal(t, doc.ID, tasks[0].DocumentID())
	assert.Equal(t, doc.ID, tasks[0].DedupKey)
	assert.Equal(t, "user-1", tasks[0].OwnerID)
	assert.Equal(t, 1, tasks[0].MaxAttempts)
}

func TestDispatcher_DeduplicatesRepeatedSubmissions(t *testing.T) {
	env := newTestEnv(t)
	doc := env.addDocument(t, "user-1", ndaText, domain.DocumentStatusPending)

	require.NoError(t, env.dispatcher.SubmitForProcessing(context.Background(), doc.ID))
	require.NoError(t, env.dispatcher.SubmitForProcessing(context.Background(), doc.ID))

	assert.Len(t, env.queue.Enqueued(), 1)
}

func TestDispatcher_IgnoresActiveAndCompletedDocuments(t *testing.T) {
	for _, status := range []domain.DocumentStatus{
		domain.DocumentStatusProcessing,
		domain.DocumentStatusCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			doc := env.addDocument(t, "user-1", ndaText, status)

			require.NoError(t, env.dispatcher.SubmitForProcessing(context.Background(), doc.ID))
			assert.Empty(t, env.queue.Enqueued())
			assert.Equal(t, status, env.store.Status(doc.ID))
		})
	}
}

func TestDispatcher_ResetsFailedDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := env.addDocument(t, "user-1", ndaText, domain.DocumentStatusFailed)

	require.NoError(t, env.dispatcher.SubmitForProcessing(context.Background(), doc.ID))

	assert.Equal(t, domain.DocumentStatusPending, env.store.Status(doc.ID))
	require.Len(t, env.queue.Enqueued(), 1)

	// the reset document runs through the pipeline again
	require.NoError(t, env.pipeline.Process(context.Background(), doc.ID))
	assert.Equal(t, domain.DocumentStatusCompleted, env.store.Status(doc.ID))
}

func TestDispatcher_ResetWaitsForPreviousTaskToLeaveQueue(t *testing.T) {
	env := newTestEnv(t)
	doc := env.addDocument(t, "user-1", ndaText, domain.DocumentStatusPending)
	require.NoError(t, env.dispatcher.SubmitForProcessing(context.Background(), doc.ID))

	// worker has taken the task and written FAILED but not yet nacked it
	previous, err := env.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.NoError(t, env.store.UpdateDocumentStatus(context.Background(), doc.ID, domain.DocumentStatusFailed))

	dispatcher := NewPipelineDispatcher(PipelineDispatcherConfig{
		Store:           env.store,
		Queue:           env.queue,
		RequeueAttempts: 50,
		RequeueDelay:    5 * time.Millisecond,
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = env.queue.Nack(context.Background(), previous.ID, "extraction failed")
	}()

	require.NoError(t, dispatcher.SubmitForProcessing(context.Background(), doc.ID))

	tasks := env.queue.Enqueued()
	require.Len(t, tasks, 2)
	var requeued *domain.Task
	for _, task := range tasks {
		if task.ID != previous.ID {
			requeued = task
		}
	}
	require.NotNil(t, requeued)
	assert.Equal(t, domain.TaskStatusPending, requeued.Status)
	assert.Equal(t, doc.ID, requeued.DocumentID())
	assert.Equal(t, domain.DocumentStatusPending, env.store.Status(doc.ID))
}

func TestDispatcher_ResetGivesUpWhilePreviousTaskInFlight(t *testing.T) {
	env := newTestEnv(t)
	doc := env.addDocument(t, "user-1", ndaText, domain.DocumentStatusPending)
	require.NoError(t, env.dispatcher.SubmitForProcessing(context.Background(), doc.ID))
	_, err := env.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.NoError(t, env.store.UpdateDocumentStatus(context.Background(), doc.ID, domain.DocumentStatusFailed))

	dispatcher := NewPipelineDispatcher(PipelineDispatcherConfig{
		Store:           env.store,
		Queue:           env.queue,
		RequeueAttempts: 3,
		RequeueDelay:    time.Millisecond,
	})

	err = dispatcher.SubmitForProcessing(context.Background(), doc.ID)
	require.ErrorIs(t, err, domain.ErrTaskDeduplicated)
	assert.Len(t, env.queue.Enqueued(), 1)
	assert.Equal(t, domain.DocumentStatusPending, env.store.Status(doc.ID))
}

func TestDispatcher_UnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	err := env.dispatcher.SubmitForProcessing(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.Empty(t, env.queue.Enqueued())
}

func TestDispatcher_EnqueueFailure(t *testing.T) {
	env := newTestEnv(t)
	doc := env.addDocument(t, "user-1", ndaText, domain.DocumentStatusPending)
	env.queue.EnqueueErr = errors.New("redis down")

	err := env.dispatcher.SubmitForProcessing(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Equal(t, domain.DocumentStatusPending, env.store.Status(doc.ID))
}
