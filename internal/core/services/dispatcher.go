package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
)

// Ensure PipelineDispatcher implements PipelineService
var _ driving.PipelineService = (*PipelineDispatcher)(nil)

// Defaults for re-enqueueing a reset document whose previous task is still
// being acknowledged.
const (
	DefaultRequeueAttempts = 10
	DefaultRequeueDelay    = 200 * time.Millisecond
)

// PipelineDispatcher schedules pipeline runs on the task queue. Workers pick
// the tasks up and call DocumentPipeline.Process.
type PipelineDispatcher struct {
	store  driven.DocumentStore
	queue  driven.TaskQueue
	logger *slog.Logger

	requeueAttempts int
	requeueDelay    time.Duration
}

// PipelineDispatcherConfig holds dependencies for PipelineDispatcher.
type PipelineDispatcherConfig struct {
	Store  driven.DocumentStore
	Queue  driven.TaskQueue
	Logger *slog.Logger

	// RequeueAttempts and RequeueDelay bound how long a reset FAILED document
	// waits for its previous task to leave the queue.
	RequeueAttempts int
	RequeueDelay    time.Duration
}

// NewPipelineDispatcher creates a new dispatcher.
func NewPipelineDispatcher(cfg PipelineDispatcherConfig) *PipelineDispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.RequeueAttempts
	if attempts <= 0 {
		attempts = DefaultRequeueAttempts
	}
	delay := cfg.RequeueDelay
	if delay <= 0 {
		delay = DefaultRequeueDelay
	}
	return &PipelineDispatcher{
		store:           cfg.Store,
		queue:           cfg.Queue,
		logger:          logger,
		requeueAttempts: attempts,
		requeueDelay:    delay,
	}
}

// SubmitForProcessing enqueues a run for a PENDING document. FAILED documents
// are reset to PENDING first; PROCESSING and COMPLETED documents are left as is.
func (d *PipelineDispatcher) SubmitForProcessing(ctx context.Context, documentID string) error {
	doc, err := d.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, documentID)
	}

	logger := d.logger.With("document_id", documentID)
	task := domain.NewProcessDocumentTask(doc.OwnerID, doc.ID)

	switch doc.Status {
	case domain.DocumentStatusProcessing, domain.DocumentStatusCompleted:
		logger.Debug("document not eligible for processing", "status", doc.Status)
		return nil
	case domain.DocumentStatusFailed:
		err := d.store.TransitionStatus(ctx, documentID, domain.DocumentStatusFailed, domain.DocumentStatusPending)
		if errors.Is(err, domain.ErrStatusConflict) {
			// someone else already reset or claimed it
			return nil
		}
		if err != nil {
			return fmt.Errorf("reset failed document: %w", err)
		}
		logger.Info("failed document reset for reprocessing")

		// The failed run's task may not be nacked yet, and it still holds the
		// dedup key until it is.
		if err := d.enqueueAfterReset(ctx, task); err != nil {
			return err
		}
		logger.Info("document submitted for processing")
		return nil
	}

	err = d.queue.Enqueue(ctx, task)
	if errors.Is(err, domain.ErrTaskDeduplicated) {
		logger.Debug("document already queued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue document: %w", err)
	}
	logger.Info("document submitted for processing")
	return nil
}

// enqueueAfterReset enqueues task, retrying while an older task for the same
// document is still in flight.
func (d *PipelineDispatcher) enqueueAfterReset(ctx context.Context, task *domain.Task) error {
	for attempt := 1; ; attempt++ {
		err := d.queue.Enqueue(ctx, task)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrTaskDeduplicated) {
			return fmt.Errorf("enqueue document: %w", err)
		}
		if attempt >= d.requeueAttempts {
			d.logger.Warn("previous task still in flight, document left pending",
				"document_id", task.DocumentID(), "attempts", attempt)
			return fmt.Errorf("enqueue document: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.requeueDelay):
		}
	}
}
