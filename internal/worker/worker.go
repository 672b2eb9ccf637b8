package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
)

// Worker processes tasks from the task queue.
// It runs the document pipeline for each process_document task.
type Worker struct {
	taskQueue driven.TaskQueue
	processor driving.DocumentProcessor
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds
	purgeInterval  time.Duration
	purgeAfter     time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Processor      driving.DocumentProcessor
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again

	// PurgeInterval is how often finished tasks are purged (0 disables)
	PurgeInterval time.Duration
	// PurgeAfter is the age at which finished tasks are purged
	PurgeAfter time.Duration
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	purgeAfter := cfg.PurgeAfter
	if purgeAfter <= 0 {
		purgeAfter = 24 * time.Hour
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		processor:      cfg.Processor,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		purgeInterval:  cfg.PurgeInterval,
		purgeAfter:     purgeAfter,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	if w.purgeInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.purgeLoop(ctx)
		}()
	}

	// Start worker goroutines
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		// Dequeue a task with timeout
		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			// No task available, continue
			continue
		}

		// Process the task
		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task.
// Pipeline runs are never retried, so a failed run is nacked once and left FAILED.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "document_id", task.DocumentID())
	logger.Info("processing task")

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeProcessDocument:
		err = w.handleProcessDocument(ctx, task)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err != nil && domain.IsRunFatal(err) {
		logger.Error("task failed",
			"duration", duration,
			"error", err,
			"run_fatal", true,
		)

		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	if err != nil {
		logger.Info("task skipped", "duration", duration, "reason", err)
	} else {
		logger.Info("task completed", "duration", duration)
	}

	// Ack the task
	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleProcessDocument handles a process_document task.
func (w *Worker) handleProcessDocument(ctx context.Context, task *domain.Task) error {
	documentID := task.DocumentID()
	if documentID == "" {
		return fmt.Errorf("document_id not found in task payload")
	}
	return w.processor.Process(ctx, documentID)
}

// purgeLoop removes finished tasks older than purgeAfter.
func (w *Worker) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(w.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			purged, err := w.taskQueue.PurgeTasks(ctx, int(w.purgeAfter.Seconds()))
			if err != nil {
				w.logger.Warn("failed to purge tasks", "error", err)
				continue
			}
			if purged > 0 {
				w.logger.Info("purged finished tasks", "count", purged)
			}
		}
	}
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	// Check queue health
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
