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
	"golang.org/x/sync/errgroup"
)

// Ensure DocumentPipeline implements DocumentProcessor
var _ driving.DocumentProcessor = (*DocumentPipeline)(nil)

// SimilarContextSize is how many similar documents are given to the analysis model
const SimilarContextSize = 3

// RunLockName is the distributed lock held for the duration of a run
func RunLockName(documentID string) string {
	return "document-run:" + documentID
}

// PipelineTimeouts bounds each external call of a run.
type PipelineTimeouts struct {
	Storage   time.Duration
	Extract   time.Duration
	Embedding time.Duration
	Vector    time.Duration
	Analysis  time.Duration
	Store     time.Duration
}

// DefaultPipelineTimeouts returns the timeouts used when none are configured.
func DefaultPipelineTimeouts() PipelineTimeouts {
	return PipelineTimeouts{
		Storage:   30 * time.Second,
		Extract:   60 * time.Second,
		Embedding: 30 * time.Second,
		Vector:    15 * time.Second,
		Analysis:  120 * time.Second,
		Store:     15 * time.Second,
	}
}

// RunBudget is the longest a run can take, used as the run lock TTL.
func (t PipelineTimeouts) RunBudget() time.Duration {
	// storage, extract, two concurrent vector steps, analysis, two vector
	// writes and three store writes
	return t.Storage + t.Extract + 3*(t.Embedding+t.Vector) + t.Analysis + 3*t.Store
}

func (t PipelineTimeouts) withDefaults() PipelineTimeouts {
	d := DefaultPipelineTimeouts()
	if t.Storage <= 0 {
		t.Storage = d.Storage
	}
	if t.Extract <= 0 {
		t.Extract = d.Extract
	}
	if t.Embedding <= 0 {
		t.Embedding = d.Embedding
	}
	if t.Vector <= 0 {
		t.Vector = d.Vector
	}
	if t.Analysis <= 0 {
		t.Analysis = d.Analysis
	}
	if t.Store <= 0 {
		t.Store = d.Store
	}
	return t
}

// DocumentPipeline takes one document from PENDING to COMPLETED or FAILED:
//  1. Claim the document (PENDING → PROCESSING)
//  2. Load the document record
//  3. Read the blob and extract text
//  4. Detect the document type
//  5. Store the document vector (best-effort, concurrent with 6)
//  6. Retrieve similar documents (best-effort)
//  7. Analyze
//  8. Persist the analysis
//  9. Store clause vectors (best-effort)
//  10. Mark the document vector analyzed (best-effort)
//  11. Mark the document COMPLETED
type DocumentPipeline struct {
	store     driven.DocumentStore
	blobs     driven.BlobStorage
	extractor driven.TextExtractor
	lock      driven.DistributedLock
	retriever *ContextRetriever
	indexer   *Indexer
	engine    *AnalysisEngine
	timeouts  PipelineTimeouts
	logger    *slog.Logger
}

// DocumentPipelineConfig holds dependencies for DocumentPipeline.
type DocumentPipelineConfig struct {
	Store     driven.DocumentStore
	Blobs     driven.BlobStorage
	Extractor driven.TextExtractor
	// Lock is optional; the conditional PENDING → PROCESSING write alone
	// already prevents two runs from owning a document.
	Lock      driven.DistributedLock
	Retriever *ContextRetriever
	Indexer   *Indexer
	Engine    *AnalysisEngine
	Timeouts  PipelineTimeouts
	Logger    *slog.Logger
}

// NewDocumentPipeline creates a new document pipeline.
func NewDocumentPipeline(cfg DocumentPipelineConfig) *DocumentPipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentPipeline{
		store:     cfg.Store,
		blobs:     cfg.Blobs,
		extractor: cfg.Extractor,
		lock:      cfg.Lock,
		retriever: cfg.Retriever,
		indexer:   cfg.Indexer,
		engine:    cfg.Engine,
		timeouts:  cfg.Timeouts.withDefaults(),
		logger:    logger,
	}
}

// Process runs the pipeline for one document. It returns domain.ErrRunInProgress
// or domain.ErrStatusConflict when another run owns the document; the document
// is not touched in that case. Once the document is PROCESSING, any error
// leaves it FAILED.
func (p *DocumentPipeline) Process(ctx context.Context, documentID string) (err error) {
	logger := p.logger.With("document_id", documentID)
	start := time.Now()

	if p.lock != nil {
		name := RunLockName(documentID)
		token, acquired, lerr := p.lock.Acquire(ctx, name, p.timeouts.RunBudget())
		if lerr != nil {
			return fmt.Errorf("acquire run lock: %w", lerr)
		}
		if !acquired {
			logger.Info("run already in progress, skipping")
			return domain.ErrRunInProgress
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeouts.Store)
			defer cancel()
			if rerr := p.lock.Release(releaseCtx, name, token); rerr != nil {
				logger.Warn("failed to release run lock", "error", rerr)
			}
		}()
	}

	// Step 1: claim the document
	if err := p.transition(ctx, documentID, domain.DocumentStatusPending, domain.DocumentStatusProcessing); err != nil {
		switch {
		case errors.Is(err, domain.ErrStatusConflict):
			logger.Info("document not pending, skipping")
			return err
		case errors.Is(err, domain.ErrNotFound):
			logger.Error("document not found")
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, documentID)
		default:
			return fmt.Errorf("claim document: %w", err)
		}
	}
	logger.Info("document processing started")

	completed, analysisStored := false, false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		if err == nil || completed {
			return
		}
		if analysisStored {
			p.removeAnalysis(ctx, documentID, logger)
		}
		p.markFailed(ctx, documentID, logger, err)
	}()

	// Step 2: load the record
	doc, err := p.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	// Step 3: read and extract
	text, err := p.extractText(ctx, doc)
	if err != nil {
		return err
	}

	// Step 4: classify
	documentType := domain.DetectDocumentType(text)
	logger.Info("text extracted", "document_type", documentType, "chars", len(text))

	// Steps 5 and 6 run concurrently and never fail the run
	var similar []domain.VectorMatch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.runBestEffort(gctx, logger, "store document vector", p.timeouts.Embedding+p.timeouts.Vector, func(ctx context.Context) error {
			return p.indexer.StoreDocument(ctx, doc, text, documentType)
		})
		return nil
	})
	g.Go(func() error {
		p.runBestEffort(gctx, logger, "retrieve similar documents", p.timeouts.Embedding+p.timeouts.Vector, func(ctx context.Context) error {
			similar = p.retriever.FindSimilar(ctx, text, doc.OwnerID, SimilarContextSize, doc.ID)
			return nil
		})
		return nil
	})
	_ = g.Wait()
	if similar == nil {
		similar = []domain.VectorMatch{}
	}

	// Step 7: analyze
	analysis, err := p.engine.Analyze(ctx, text, similar)
	if errors.Is(err, domain.ErrAnalysisUnavailable) {
		logger.Warn("analysis model not configured, using fallback analysis")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	// Step 8: persist
	stored, err := p.persistAnalysis(ctx, documentID, analysis)
	if err != nil {
		return err
	}
	analysisStored = true
	logger.Info("analysis stored", "analysis_id", stored.ID, "risk_score", stored.RiskScore, "similar", len(similar))

	// Steps 9 and 10
	if len(stored.Clauses) > 0 {
		p.runBestEffort(ctx, logger, "store clause vectors", p.timeouts.Embedding+p.timeouts.Vector, func(ctx context.Context) error {
			return p.indexer.StoreClauses(ctx, doc, stored.Clauses)
		})
	}
	p.runBestEffort(ctx, logger, "update document vector metadata", p.timeouts.Vector, func(ctx context.Context) error {
		return p.indexer.MarkAnalyzed(ctx, documentID, stored)
	})

	// Step 11: complete
	if err := p.complete(ctx, documentID, logger); err != nil {
		return err
	}
	completed = true

	logger.Info("document processing completed", "duration", time.Since(start))
	return nil
}

func (p *DocumentPipeline) transition(ctx context.Context, id string, from, to domain.DocumentStatus) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Store)
	defer cancel()
	return p.store.TransitionStatus(ctx, id, from, to)
}

func (p *DocumentPipeline) loadDocument(ctx context.Context, id string) (*domain.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Store)
	defer cancel()

	doc, err := p.store.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
	}
	return doc, nil
}

func (p *DocumentPipeline) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	readCtx, cancel := context.WithTimeout(ctx, p.timeouts.Storage)
	data, err := p.blobs.ReadBytes(readCtx, doc.StorageKey)
	cancel()
	if err != nil {
		return "", fmt.Errorf("read document file: %w", err)
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.timeouts.Extract)
	extracted, err := p.extractor.Extract(extractCtx, data, doc.MimeType)
	cancel()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if extracted.IsBlank() {
		return "", domain.ErrNoTextExtracted
	}
	return extracted.Text, nil
}

func (p *DocumentPipeline) persistAnalysis(ctx context.Context, documentID string, analysis *domain.Analysis) (*domain.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Store)
	defer cancel()

	stored, err := p.store.CreateAnalysis(ctx, documentID, analysis)
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}
	return stored, nil
}

// complete writes COMPLETED. A failed write is accepted when the document
// turns out to be COMPLETED anyway.
func (p *DocumentPipeline) complete(ctx context.Context, documentID string, logger *slog.Logger) error {
	err := p.transition(ctx, documentID, domain.DocumentStatusProcessing, domain.DocumentStatusCompleted)
	if err == nil {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeouts.Store)
	defer cancel()

	if doc, gerr := p.store.GetDocument(checkCtx, documentID); gerr == nil && doc != nil && doc.Status == domain.DocumentStatusCompleted {
		logger.Warn("completion write reported an error but the document is completed", "error", err)
		return nil
	}
	return fmt.Errorf("%w: mark completed: %w", domain.ErrPersistenceFailed, err)
}

// removeAnalysis undoes step 8 so a FAILED document never keeps an analysis.
func (p *DocumentPipeline) removeAnalysis(ctx context.Context, documentID string, logger *slog.Logger) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeouts.Store)
	defer cancel()

	if err := p.store.DeleteAnalysis(delCtx, documentID); err != nil {
		logger.Error("CRITICAL: failed to remove analysis of failed run", "error", err)
	}
}

// markFailed performs the single FAILED write of a run. It uses a fresh
// context so an expired run context cannot block it.
func (p *DocumentPipeline) markFailed(ctx context.Context, documentID string, logger *slog.Logger, cause error) {
	logger.Error("document processing failed", "error", cause, "run_fatal", domain.IsRunFatal(cause))

	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeouts.Store)
	defer cancel()

	err := p.store.TransitionStatus(failCtx, documentID, domain.DocumentStatusProcessing, domain.DocumentStatusFailed)
	switch {
	case err == nil:
		logger.Info("document marked failed")
	case errors.Is(err, domain.ErrStatusConflict):
		logger.Warn("document already left PROCESSING, not marking failed")
	default:
		logger.Error("CRITICAL: failed to mark document failed", "error", err, "cause", cause)
	}
}

// runBestEffort runs fn under its own timeout. Errors and panics are logged
// and never reach the caller.
func (p *DocumentPipeline) runBestEffort(ctx context.Context, logger *slog.Logger, name string, timeout time.Duration, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("best-effort step panicked", "step", name, "panic", r)
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := fn(ctx); err != nil {
		logger.Warn("best-effort step failed", "step", name, "error", err)
	}
}
