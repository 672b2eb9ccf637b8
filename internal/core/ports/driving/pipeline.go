package driving

import "context"

// PipelineService starts document processing runs
type PipelineService interface {
	// SubmitForProcessing schedules a run and returns without waiting for it.
	// PROCESSING and COMPLETED documents are left alone; FAILED documents are
	// reset to PENDING first.
	SubmitForProcessing(ctx context.Context, documentID string) error
}

// DocumentProcessor executes one pipeline run synchronously
type DocumentProcessor interface {
	// Process drives a document from PENDING to a terminal status
	Process(ctx context.Context, documentID string) error
}
