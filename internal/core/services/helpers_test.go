package services

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/lexcheck/internal/runtime"
	"github.com/stretchr/testify/require"
)

const validAnalysisJSON = `{
  "riskScore": 72,
  "overallSummary": "One-sided NDA with broad confidentiality obligations.",
  "plainEnglish": "You cannot share anything you learn, for five years.",
  "keyTerms": ["Confidential Information", "Term"],
  "riskFactors": [
    {"factor": "Unlimited liability", "severity": "HIGH", "explanation": "No cap on damages."},
    {"factor": "Long term", "severity": "medium", "explanation": "Five year obligation."}
  ],
  "recommendations": [
    {"category": "Liability", "suggestion": "Negotiate a liability cap.", "priority": "HIGH"}
  ],
  "clauses": [
    {"type": "CONFIDENTIALITY", "content": "The Recipient shall hold all Confidential Information in strict confidence.", "riskLevel": "HIGH", "explanation": "Broad scope.", "suggestions": ["Narrow the definition"], "position": {"page": 1, "section": "2.1"}},
    {"type": "WARRANTY", "content": "The Discloser makes no warranty.", "riskLevel": "LOW", "explanation": "Standard.", "suggestions": []}
  ]
}`

const ndaText = "MUTUAL NON-DISCLOSURE AGREEMENT\nThe Recipient shall hold all Confidential Information in strict confidence."

// testEnv wires a pipeline, dispatcher and document service over in-memory mocks.
type testEnv struct {
	store     *mocks.MockDocumentStore
	blobs     *mocks.MockBlobStorage
	extractor *mocks.MockTextExtractor
	lock      *mocks.MockDistributedLock
	queue     *mocks.MockTaskQueue
	embedding *mocks.MockEmbeddingService
	llm       *mocks.MockLLMService
	index     *mocks.MockVectorIndex
	services  *runtime.Services

	retriever  *ContextRetriever
	indexer    *Indexer
	engine     *AnalysisEngine
	pipeline   *DocumentPipeline
	dispatcher *PipelineDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := buildTestEnv()
	t.Cleanup(func() { _ = env.services.Close() })
	return env
}

func buildTestEnv() *testEnv {
	env := &testEnv{
		store:     mocks.NewMockDocumentStore(),
		blobs:     mocks.NewMockBlobStorage(),
		extractor: mocks.NewMockTextExtractor(),
		lock:      mocks.NewMockDistributedLock(),
		queue:     mocks.NewMockTaskQueue(),
		embedding: mocks.NewMockEmbeddingService(),
		llm:       mocks.NewMockLLMService(validAnalysisJSON),
		index:     mocks.NewMockVectorIndex(),
	}

	env.services = runtime.NewServices(domain.NewRuntimeConfig("memory", "memory", "memory"))
	env.services.SetEmbeddingService(env.embedding)
	env.services.SetLLMService(env.llm)
	env.services.SetVectorIndex(env.index)

	env.retriever = NewContextRetriever(ContextRetrieverConfig{Services: env.services, Timeout: time.Second})
	env.indexer = NewIndexer(env.services)
	env.engine = NewAnalysisEngine(AnalysisEngineConfig{Services: env.services, Timeout: time.Second})
	env.pipeline = NewDocumentPipeline(DocumentPipelineConfig{
		Store:     env.store,
		Blobs:     env.blobs,
		Extractor: env.extractor,
		Lock:      env.lock,
		Retriever: env.retriever,
		Indexer:   env.indexer,
		Engine:    env.engine,
		Timeouts: PipelineTimeouts{
			Storage:   time.Second,
			Extract:   time.Second,
			Embedding: time.Second,
			Vector:    time.Second,
			Analysis:  time.Second,
			Store:     time.Second,
		},
	})
	env.dispatcher = NewPipelineDispatcher(PipelineDispatcherConfig{Store: env.store, Queue: env.queue})
	return env
}

// addDocument stores a document in status with text as its file contents.
func (e *testEnv) addDocument(t *testing.T, owner, text string, status domain.DocumentStatus) *domain.Document {
	t.Helper()
	doc := domain.NewDocument(owner, "", "nda.pdf", domain.MimeTypePDF, int64(len(text)))
	doc.Status = status
	e.blobs.Put(doc.StorageKey, []byte(text))
	require.NoError(t, e.store.CreateDocument(context.Background(), doc))
	return doc
}

func authFor(userID string) *domain.AuthContext {
	return &domain.AuthContext{UserID: userID, Role: domain.RoleMember}
}
