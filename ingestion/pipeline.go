package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
)

// DefaultBatchSize is the number of chunk texts sent per embedding call.
const DefaultBatchSize = 32

// Corpus is the retrieval engine surface an upload is committed through.
type Corpus interface {
	// Prepare validates and chunks one document.
	Prepare(input *core.DocumentInput) (*core.PreparedDocument, error)

	// Commit stores and indexes the documents as part of sessionID in one
	// transaction.
	Commit(ctx context.Context, sessionID string, docs ...*core.PreparedDocument) (*core.IngestReceipt, error)

	// SealSession freezes the session once its upload is complete.
	SealSession(ctx context.Context, sessionID string) error

	// NewSessionID mints a fresh upload session id.
	NewSessionID() string
}

// Pipeline orchestrates the ingestion of uploaded documents.
// It embeds documents concurrently and commits each upload atomically.
type Pipeline struct {
	corpus        Corpus
	embedder      ai.Embedder
	embeddingPool *ants.Pool
	embeddingProc *embeddingProcessor
	batchSize     int
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets how many chunk texts go into one embedding call.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(corpus Corpus, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if corpus == nil {
		return nil, ErrCorpusRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		corpus:        corpus,
		embedder:      embedder,
		embeddingPool: embeddingPool,
		batchSize:     DefaultBatchSize,
		logger:        slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Create processor after options are applied (so it gets final config)
	embeddingProc, err := newEmbeddingProcessor(embedder, p.batchSize, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// Ingest chunks, embeds and commits the documents of one upload, then seals
// its session. An empty sessionID mints a new one. Nothing is committed
// unless every document was prepared and embedded successfully. When only
// sealing fails, the receipt of the committed upload is returned with an
// error wrapping ErrSessionNotSealed.
func (p *Pipeline) Ingest(ctx context.Context, sessionID string, inputs ...*core.DocumentInput) (*core.IngestReceipt, error) {
	if len(inputs) == 0 {
		return nil, ErrNoDocuments
	}
	if sessionID == "" {
		sessionID = p.corpus.NewSessionID()
	}
	logger := p.logger.With("session", sessionID)

	// Chunk every document first so bad input fails before any embedding
	prepared := make([]*core.PreparedDocument, len(inputs))
	for i, input := range inputs {
		doc, err := p.corpus.Prepare(input)
		if err != nil {
			return nil, err
		}
		prepared[i] = doc
	}

	if err := p.embedAll(ctx, prepared); err != nil {
		logger.Error("error embedding upload", "documents", len(prepared), "err", err)
		return nil, err
	}

	receipt, err := p.corpus.Commit(ctx, sessionID, prepared...)
	if err != nil {
		logger.Error("error committing upload", "err", err)
		return nil, err
	}

	// The upload is stored even when sealing fails
	if err := p.corpus.SealSession(ctx, sessionID); err != nil {
		logger.Error("error sealing session", "err", err)
		return receipt, fmt.Errorf("%w: %s: %w", ErrSessionNotSealed, sessionID, err)
	}

	logger.Info("ingested upload", "documents", len(receipt.Documents), "chunks", len(receipt.ChunkIDs))
	return receipt, nil
}

// embedAll embeds every document on the worker pool and waits for all of
// them. The first failure cancels the remaining work.
func (p *Pipeline) embedAll(ctx context.Context, docs []*core.PreparedDocument) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for _, doc := range docs {
		wg.Add(1)
		err := p.embeddingPool.Submit(func() {
			defer wg.Done()
			if err := p.embeddingProc.process(ctx, doc); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	return firstErr
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
