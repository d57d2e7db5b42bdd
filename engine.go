// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package hybridrag is a hybrid retrieval engine for document question
// answering.
//
// An Engine stores ingested documents as overlapping chunks, indexes every
// chunk twice (BM25 keyword statistics and an embedding vector), and answers
// queries with citations ranked by the min-max normalized fusion of both
// indices. Queries may cover the whole corpus, one upload session, or a set
// of named documents.
//
// The Engine persists to badger and rebuilds its in-memory indices when it
// is opened:
//
//	engine, err := hybridrag.Open("./corpus_db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	pipeline, err := engine.NewIngestionPipeline(embedder)
//	receipt, err := pipeline.Ingest(ctx, "", &core.DocumentInput{Filename: "paper.pdf", Pages: pages})
//
//	retriever, err := engine.NewRetriever(embedder)
//	result, err := retriever.Retrieve(ctx, "What is attention?")
package hybridrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/hybridrag/chunking"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/dense"
	"github.com/poiesic/hybridrag/search"
	"github.com/poiesic/hybridrag/session"
	"github.com/poiesic/hybridrag/sparse"
	"github.com/poiesic/hybridrag/storage"
	"github.com/poiesic/hybridrag/storage/badger"
)

// loadBatchSize is the number of chunks read per scan while rebuilding the
// indices.
const loadBatchSize = 1000

// ErrEngineClosed is returned by operations on a closed Engine.
var ErrEngineClosed = errors.New("engine is closed")

// Engine owns the corpus: storage, both indices and the session registry.
// It is safe for concurrent use.
type Engine struct {
	// mu guards the indices and registry as one unit. Queries hold the read
	// lock; commits, clears and index rebuilds hold the write lock.
	mu sync.RWMutex
	// commitMu serializes every operation that assigns IDs or writes storage.
	commitMu sync.Mutex

	store    storage.Store
	chunker  *chunking.Chunker
	sparse   *sparse.Index
	dense    *dense.Index
	registry *session.Registry
	searcher *search.Searcher
	config   *Config
	closed   bool

	baseLogger *slog.Logger
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	config *Config
	logger *slog.Logger
}

// WithConfig sets the engine configuration.
// Default is DefaultConfig().
func WithConfig(cfg *Config) Option {
	return func(o *engineOptions) {
		o.config = cfg
	}
}

// WithLogger sets a custom logger for the engine and all of its components.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

func applyOptions(opts []Option) *engineOptions {
	options := &engineOptions{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.config == nil {
		options.config = DefaultConfig()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	return options
}

// Open opens or creates the corpus stored at filePath.
func Open(filePath string, opts ...Option) (*Engine, error) {
	return open(filePath, false, opts)
}

// OpenInMemory creates an engine whose corpus lives only in memory.
func OpenInMemory(opts ...Option) (*Engine, error) {
	return open("", true, opts)
}

func open(filePath string, inMemory bool, opts []Option) (*Engine, error) {
	options := applyOptions(opts)
	if err := options.config.Validate(); err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(filePath, inMemory, badger.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}

	store, err := badger.NewStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	engine, err := NewEngine(store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return engine, nil
}

// NewEngine builds an engine over an already opened store and loads the
// stored corpus into memory. The engine takes ownership of store.
func NewEngine(store storage.Store, opts ...Option) (*Engine, error) {
	options := applyOptions(opts)
	cfg := options.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chunker, err := chunking.New(cfg.Chunking)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:    store,
		chunker:  chunker,
		registry: session.NewRegistry(),
		config:   cfg,

		baseLogger: options.logger,
		logger:     options.logger.With("component", "engine"),
	}
	e.sparse, err = e.newSparseIndex(options.logger)
	if err != nil {
		return nil, err
	}
	e.dense, err = dense.New(
		dense.WithMinSimilarity(cfg.Dense.MinSimilarity),
		dense.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}
	e.searcher, err = search.NewSearcher(e.sparse, e.dense, e.registry, store,
		search.WithCandidateMultiplier(cfg.Query.CandidateMultiplier),
		search.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}

	if err := e.load(context.Background()); err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	return e, nil
}

func (e *Engine) newSparseIndex(logger *slog.Logger) (*sparse.Index, error) {
	opts := []sparse.Option{
		sparse.WithK1(e.config.BM25.K1),
		sparse.WithB(e.config.BM25.B),
		sparse.WithLogger(logger),
	}
	if e.config.BM25.StopWords != nil {
		opts = append(opts, sparse.WithStopWords(e.config.BM25.StopWords))
	}
	return sparse.New(opts...)
}

// load rebuilds the indices and the session registry from storage. Chunks
// whose document record is missing were left by an interrupted commit; they
// are skipped and deleted.
func (e *Engine) load(ctx context.Context) error {
	var cursor core.ID
	var orphans []core.ID
	loaded := 0
	for {
		chunks, err := e.store.ScanChunks(ctx, cursor, loadBatchSize)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			break
		}
		cursor = chunks[len(chunks)-1].ID

		known, err := e.storedDocuments(ctx, chunks)
		if err != nil {
			return err
		}
		ids := make([]core.ID, 0, len(chunks))
		for _, c := range chunks {
			if known.Contains(c.DocumentID) {
				ids = append(ids, c.ID)
			} else {
				orphans = append(orphans, c.ID)
			}
		}
		vectors, err := e.store.GetVectors(ctx, ids...)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			if !known.Contains(c.DocumentID) {
				continue
			}
			vector, ok := vectors[c.ID]
			if !ok {
				e.logger.Warn("stored chunk has no vector, not indexed", "chunkID", c.ID)
				continue
			}
			if err := e.dense.Insert(c.ID, vector); err != nil {
				return fmt.Errorf("chunk %d: %w", c.ID, err)
			}
			e.sparse.Insert(c.ID, c.Text)
			loaded++
		}
	}

	if len(orphans) > 0 {
		e.logger.Warn("removing chunks of an interrupted commit", "chunks", len(orphans))
		if err := e.store.DeleteChunks(ctx, orphans...); err != nil {
			return fmt.Errorf("remove orphaned chunks: %w", err)
		}
	}

	sessions, err := e.store.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		e.registry.Restore(s)
	}

	e.logger.Info("corpus loaded", "chunks", loaded, "sessions", len(sessions), "dimensions", e.dense.Dimensions())
	return nil
}

// storedDocuments returns the IDs of the documents of chunks that exist in
// storage.
func (e *Engine) storedDocuments(ctx context.Context, chunks []*core.Chunk) (core.IDSet, error) {
	wanted := make(core.IDSet)
	for _, c := range chunks {
		wanted[c.DocumentID] = struct{}{}
	}
	docs, err := e.store.GetDocuments(ctx, wanted.Sorted()...)
	if err != nil {
		return nil, err
	}
	known := make(core.IDSet, len(docs))
	for _, d := range docs {
		known[d.ID] = struct{}{}
	}
	return known, nil
}

// Config returns the engine's configuration. Callers must not modify it.
func (e *Engine) Config() *Config {
	return e.config
}

// NewSessionID mints a new upload session id.
func (e *Engine) NewSessionID() string {
	return uuid.NewString()
}

// Close releases the underlying store. It is safe to call more than once.
func (e *Engine) Close() error {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing store", "err", err)
		return err
	}
	return nil
}

// checkOpen must be called with mu or commitMu held.
func (e *Engine) checkOpen() error {
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}
