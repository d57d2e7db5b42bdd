package hybridrag

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/dense"
	"github.com/poiesic/hybridrag/reembed"
	"github.com/poiesic/hybridrag/search"
)

// Documents lists every document with its chunk count, oldest first.
func (e *Engine) Documents(ctx context.Context) ([]*core.DocumentStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]*core.DocumentStats, len(docs))
	for i, d := range docs {
		stats[i] = &core.DocumentStats{Document: d, ChunkCount: d.ChunkCount}
	}
	return stats, nil
}

// SessionDocuments lists the documents uploaded in one session.
func (e *Engine) SessionDocuments(ctx context.Context, sessionID string) ([]*core.Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	if _, err := e.registry.Get(sessionID); err != nil {
		return nil, err
	}
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(docs, func(d *core.Document) bool {
		return d.SessionID != sessionID
	}), nil
}

// Sessions lists every upload session, oldest first.
func (e *Engine) Sessions() []*core.Session {
	return e.registry.List()
}

// ChunksBySource returns the chunks of every document named filename in
// insertion order. A positive page restricts the result to that page.
func (e *Engine) ChunksBySource(ctx context.Context, filename string, page int) ([]*core.Chunk, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	docs, err := e.store.FindDocumentsByFilename(ctx, filename)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	docIDs := make([]core.ID, len(docs))
	for i, d := range docs {
		docIDs[i] = d.ID
	}
	ids, err := e.store.ChunkIDsByDocument(ctx, docIDs...)
	if err != nil {
		return nil, err
	}
	chunks, err := e.store.GetChunks(ctx, ids...)
	if err != nil {
		return nil, err
	}
	if page > 0 {
		chunks = slices.DeleteFunc(chunks, func(c *core.Chunk) bool {
			return c.PageNumber != page
		})
	}
	return chunks, nil
}

// Stats summarizes the corpus.
func (e *Engine) Stats(ctx context.Context) (*core.CorpusStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := e.store.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	return &core.CorpusStats{
		Documents:       len(docs),
		Chunks:          chunks,
		Sessions:        e.registry.Len(),
		SparseSize:      e.sparse.Len(),
		DenseSize:       e.dense.Len(),
		Dimensions:      e.dense.Dimensions(),
		VocabularySize:  e.sparse.VocabularySize(),
		AverageChunkLen: e.sparse.AverageLength(),
	}, nil
}

// Clear deletes every document, chunk, vector and session. Queries running
// concurrently finish first; later queries see an empty corpus. Clearing
// also resets the dense dimensionality, so the next commit may use a
// different embedding model.
func (e *Engine) Clear(ctx context.Context) error {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return err
	}

	if err := e.store.Clear(ctx); err != nil {
		e.logger.Error("error clearing store", "err", err)
		return err
	}
	e.sparse.Clear()
	e.dense.Clear()
	e.registry.Clear()

	e.logger.Info("corpus cleared")
	return nil
}

// Reembed rewrites every stored vector with embedder and rebuilds the dense
// index from the result. The new model may use a different dimensionality.
// Commits wait for the run to finish; queries keep using the old vectors
// until the rebuilt index replaces them. On failure the vectors already
// rewritten are restored and the index is left unchanged.
func (e *Engine) Reembed(ctx context.Context, embedder ai.Embedder, cfg *reembed.Config, progress io.Writer) (*reembed.Result, error) {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	r, err := reembed.NewReembedder(e.store, embedder, cfg, progress)
	if err != nil {
		return nil, err
	}

	result, runErr := r.Run(ctx)
	if runErr != nil {
		if result.Chunks > 0 {
			if err := e.restoreVectors(context.WithoutCancel(ctx), result.LastID); err != nil {
				e.logger.Error("error restoring vectors after failed reembed", "lastID", result.LastID, "err", err)
				return result, fmt.Errorf("%w (restoring vectors: %v)", runErr, err)
			}
		}
		return result, runErr
	}

	rebuilt, err := e.buildDenseIndex(ctx)
	if err != nil {
		return result, err
	}
	searcher, err := search.NewSearcher(e.sparse, rebuilt, e.registry, e.store,
		search.WithCandidateMultiplier(e.config.Query.CandidateMultiplier),
		search.WithLogger(e.baseLogger),
	)
	if err != nil {
		return result, err
	}

	e.mu.Lock()
	e.dense = rebuilt
	e.searcher = searcher
	e.mu.Unlock()

	e.logger.Info("dense index rebuilt", "chunks", rebuilt.Len(), "dimensions", rebuilt.Dimensions())
	return result, nil
}

// buildDenseIndex loads every stored vector into a new dense index.
// Must be called with commitMu held.
func (e *Engine) buildDenseIndex(ctx context.Context) (*dense.Index, error) {
	idx, err := dense.New(
		dense.WithMinSimilarity(e.config.Dense.MinSimilarity),
		dense.WithLogger(e.baseLogger),
	)
	if err != nil {
		return nil, err
	}

	var cursor core.ID
	for {
		chunks, err := e.store.ScanChunks(ctx, cursor, loadBatchSize)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			return idx, nil
		}
		ids := make([]core.ID, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
		}
		vectors, err := e.store.GetVectors(ctx, ids...)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			vector, ok := vectors[id]
			if !ok {
				continue
			}
			if err := idx.Insert(id, vector); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", id, err)
			}
		}
		cursor = chunks[len(chunks)-1].ID
	}
}

// restoreVectors writes the dense index's vectors back for every chunk up
// to lastID. Must be called with commitMu held.
func (e *Engine) restoreVectors(ctx context.Context, lastID core.ID) error {
	var cursor core.ID
	for cursor < lastID {
		chunks, err := e.store.ScanChunks(ctx, cursor, loadBatchSize)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		vectors := make(map[core.ID][]float32, len(chunks))
		for _, c := range chunks {
			if c.ID > lastID {
				break
			}
			if v, ok := e.dense.Vector(c.ID); ok {
				vectors[c.ID] = v
			}
		}
		if err := e.store.PutVectors(ctx, vectors); err != nil {
			return err
		}
		cursor = chunks[len(chunks)-1].ID
	}
	return nil
}
