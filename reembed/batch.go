package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
)

// BatchProcessor embeds batches of chunks and stores the new vectors.
type BatchProcessor struct {
	repo           storage.ChunkRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts per embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the chunks' text and replaces their stored vectors in one
// transaction. It returns the dimensionality of the new vectors. When
// expectedDims is positive, vectors of any other length are rejected with
// core.ErrDimensionMismatch before anything is written.
// Vectors are normalized to unit length before they are stored.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk, expectedDims int) (int, error) {
	if len(chunks) == 0 {
		return expectedDims, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	var dims int
	err := RetryWithBackoff(ctx, bp.maxRetries, bp.retryBaseDelay, func(ctx context.Context) error {
		embeddings, err := bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(chunks) {
			return fmt.Errorf("%w: expected %d, got %d", ai.ErrEmbeddingCount, len(chunks), len(embeddings))
		}
		// Shape errors are not retried
		if vectors, dims, err = unitVectors(embeddings); err != nil {
			return Permanent(err)
		}
		if expectedDims > 0 && dims != expectedDims {
			return Permanent(fmt.Errorf("%w: batch has %d dimensions, expected %d",
				core.ErrDimensionMismatch, dims, expectedDims))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to embed batch: %w", err)
	}

	byID := make(map[core.ID][]float32, len(chunks))
	for i, chunk := range chunks {
		byID[chunk.ID] = vectors[i]
	}

	if err := bp.repo.PutVectors(ctx, byID); err != nil {
		return 0, fmt.Errorf("failed to update vectors: %w", err)
	}
	return dims, nil
}
