package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
)

// embeddingProcessor generates the chunk vectors of prepared documents.
type embeddingProcessor struct {
	embedder  ai.Embedder
	batchSize int
	logger    *slog.Logger
}

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(embedder ai.Embedder, batchSize int, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger.With("processor", "embeddings"),
	}, nil
}

// process fills doc.Vectors with one embedding per chunk, requesting at most
// batchSize texts per call.
func (ep *embeddingProcessor) process(ctx context.Context, doc *core.PreparedDocument) error {
	texts := doc.Texts()
	ep.logger.Debug("generating embeddings for document", "filename", doc.Document.Filename, "chunks", len(texts))

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ep.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+ep.batchSize, len(texts))

		embeddings, err := ep.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			ep.logger.Error("error generating embeddings", "filename", doc.Document.Filename, "err", err)
			return err
		}
		if len(embeddings) != end-start {
			return fmt.Errorf("%w: %s expected %d, received %d",
				ai.ErrEmbeddingCount, doc.Document.Filename, end-start, len(embeddings))
		}
		vectors = append(vectors, embeddings...)
	}

	doc.Vectors = vectors
	return nil
}
