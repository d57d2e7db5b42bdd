package ai

import "context"

// Embedder maps text to dense vectors for the embedding side of hybrid
// retrieval. Chunks and questions must go through the same model: vectors
// from different models are not comparable, and the corpus rejects vectors
// whose length differs from those already indexed.
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText embeds a single question or passage.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts embeds passages in one call. The result holds exactly one
	// vector per input, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
