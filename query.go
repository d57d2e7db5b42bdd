package hybridrag

import (
	"context"
	"strings"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/search"
)

// DefaultQueryCacheSize is the number of question embeddings a Retriever
// remembers.
const DefaultQueryCacheSize = 256

// NewQueryOptions builds query options from the configured defaults, then
// applies opts.
func (e *Engine) NewQueryOptions(question string, vector []float32, opts ...search.QueryOption) *search.QueryOptions {
	defaults := []search.QueryOption{
		search.WithTopK(e.config.Query.TopK),
		search.WithWeights(e.config.Query.BM25Weight, e.config.Query.EmbeddingWeight),
	}
	return search.NewQueryOptions(question, vector, append(defaults, opts...)...)
}

// Query returns the citations most relevant to the question, best first.
// A query over an empty corpus or an empty scope returns an empty result.
func (e *Engine) Query(ctx context.Context, opts *search.QueryOptions) (*core.RetrievalResult, error) {
	return e.QueryWithMonitor(ctx, opts, nil)
}

// QueryWithMonitor is Query with a monitor observing each search stage.
func (e *Engine) QueryWithMonitor(ctx context.Context, opts *search.QueryOptions, monitor search.SearchMonitor) (*core.RetrievalResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.searcher.SearchWithMonitor(ctx, opts, monitor)
}

// Retriever answers natural-language questions by embedding them and
// querying the engine.
type Retriever struct {
	engine   *Engine
	embedder ai.Embedder
}

// NewRetriever creates a Retriever. Question embeddings are cached, so
// repeated questions skip the embedding service.
func (e *Engine) NewRetriever(embedder ai.Embedder) (*Retriever, error) {
	if embedder == nil {
		return nil, ai.ErrEmbedderRequired
	}
	cached, err := ai.NewCachingEmbedder(embedder, DefaultQueryCacheSize)
	if err != nil {
		return nil, err
	}
	return &Retriever{engine: e, embedder: cached}, nil
}

// Retrieve embeds question and runs it with the engine's query defaults
// overridden by opts. The question is not embedded when the embedding
// weight is zero.
func (r *Retriever) Retrieve(ctx context.Context, question string, opts ...search.QueryOption) (*core.RetrievalResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, core.ErrEmptyQuery
	}
	options := r.engine.NewQueryOptions(question, nil, opts...)
	if options.EmbeddingWeight > 0 {
		vector, err := r.embedder.EmbedText(ctx, question)
		if err != nil {
			return nil, err
		}
		options.Vector = vector
	}
	return r.engine.Query(ctx, options)
}
