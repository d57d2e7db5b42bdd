package ai

import (
	"context"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings kept by NewCachingEmbedder
// when size is not positive.
const DefaultCacheSize = 1024

// CachingEmbedder remembers recent embeddings by exact text. Repeated
// questions are answered without a round trip to the embedding service.
// Vectors are copied in and out of the cache, so callers may modify them.
type CachingEmbedder struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachingEmbedder)(nil)

// NewCachingEmbedder wraps next with an LRU cache holding up to size vectors.
func NewCachingEmbedder(next Embedder, size int) (*CachingEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachingEmbedder{next: next, cache: cache}, nil
}

// EmbedText returns the cached vector for text or computes and caches it.
func (c *CachingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return slices.Clone(v), nil
	}
	v, err := c.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, slices.Clone(v))
	return v, nil
}

// EmbedTexts embeds only the texts missing from the cache, in one batch.
func (c *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = slices.Clone(v)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.next.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, ErrEmbeddingCount
	}
	for j, v := range vectors {
		out[missingIdx[j]] = v
		c.cache.Add(missing[j], slices.Clone(v))
	}
	return out, nil
}

// Len returns the number of cached vectors.
func (c *CachingEmbedder) Len() int {
	return c.cache.Len()
}
