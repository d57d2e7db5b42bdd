package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingEmbedder_EmbedText(t *testing.T) {
	inner := mock.NewMockEmbedder()
	cache, err := ai.NewCachingEmbedder(inner, 4)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cache.EmbedText(ctx, "what is attention")
	require.NoError(t, err)
	second, err := cache.EmbedText(ctx, "what is attention")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.CallCount(), "second call is served from cache")
	assert.Equal(t, 1, cache.Len())
}

func TestCachingEmbedder_EmbedTextsOnlyMisses(t *testing.T) {
	inner := mock.NewMockEmbedder()
	cache, err := ai.NewCachingEmbedder(inner, 0)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cache.EmbedText(ctx, "b")
	require.NoError(t, err)

	var seen []string
	inner.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		seen = append(seen, texts...)
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(i + 1)}
		}
		return out, nil
	}

	vectors, err := cache.EmbedTexts(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []string{"a", "c"}, seen)
	assert.Equal(t, []float32{1}, vectors[0])
	assert.Equal(t, []float32{2}, vectors[2])
	assert.Equal(t, 3, cache.Len())

	// Fully cached batch never reaches the embedder
	calls := inner.CallCount()
	_, err = cache.EmbedTexts(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, calls, inner.CallCount())
}

func TestCachingEmbedder_Errors(t *testing.T) {
	inner := mock.NewMockEmbedder()
	cache, err := ai.NewCachingEmbedder(inner, 2)
	require.NoError(t, err)
	ctx := context.Background()

	boom := errors.New("service unavailable")
	inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}
	_, err = cache.EmbedText(ctx, "x")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len(), "failures are not cached")

	inner.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	_, err = cache.EmbedTexts(ctx, []string{"x", "y"})
	assert.ErrorIs(t, err, ai.ErrEmbeddingCount)
}

func TestCachingEmbedder_CallersCannotModifyCache(t *testing.T) {
	inner := mock.NewMockEmbedder()
	cache, err := ai.NewCachingEmbedder(inner, 4)
	require.NoError(t, err)
	ctx := context.Background()

	want, err := inner.EmbedText(ctx, "query")
	require.NoError(t, err)

	computed, err := cache.EmbedText(ctx, "query")
	require.NoError(t, err)
	computed[0] = 42

	hit, err := cache.EmbedText(ctx, "query")
	require.NoError(t, err)
	assert.Equal(t, want, hit)
	hit[1] = 42

	batch, err := cache.EmbedTexts(ctx, []string{"query", "other"})
	require.NoError(t, err)
	assert.Equal(t, want, batch[0])
	batch[1][0] = 42

	again, err := cache.EmbedTexts(ctx, []string{"other"})
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), again[0][0])
}
