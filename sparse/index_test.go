package sparse

import (
	"math"
	"testing"

	"github.com/poiesic/hybridrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	idx, err := New(opts...)
	require.NoError(t, err)
	return idx
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		idx := newTestIndex(t)
		assert.Equal(t, DefaultK1, idx.k1)
		assert.Equal(t, DefaultB, idx.b)
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("invalid k1", func(t *testing.T) {
		_, err := New(WithK1(-1))
		assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
	})

	t.Run("invalid b", func(t *testing.T) {
		_, err := New(WithB(1.5))
		assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
	})
}

func TestIndex_SearchScoresBM25(t *testing.T) {
	idx := newTestIndex(t, WithStopWords(nil))
	idx.Insert(1, "machine learning uses data")
	idx.Insert(2, "cooking requires heat")
	idx.Insert(3, "machine machine shop")

	hits := idx.Search("machine", nil, 10)
	require.Len(t, hits, 2)

	// N=3, n(machine)=2, avgdl=10/3
	n, df := 3.0, 2.0
	avgdl := 10.0 / 3.0
	idf := math.Log((n-df+0.5)/(df+0.5) + 1)
	bm25 := func(tf, length float64) float64 {
		return idf * tf * (DefaultK1 + 1) / (tf + DefaultK1*(1-DefaultB+DefaultB*length/avgdl))
	}

	assert.Equal(t, core.ID(3), hits[0].ChunkID)
	assert.InDelta(t, bm25(2, 3), hits[0].Score, 1e-12)
	assert.Equal(t, core.ID(1), hits[1].ChunkID)
	assert.InDelta(t, bm25(1, 4), hits[1].Score, 1e-12)
}

func TestIndex_SearchNoMatches(t *testing.T) {
	idx := newTestIndex(t)

	assert.Empty(t, idx.Search("anything", nil, 5), "empty index")

	idx.Insert(1, "cooking requires heat")
	assert.Empty(t, idx.Search("machine learning", nil, 5))
	assert.Empty(t, idx.Search("the of and", nil, 5), "stop words only")
	assert.Empty(t, idx.Search("", nil, 5))
}

func TestIndex_SearchNormalizesTerms(t *testing.T) {
	idx := newTestIndex(t)
	idx.Insert(1, "Machine-Learning, (Data)!")

	hits := idx.Search("machine-learning DATA", nil, 5)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(1), hits[0].ChunkID)
}

func TestIndex_SearchTiesByInsertionOrder(t *testing.T) {
	idx := newTestIndex(t)
	idx.Insert(7, "graph theory")
	idx.Insert(2, "graph theory")
	idx.Insert(5, "graph theory")

	hits := idx.Search("graph", nil, 0)
	require.Len(t, hits, 3)
	assert.Equal(t, []core.ID{2, 5, 7}, []core.ID{hits[0].ChunkID, hits[1].ChunkID, hits[2].ChunkID})
	assert.Equal(t, hits[0].Score, hits[2].Score)
}

func TestIndex_SearchTruncatesToK(t *testing.T) {
	idx := newTestIndex(t)
	for i := 1; i <= 10; i++ {
		idx.Insert(core.ID(i), "vector search")
	}

	assert.Len(t, idx.Search("vector", nil, 3), 3)
	assert.Len(t, idx.Search("vector", nil, 0), 10)
}

func TestIndex_CandidatesDoNotChangeStatistics(t *testing.T) {
	idx := newTestIndex(t)
	idx.Insert(1, "rust memory safety")
	idx.Insert(2, "go memory model")
	idx.Insert(3, "memory allocation in go runtime")

	global := idx.Search("memory go", nil, 0)
	scoped := idx.Search("memory go", core.NewIDSet(2, 3), 0)

	require.Len(t, scoped, 2)
	byID := make(map[core.ID]float64)
	for _, h := range global {
		byID[h.ChunkID] = h.Score
	}
	for _, h := range scoped {
		assert.NotEqual(t, core.ID(1), h.ChunkID)
		assert.Equal(t, byID[h.ChunkID], h.Score, "scores must use corpus-wide statistics")
	}

	assert.Empty(t, idx.Search("memory", core.NewIDSet(), 0), "empty candidate set")
}

func TestIndex_RemoveThenReinsertIsIdempotent(t *testing.T) {
	idx := newTestIndex(t)
	idx.Insert(1, "machine learning uses data")
	idx.Insert(2, "learning to cook with data")
	idx.Insert(3, "deep learning needs more data")

	before := idx.Search("learning data", nil, 0)
	avgBefore := idx.AverageLength()

	idx.Remove(2)
	assert.Equal(t, 2, idx.Len())
	assert.False(t, idx.Contains(2))

	idx.Insert(2, "learning to cook with data")
	assert.Equal(t, before, idx.Search("learning data", nil, 0))
	assert.Equal(t, avgBefore, idx.AverageLength())
}

func TestIndex_InsertReplacesExisting(t *testing.T) {
	idx := newTestIndex(t)
	idx.Insert(1, "old words here")
	idx.Insert(1, "new text")

	assert.Equal(t, 1, idx.Len())
	assert.Empty(t, idx.Search("old", nil, 0))
	assert.Len(t, idx.Search("new", nil, 0), 1)
	assert.Equal(t, 2.0, idx.AverageLength())
}

func TestIndex_RemoveUnknownIsNoop(t *testing.T) {
	idx := newTestIndex(t)
	idx.Insert(1, "alpha beta")
	idx.Remove(99)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 2, idx.VocabularySize())
}

func TestIndex_Clear(t *testing.T) {
	idx := newTestIndex(t)
	idx.Insert(1, "alpha beta")
	idx.Insert(2, "gamma")

	idx.Clear()
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.VocabularySize())
	assert.Equal(t, 0.0, idx.AverageLength())
	assert.Empty(t, idx.Search("alpha", nil, 0))
}
