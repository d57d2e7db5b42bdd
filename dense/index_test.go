package dense

import (
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

func ids(hits []core.Hit) []core.ID {
	out := make([]core.ID, len(hits))
	for i, h := range hits {
		out[i] = h.ChunkID
	}
	return out
}

func TestNew(t *testing.T) {
	idx := newTestIndex(t)
	assert.Equal(t, 0, idx.Dimensions())
	assert.Equal(t, DefaultMinSimilarity, idx.minSimilarity)

	_, err := New(WithMinSimilarity(1.5))
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestIndex_InsertFixesDimensions(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Insert(1, []float32{1, 0, 0}))
	assert.Equal(t, 3, idx.Dimensions())

	err := idx.Insert(2, []float32{1, 0})
	require.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Equal(t, 1, idx.Len(), "failed insert must not modify the index")
	assert.False(t, idx.Contains(2))

	assert.ErrorIs(t, idx.Insert(3, nil), core.ErrDimensionMismatch)
	assert.ErrorIs(t, idx.CheckDimensions([]float32{1, 2}), core.ErrDimensionMismatch)
	assert.NoError(t, idx.CheckDimensions([]float32{1, 2, 3}))
}

func TestIndex_SearchQueryDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Insert(1, []float32{1, 0, 0}))

	_, err := idx.Search([]float32{1, 0}, nil, 5)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestIndex_SearchEmpty(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Search([]float32{1, 0}, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_SearchScores(t *testing.T) {
	idx := newTestIndex(t, WithMinSimilarity(NoThreshold))
	require.NoError(t, idx.Insert(1, []float32{1, 0}))
	require.NoError(t, idx.Insert(2, []float32{0, 1}))
	require.NoError(t, idx.Insert(3, []float32{-2, 0}))
	require.NoError(t, idx.Insert(4, []float32{3, 3}))

	hits, err := idx.Search([]float32{5, 0}, nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 4)

	assert.Equal(t, []core.ID{1, 4, 2, 3}, ids(hits))
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.InDelta(t, (0.7071067811865476+1)/2, hits[1].Score, 1e-9)
	assert.InDelta(t, 0.5, hits[2].Score, 1e-9)
	assert.InDelta(t, 0.0, hits[3].Score, 1e-9)
}

func TestIndex_SearchThreshold(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Insert(1, []float32{1, 0, 0}))
	require.NoError(t, idx.Insert(2, []float32{0, 0, 1}))

	hits, err := idx.Search([]float32{1, 0, 0}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1}, ids(hits), "orthogonal vector falls below the threshold")
}

func TestIndex_SearchCandidatesAndTies(t *testing.T) {
	idx := newTestIndex(t)
	for _, id := range []core.ID{9, 3, 6, 1} {
		require.NoError(t, idx.Insert(id, []float32{1, 1}))
	}

	hits, err := idx.Search([]float32{1, 1}, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1, 3, 6}, ids(hits))

	hits, err = idx.Search([]float32{1, 1}, core.NewIDSet(9, 6), 0)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{6, 9}, ids(hits))

	hits, err = idx.Search([]float32{1, 1}, core.NewIDSet(), 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_RemoveThenReinsertIsIdempotent(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Insert(1, []float32{0.9, 0.1, 0.2}))
	require.NoError(t, idx.Insert(2, []float32{0.3, 0.8, 0.1}))
	require.NoError(t, idx.Insert(3, []float32{0.5, 0.5, 0.5}))

	query := []float32{0.7, 0.4, 0.3}
	before, err := idx.Search(query, nil, 0)
	require.NoError(t, err)

	idx.Remove(2)
	assert.Equal(t, 2, idx.Len())
	require.NoError(t, idx.Insert(2, []float32{0.3, 0.8, 0.1}))

	after, err := idx.Search(query, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIndex_ZeroVector(t *testing.T) {
	idx := newTestIndex(t, WithMinSimilarity(NoThreshold))
	require.NoError(t, idx.Insert(1, []float32{0, 0}))

	hits, err := idx.Search([]float32{1, 0}, nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.5, hits[0].Score, 1e-9)
}

func TestIndex_ClearResetsDimensions(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Insert(1, []float32{1, 0, 0}))

	idx.Clear()
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.Dimensions())
	require.NoError(t, idx.Insert(2, []float32{1, 0}))
	assert.Equal(t, 2, idx.Dimensions())
}

func TestIndex_Vector(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Insert(1, []float32{3, 4}))

	v, ok := idx.Vector(1)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, v, 1e-6)

	_, ok = idx.Vector(2)
	assert.False(t, ok)
}
