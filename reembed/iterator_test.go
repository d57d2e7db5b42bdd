package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
	"github.com/poiesic/hybridrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedChunks stores one document holding n chunks with two-dimensional vectors.
func seedChunks(t *testing.T, store *badger.Store, n int) []*core.Chunk {
	t.Helper()
	docID, err := store.NextDocumentID()
	require.NoError(t, err)

	batch := &storage.Batch{
		Documents: []*core.Document{{ID: docID, Filename: "seed.txt", PageCount: 1, ChunkCount: n}},
		Vectors:   map[core.ID][]float32{},
	}
	for i := 0; i < n; i++ {
		id, err := store.NextChunkID()
		require.NoError(t, err)
		chunk := &core.Chunk{
			ID:         id,
			DocumentID: docID,
			PageNumber: 1,
			Ordinal:    i,
			Text:       fmt.Sprintf("chunk number %d", i),
			TokenCount: 3,
		}
		batch.Chunks = append(batch.Chunks, chunk)
		batch.Vectors[id] = []float32{1, 0}
	}
	require.NoError(t, store.Commit(context.Background(), batch))
	return batch.Chunks
}

func TestChunkIterator_Basic(t *testing.T) {
	store := setupTestStore(t)
	seeded := seedChunks(t, store, 5)

	iter := NewChunkIterator(store, 2)
	var batches [][]core.ID
	err := iter.ForEach(context.Background(), func(chunks []*core.Chunk) error {
		ids := make([]core.ID, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
		}
		batches = append(batches, ids)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, batches, 3, "5 chunks in batches of 2")
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)

	var all []core.ID
	for _, b := range batches {
		all = append(all, b...)
	}
	for i, c := range seeded {
		assert.Equal(t, c.ID, all[i], "chunks are visited in insertion order")
	}
}

func TestChunkIterator_ExactMultiple(t *testing.T) {
	store := setupTestStore(t)
	seedChunks(t, store, 4)

	calls := 0
	err := NewChunkIterator(store, 2).ForEach(context.Background(), func(chunks []*core.Chunk) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestChunkIterator_Empty(t *testing.T) {
	store := setupTestStore(t)

	called := false
	err := NewChunkIterator(store, 10).ForEach(context.Background(), func(chunks []*core.Chunk) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "fn should not be called for an empty store")
}

func TestChunkIterator_DefaultBatchSize(t *testing.T) {
	store := setupTestStore(t)
	assert.Equal(t, DefaultBatchSize, NewChunkIterator(store, 0).batchSize)
	assert.Equal(t, DefaultBatchSize, NewChunkIterator(store, -5).batchSize)
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	store := setupTestStore(t)
	seedChunks(t, store, 6)

	expectedErr := errors.New("stop")
	calls := 0
	err := NewChunkIterator(store, 2).ForEach(context.Background(), func(chunks []*core.Chunk) error {
		calls++
		return expectedErr
	})
	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_ContextCancellation(t *testing.T) {
	store := setupTestStore(t)
	seedChunks(t, store, 6)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewChunkIterator(store, 2).ForEach(ctx, func(chunks []*core.Chunk) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
