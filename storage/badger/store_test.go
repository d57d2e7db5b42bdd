package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedDocument commits one document with the given chunk texts and returns
// the stored document and chunks.
func seedDocument(t *testing.T, store *Store, filename, sessionID string, texts ...string) (*core.Document, []*core.Chunk) {
	t.Helper()
	docID, err := store.NextDocumentID()
	require.NoError(t, err)

	doc := &core.Document{
		ID:         docID,
		Filename:   filename,
		PageCount:  1,
		ChunkCount: len(texts),
		Checksum:   core.Fingerprint(filename),
		SessionID:  sessionID,
		IngestedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	batch := &storage.Batch{
		Documents: []*core.Document{doc},
		Vectors:   make(map[core.ID][]float32),
	}
	var chunks []*core.Chunk
	for i, text := range texts {
		id, err := store.NextChunkID()
		require.NoError(t, err)
		chunk := &core.Chunk{ID: id, DocumentID: docID, PageNumber: 1, Ordinal: i, Text: text, TokenCount: 1}
		chunks = append(chunks, chunk)
		batch.Chunks = append(batch.Chunks, chunk)
		batch.Vectors[id] = []float32{float32(i), 1}
	}
	if sessionID != "" {
		ids := make([]core.ID, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
		}
		batch.Sessions = []*core.Session{{ID: sessionID, ChunkIDs: ids, CreatedAt: doc.IngestedAt}}
	}
	require.NoError(t, store.Commit(context.Background(), batch))
	return doc, chunks
}

func TestStore_IDsAreMonotonic(t *testing.T) {
	store := newTestStore(t)

	var last core.ID
	for i := 0; i < 250; i++ {
		id, err := store.NextChunkID()
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestStore_CommitAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc, chunks := seedDocument(t, store, "a.txt", "s1", "alpha", "beta")

	docs, err := store.GetDocuments(ctx, doc.ID, 999)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc, docs[0])

	got, err := store.GetChunks(ctx, chunks[1].ID, chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []*core.Chunk{chunks[1], chunks[0]}, got)

	vectors, err := store.GetVectors(ctx, chunks[0].ID, chunks[1].ID, 999)
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 1}, vectors[chunks[1].ID])

	session, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{chunks[0].ID, chunks[1].ID}, session.ChunkIDs)
}

func TestStore_CommitEmptyBatch(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Commit(context.Background(), &storage.Batch{}))
}

func TestStore_CommitCanceledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Commit(ctx, &storage.Batch{Documents: []*core.Document{{ID: 1, Filename: "x"}}})
	require.ErrorIs(t, err, context.Canceled)

	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStore_CommitIncompleteBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := &storage.Batch{
		Documents: []*core.Document{{ID: 1, Filename: "x"}},
		Chunks:    []*core.Chunk{{ID: 1, DocumentID: 1, PageNumber: 1, Text: "text"}},
	}
	err := store.Commit(ctx, batch)
	require.ErrorIs(t, err, storage.ErrIncompleteBatch)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStore_ListAndFindDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, _ := seedDocument(t, store, "a.txt", "", "one")
	b, _ := seedDocument(t, store, "b.pdf", "", "two")
	c, _ := seedDocument(t, store, "a.txt", "", "three")

	all, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []core.ID{a.ID, b.ID, c.ID}, []core.ID{all[0].ID, all[1].ID, all[2].ID})

	named, err := store.FindDocumentsByFilename(ctx, "a.txt", "missing.txt")
	require.NoError(t, err)
	require.Len(t, named, 2)
	assert.Equal(t, a.ID, named[0].ID)
	assert.Equal(t, c.ID, named[1].ID)

	found, err := store.FindDocumentByChecksum(ctx, core.Fingerprint("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID, "earliest document wins")

	_, err = store.FindDocumentByChecksum(ctx, 12345)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ScanChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, first := seedDocument(t, store, "a.txt", "", "c1", "c2", "c3")
	_, second := seedDocument(t, store, "b.txt", "", "c4", "c5")
	all := append(first, second...)

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	page, err := store.ScanChunks(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, all[:2], page)

	page, err = store.ScanChunks(ctx, page[len(page)-1].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, all[2:4], page)

	rest, err := store.ScanChunks(ctx, all[3].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, all[4:], rest)

	none, err := store.ScanChunks(ctx, all[4].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_ChunkIDsByDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, aChunks := seedDocument(t, store, "a.txt", "", "c1", "c2")
	b, bChunks := seedDocument(t, store, "b.txt", "", "c3")

	ids, err := store.ChunkIDsByDocument(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{aChunks[0].ID, aChunks[1].ID, bChunks[0].ID}, ids)

	ids, err = store.ChunkIDsByDocument(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_PutVectors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, chunks := seedDocument(t, store, "a.txt", "", "c1")
	require.NoError(t, store.PutVectors(ctx, map[core.ID][]float32{chunks[0].ID: {9, 9, 9}}))

	vectors, err := store.GetVectors(ctx, chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9, 9}, vectors[chunks[0].ID])

	err = store.PutVectors(ctx, map[core.ID][]float32{999: {1}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_Sessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SaveSession(ctx, &core.Session{ID: "s1", ChunkIDs: []core.ID{1}}))
	require.NoError(t, store.SaveSession(ctx, &core.Session{ID: "s2", Sealed: true}))
	require.NoError(t, store.SaveSession(ctx, &core.Session{ID: "s1", ChunkIDs: []core.ID{1, 2}, Sealed: true}))

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, []core.ID{1, 2}, sessions[0].ChunkIDs)
	assert.True(t, sessions[0].Sealed)
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, store, "a.txt", "s1", "c1", "c2")
	require.NoError(t, store.Clear(ctx))

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	chunks, err := store.ScanChunks(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// The store keeps working after a clear.
	doc, fresh := seedDocument(t, store, "b.txt", "", "c3")
	got, err := store.GetChunks(ctx, fresh[0].ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, doc.ID, got[0].DocumentID)
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	store, err := NewStore(backend)
	require.NoError(t, err)
	doc, chunks := seedDocument(t, store, "a.txt", "s1", "alpha")
	require.NoError(t, store.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	store, err = NewStore(backend)
	require.NoError(t, err)
	defer store.Close()

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.Filename, docs[0].Filename)

	next, err := store.NextChunkID()
	require.NoError(t, err)
	assert.Greater(t, next, chunks[0].ID, "sequences continue after reopen")
}

func TestStore_Closed(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "second close is a no-op")

	_, err = store.ListDocuments(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.NextChunkID()
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

// largeBatch builds one document with n chunks and dims-dimensional vectors.
func largeBatch(t *testing.T, store *Store, n, dims int) *storage.Batch {
	t.Helper()
	docID, err := store.NextDocumentID()
	require.NoError(t, err)
	batch := &storage.Batch{
		Documents: []*core.Document{{ID: docID, Filename: "book.pdf", PageCount: 1, ChunkCount: n}},
		Vectors:   make(map[core.ID][]float32, n),
	}
	for i := 0; i < n; i++ {
		id, err := store.NextChunkID()
		require.NoError(t, err)
		batch.Chunks = append(batch.Chunks, &core.Chunk{ID: id, DocumentID: docID, PageNumber: 1, Ordinal: i, Text: "chunk", TokenCount: 1})
		vector := make([]float32, dims)
		vector[i%dims] = 1
		batch.Vectors[id] = vector
	}
	return batch
}

func TestStore_CommitLargeBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const n, dims = 2100, 1536
	batch := largeBatch(t, store, n, dims)
	require.NoError(t, store.Commit(ctx, batch))

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)

	ids, err := store.ChunkIDsByDocument(ctx, batch.Documents[0].ID)
	require.NoError(t, err)
	assert.Len(t, ids, n)

	vectors, err := store.GetVectors(ctx, ids...)
	require.NoError(t, err)
	require.Len(t, vectors, n)
	last := ids[n-1]
	assert.Equal(t, batch.Vectors[last], vectors[last])

	t.Run("vectors of every chunk can be replaced at once", func(t *testing.T) {
		replaced := make(map[core.ID][]float32, n)
		for _, id := range ids {
			replaced[id] = make([]float32, dims)
			replaced[id][0] = 2
		}
		require.NoError(t, store.PutVectors(ctx, replaced))

		vectors, err := store.GetVectors(ctx, last)
		require.NoError(t, err)
		assert.Equal(t, float32(2), vectors[last][0])
	})
}

func TestStore_DeleteChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc, chunks := seedDocument(t, store, "a.txt", "", "c1", "c2", "c3")
	require.NoError(t, store.DeleteChunks(ctx, chunks[0].ID, 999))

	got, err := store.GetChunks(ctx, chunks[0].ID, chunks[1].ID, chunks[2].ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	vectors, err := store.GetVectors(ctx, chunks[0].ID)
	require.NoError(t, err)
	assert.Empty(t, vectors)

	ids, err := store.ChunkIDsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{chunks[1].ID, chunks[2].ID}, ids)

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_SequencesReacquiredAfterRelease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	before, err := store.NextChunkID()
	require.NoError(t, err)

	// A Clear whose drop fails leaves the sequences released.
	store.seqMu.Lock()
	require.NoError(t, store.releaseSequences())
	store.seqMu.Unlock()

	after, err := store.NextChunkID()
	require.NoError(t, err)
	assert.Greater(t, after, before)
	_, err = store.NextDocumentID()
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))
	_, err = store.NextChunkID()
	require.NoError(t, err)
}
