package storage

import (
	"math"
	"testing"
	"time"

	"github.com/poiesic/hybridrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	for _, id := range []core.ID{0, 42, math.MaxUint64} {
		decoded, err := UnmarshalID(MarshalID(id))
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}

	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := &core.Document{
		ID:         7,
		Filename:   "papers/attention.pdf",
		PageCount:  15,
		ChunkCount: 42,
		Checksum:   core.Fingerprint("attention is all you need"),
		SessionID:  "0f8d5c2e-upload",
		IngestedAt: time.Date(2025, 6, 1, 9, 30, 0, 123000, time.UTC),
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestChunkRoundTrip(t *testing.T) {
	chunk := &core.Chunk{
		ID:         1001,
		DocumentID: 7,
		PageNumber: 3,
		Ordinal:    12,
		Text:       "Multi-head attention\nlets the model attend to… everything",
		TokenCount: 8,
	}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestVectorRoundTrip(t *testing.T) {
	vector := []float32{0.25, -1.5, 0, float32(math.Pi), 1e-7}

	decoded, err := UnmarshalVector(MarshalVector(vector))
	require.NoError(t, err)
	assert.Equal(t, vector, decoded)

	empty, err := UnmarshalVector(MarshalVector(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSessionRoundTrip(t *testing.T) {
	session := &core.Session{
		ID:        "s1",
		ChunkIDs:  []core.ID{3, 1, 2},
		CreatedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Sealed:    true,
	}

	decoded, err := UnmarshalSession(MarshalSession(session))
	require.NoError(t, err)
	assert.Equal(t, session, decoded)
}

func TestUnmarshal_CorruptData(t *testing.T) {
	chunk := MarshalChunk(&core.Chunk{ID: 1, DocumentID: 2, PageNumber: 1, Text: "hello", TokenCount: 1})

	_, err := UnmarshalChunk(chunk[:len(chunk)-2])
	assert.ErrorIs(t, err, ErrCorruptRecord, "truncated input")

	_, err = UnmarshalChunk(append(chunk, 0x01))
	assert.ErrorIs(t, err, ErrTrailingData, "trailing bytes")

	_, err = UnmarshalDocument(nil)
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = UnmarshalVector(MarshalID(core.ID(maxVectorLen * 4)))
	assert.ErrorIs(t, err, ErrCorruptRecord, "oversized length")
}
