// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"context"
	"fmt"

	"github.com/poiesic/hybridrag/core"
)

// Batch is everything one ingestion commit writes. Chunks and vectors are
// new records. A Store makes a batch visible atomically: the chunks only
// belong to a stored document once the whole batch is written, and a failed
// commit removes the chunks it wrote.
type Batch struct {
	Documents []*core.Document
	Chunks    []*core.Chunk
	Vectors   map[core.ID][]float32
	Sessions  []*core.Session
}

// Empty reports whether the batch would write nothing.
func (b *Batch) Empty() bool {
	return b == nil || (len(b.Documents) == 0 && len(b.Chunks) == 0 && len(b.Vectors) == 0 && len(b.Sessions) == 0)
}

// Validate requires a non-empty vector for every chunk in the batch.
func (b *Batch) Validate() error {
	if b == nil {
		return nil
	}
	for _, chunk := range b.Chunks {
		if len(b.Vectors[chunk.ID]) == 0 {
			return fmt.Errorf("%w: chunk %d has no vector", ErrIncompleteBatch, chunk.ID)
		}
	}
	return nil
}

// DocumentRepository provides read access to ingested documents.
type DocumentRepository interface {
	// GetDocuments retrieves documents by ID.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// ListDocuments returns every document in ID order.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// FindDocumentsByFilename returns documents whose filename matches any of
	// the given names exactly, in ID order.
	FindDocumentsByFilename(ctx context.Context, filenames ...string) ([]*core.Document, error)

	// FindDocumentByChecksum returns the earliest document with the given
	// content checksum. Returns ErrNotFound if there is none.
	FindDocumentByChecksum(ctx context.Context, checksum uint64) (*core.Document, error)
}

// ChunkRepository provides access to chunks and their embedding vectors.
type ChunkRepository interface {
	// GetChunks retrieves chunks by ID.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// ScanChunks returns up to limit chunks with IDs greater than after, in
	// ascending ID order. A limit <= 0 returns every remaining chunk.
	ScanChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// ChunkIDsByDocument returns the chunk IDs belonging to the documents, in
	// ascending order.
	ChunkIDsByDocument(ctx context.Context, documentIDs ...core.ID) ([]core.ID, error)

	// GetVectors returns the stored vectors for the given chunk IDs.
	// Chunks without a vector are absent from the map.
	GetVectors(ctx context.Context, ids ...core.ID) (map[core.ID][]float32, error)

	// PutVectors replaces the vectors of existing chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	PutVectors(ctx context.Context, vectors map[core.ID][]float32) error

	// DeleteChunks removes chunks, their vectors and their document index
	// entries. Missing chunks are skipped.
	DeleteChunks(ctx context.Context, ids ...core.ID) error
}

// SessionRepository provides access to persisted upload sessions.
type SessionRepository interface {
	// GetSession retrieves one session.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id string) (*core.Session, error)

	// ListSessions returns every stored session.
	ListSessions(ctx context.Context) ([]*core.Session, error)

	// SaveSession creates or replaces a session.
	SaveSession(ctx context.Context, session *core.Session) error
}

// Store is the persistence contract of the retrieval engine.
type Store interface {
	DocumentRepository
	ChunkRepository
	SessionRepository

	// NextDocumentID mints a new, never used, document ID.
	NextDocumentID() (core.ID, error)

	// NextChunkID mints a new chunk ID. IDs increase monotonically, so they
	// also record insertion order.
	NextChunkID() (core.ID, error)

	// Commit writes the batch. Document and session records are written last,
	// so a chunk whose document is missing belongs to an interrupted commit.
	Commit(ctx context.Context, batch *Batch) error

	// Clear deletes every document, chunk, vector and session.
	Clear(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
