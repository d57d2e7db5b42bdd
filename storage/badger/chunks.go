package badger

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
)

// GetChunks retrieves chunks by ID, skipping missing ones.
func (s *Store) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var result []*core.Chunk
	err := s.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, ok, err := readValue(tx, makeChunkKey(id), storage.UnmarshalChunk)
			if err != nil {
				return err
			}
			if ok {
				result = append(result, chunk)
			}
		}
		return nil
	})
	return result, err
}

// ScanChunks returns up to limit chunks with IDs above after, in ID order.
func (s *Store) ScanChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if after == math.MaxUint64 {
		return nil, nil
	}
	var result []*core.Chunk
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(chunkPrefix), makeChunkKey(after+1), false, func(item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && len(result) >= limit {
				return errStopScan
			}
			return item.Value(func(val []byte) error {
				chunk, err := storage.UnmarshalChunk(val)
				if err != nil {
					return err
				}
				result = append(result, chunk)
				return nil
			})
		})
	})
	return result, err
}

// CountChunks returns the number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	count := 0
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(chunkPrefix), nil, true, func(item *badger.Item) error {
			count++
			return nil
		})
	})
	return count, err
}

// ChunkIDsByDocument returns the chunk IDs of the given documents in
// ascending order.
func (s *Store) ChunkIDsByDocument(ctx context.Context, documentIDs ...core.ID) ([]core.ID, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var result []core.ID
	err := s.backend.View(func(tx *badger.Txn) error {
		for _, docID := range documentIDs {
			err := scanPrefix(tx, makePartialDocumentChunkKey(docID), nil, true, func(item *badger.Item) error {
				result = append(result, trailingID(item.Key()))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	slices.Sort(result)
	return slices.Compact(result), err
}

// GetVectors returns the stored vectors for ids.
func (s *Store) GetVectors(ctx context.Context, ids ...core.ID) (map[core.ID][]float32, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	result := make(map[core.ID][]float32, len(ids))
	err := s.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			vector, ok, err := readValue(tx, makeVectorKey(id), storage.UnmarshalVector)
			if err != nil {
				return err
			}
			if ok {
				result[id] = vector
			}
		}
		return nil
	})
	return result, err
}

// PutVectors replaces the vectors of existing chunks. Large maps are
// written across several transactions; a missing chunk stops the write but
// leaves earlier transactions committed.
func (s *Store) PutVectors(ctx context.Context, vectors map[core.ID][]float32) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ids := slices.Sorted(maps.Keys(vectors))
	return s.backend.UpdateEach(len(ids), func(tx *badger.Txn, i int) error {
		id := ids[i]
		if _, err := tx.Get(makeChunkKey(id)); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: chunk %d", storage.ErrNotFound, id)
			}
			return err
		}
		return tx.Set(makeVectorKey(id), storage.MarshalVector(vectors[id]))
	})
}

// DeleteChunks removes chunks together with their vectors and document
// index entries. Missing chunks are skipped.
func (s *Store) DeleteChunks(ctx context.Context, ids ...core.ID) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	chunks, err := s.GetChunks(ctx, ids...)
	if err != nil {
		return err
	}
	return s.deleteChunks(chunks)
}

func (s *Store) deleteChunks(chunks []*core.Chunk) error {
	return s.backend.UpdateEach(len(chunks), func(tx *badger.Txn, i int) error {
		chunk := chunks[i]
		for _, key := range [][]byte{
			makeChunkKey(chunk.ID),
			makeDocumentChunkKey(chunk.DocumentID, chunk.ID),
			makeVectorKey(chunk.ID),
		} {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
