package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
)

// Store implements storage.Store on BadgerDB. It owns its Backend and closes
// it on Close.
type Store struct {
	backend *Backend
	logger  *slog.Logger

	seqMu    sync.Mutex
	docSeq   *badger.Sequence
	chunkSeq *badger.Sequence
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a Store on an open backend.
func NewStore(backend *Backend) (*Store, error) {
	s := &Store{
		backend: backend,
		logger:  backend.logger.With("component", "store"),
	}
	if err := s.acquireSequences(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) acquireSequences() error {
	docSeq, err := s.backend.GetSequence(documentIDSeq)
	if err != nil {
		return err
	}
	chunkSeq, err := s.backend.GetSequence(chunkIDSeq)
	if err != nil {
		docSeq.Release()
		return err
	}
	s.docSeq, s.chunkSeq = docSeq, chunkSeq
	return nil
}

func (s *Store) releaseSequences() error {
	var firstErr error
	for _, seq := range []*badger.Sequence{s.docSeq, s.chunkSeq} {
		if seq == nil {
			continue
		}
		if err := seq.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.docSeq, s.chunkSeq = nil, nil
	return firstErr
}

// Close releases the ID sequences and closes the backend.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	s.seqMu.Lock()
	err := s.releaseSequences()
	s.seqMu.Unlock()
	if closeErr := s.backend.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (s *Store) checkOpen() error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// ensureSequences reacquires the ID sequences after a failed Clear.
// Must be called with seqMu held.
func (s *Store) ensureSequences() error {
	if s.docSeq != nil && s.chunkSeq != nil {
		return nil
	}
	if err := s.releaseSequences(); err != nil {
		return err
	}
	return s.acquireSequences()
}

func (s *Store) next(chunk bool) (core.ID, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if err := s.ensureSequences(); err != nil {
		return 0, fmt.Errorf("acquire id sequences: %w", err)
	}
	seq := s.docSeq
	if chunk {
		seq = s.chunkSeq
	}
	nextID, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = seq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// NextDocumentID mints a new document ID.
func (s *Store) NextDocumentID() (core.ID, error) {
	return s.next(false)
}

// NextChunkID mints a new chunk ID.
func (s *Store) NextChunkID() (core.ID, error) {
	return s.next(true)
}

// record is one key/value pair written by Commit.
type record struct {
	key, value []byte
}

// chunkRecords returns the chunk, document-chunk and vector records of batch.
func chunkRecords(batch *storage.Batch) []record {
	records := make([]record, 0, 2*len(batch.Chunks)+len(batch.Vectors))
	for _, chunk := range batch.Chunks {
		records = append(records,
			record{makeChunkKey(chunk.ID), storage.MarshalChunk(chunk)},
			record{makeDocumentChunkKey(chunk.DocumentID, chunk.ID), nil})
	}
	for _, id := range slices.Sorted(maps.Keys(batch.Vectors)) {
		records = append(records, record{makeVectorKey(id), storage.MarshalVector(batch.Vectors[id])})
	}
	return records
}

// Commit writes batch. Chunk and vector records are written first, split
// across as many transactions as badger's size limit requires. Document and
// session records follow in one final transaction; until it commits, the new
// chunks belong to no stored document. If any step fails the new chunks are
// deleted again.
func (s *Store) Commit(ctx context.Context, batch *storage.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}
	if err := batch.Validate(); err != nil {
		return err
	}

	records := chunkRecords(batch)
	err := s.backend.UpdateEach(len(records), func(tx *badger.Txn, i int) error {
		return tx.Set(records[i].key, records[i].value)
	})
	if err == nil {
		err = s.backend.Update(func(tx *badger.Txn) error {
			for _, doc := range batch.Documents {
				if err := tx.Set(makeDocumentKey(doc.ID), storage.MarshalDocument(doc)); err != nil {
					return err
				}
				if err := tx.Set(makeDocumentSumKey(doc.Checksum, doc.ID), nil); err != nil {
					return err
				}
			}
			for _, session := range batch.Sessions {
				if err := tx.Set(makeSessionKey(session.ID), storage.MarshalSession(session)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err != nil {
		if len(batch.Chunks) > 0 {
			if delErr := s.deleteChunks(batch.Chunks); delErr != nil {
				s.logger.Error("error removing chunks of failed commit", "chunks", len(batch.Chunks), "err", delErr)
			}
		}
		return fmt.Errorf("commit batch: %w", err)
	}

	s.logger.Debug("committed batch",
		"documents", len(batch.Documents),
		"chunks", len(batch.Chunks),
		"vectors", len(batch.Vectors),
		"sessions", len(batch.Sessions))
	return nil
}

// Clear drops every key. ID sequences restart once the store is empty.
func (s *Store) Clear(ctx context.Context) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	// Leave usable sequences behind even when the drop fails
	defer func() {
		if seqErr := s.ensureSequences(); seqErr != nil && err == nil {
			err = fmt.Errorf("acquire id sequences: %w", seqErr)
		}
	}()
	if err := s.releaseSequences(); err != nil {
		return err
	}
	if err := s.backend.DropAll(); err != nil {
		return fmt.Errorf("drop all: %w", err)
	}
	s.logger.Info("store cleared")
	return nil
}

// readValue fetches key and decodes it with unmarshal. A missing key yields
// a nil result and no error.
func readValue[T any](tx *badger.Txn, key []byte, unmarshal func([]byte) (T, error)) (T, bool, error) {
	var zero T
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return zero, false, nil
		}
		return zero, false, err
	}

	var result T
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		result, unmarshalErr = unmarshal(val)
		return unmarshalErr
	})
	if err != nil {
		return zero, false, err
	}
	return result, true, nil
}

// scanPrefix calls fn for every key under prefix, starting at seek.
// Values are only fetched when fn reads them. Returning errStopScan from fn
// ends the scan early without error.
func scanPrefix(tx *badger.Txn, prefix, seek []byte, keysOnly bool, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = !keysOnly
	iter := tx.NewIterator(opts)
	defer iter.Close()

	if seek == nil {
		seek = prefix
	}
	for iter.Seek(seek); iter.Valid(); iter.Next() {
		if err := fn(iter.Item()); err != nil {
			if err == errStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

var errStopScan = errors.New("stop scan")
