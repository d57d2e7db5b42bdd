package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
)

func readDocument(tx *badger.Txn, id core.ID) (*core.Document, bool, error) {
	return readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
}

// GetDocuments retrieves documents by ID, skipping missing ones.
func (s *Store) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var result []*core.Document
	err := s.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, ok, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if ok {
				result = append(result, doc)
			}
		}
		return nil
	})
	return result, err
}

// ListDocuments returns every document in ID order.
func (s *Store) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	return s.filterDocuments(ctx, func(*core.Document) bool { return true })
}

// FindDocumentsByFilename returns documents with any of the given filenames.
func (s *Store) FindDocumentsByFilename(ctx context.Context, filenames ...string) ([]*core.Document, error) {
	wanted := make(map[string]bool, len(filenames))
	for _, name := range filenames {
		wanted[name] = true
	}
	return s.filterDocuments(ctx, func(doc *core.Document) bool { return wanted[doc.Filename] })
}

func (s *Store) filterDocuments(ctx context.Context, keep func(*core.Document) bool) ([]*core.Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var result []*core.Document
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(documentPrefix), nil, false, func(item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				if keep(doc) {
					result = append(result, doc)
				}
				return nil
			})
		})
	})
	return result, err
}

// FindDocumentByChecksum returns the earliest document with checksum.
func (s *Store) FindDocumentByChecksum(ctx context.Context, checksum uint64) (*core.Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var result *core.Document
	err := s.backend.View(func(tx *badger.Txn) error {
		var docID core.ID
		err := scanPrefix(tx, makePartialDocumentSumKey(checksum), nil, true, func(item *badger.Item) error {
			docID = trailingID(item.Key())
			return errStopScan
		})
		if err != nil {
			return err
		}
		if docID == 0 {
			return storage.ErrNotFound
		}
		doc, ok, err := readDocument(tx, docID)
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrNotFound
		}
		result = doc
		return nil
	})
	return result, err
}
