package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
)

// GetSession retrieves one session.
func (s *Store) GetSession(ctx context.Context, id string) (*core.Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var result *core.Session
	err := s.backend.View(func(tx *badger.Txn) error {
		session, ok, err := readValue(tx, makeSessionKey(id), storage.UnmarshalSession)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: session %s", storage.ErrNotFound, id)
		}
		result = session
		return nil
	})
	return result, err
}

// ListSessions returns every stored session in key order.
func (s *Store) ListSessions(ctx context.Context) ([]*core.Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var result []*core.Session
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(sessionPrefix), nil, false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				session, err := storage.UnmarshalSession(val)
				if err != nil {
					return err
				}
				result = append(result, session)
				return nil
			})
		})
	})
	return result, err
}

// SaveSession creates or replaces a session.
func (s *Store) SaveSession(ctx context.Context, session *core.Session) error {
	return s.Commit(ctx, &storage.Batch{Sessions: []*core.Session{session}})
}
