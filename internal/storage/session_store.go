package storage

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/azerweys/panel/backend/internal/model/session"
)

const sessionPrefix = "session:"

// SessionStore keeps sessions as badger entries with a TTL, so expired
// sessions disappear without a sweeper.
type SessionStore struct {
	db *badger.DB
}

func NewSessionStore(db *badger.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Get(_ context.Context, id string) (session.Session, error) {
	var sess session.Session
	err := s.db.View(func(txn *badger.Txn) error {
		return load(txn, []byte(sessionPrefix+id), &sess, session.ErrNotFound)
	})
	return sess, err
}

func (s *SessionStore) Save(_ context.Context, sess session.Session, ttl time.Duration) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(sessionPrefix+sess.ID), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionPrefix + id))
	})
}
