package storage

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/azerweys/panel/backend/internal/model/user"
)

var userPrefix = []byte("user:")

// UserStore persists accounts under "user:<username>".
type UserStore struct {
	db *badger.DB
}

func NewUserStore(db *badger.DB) *UserStore {
	return &UserStore{db: db}
}

func userKey(username string) []byte {
	return append(append([]byte(nil), userPrefix...), username...)
}

func (s *UserStore) List(_ context.Context) ([]user.User, error) {
	var users []user.User
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		users, err = scan[user.User](txn, userPrefix)
		return err
	})
	return users, err
}

func (s *UserStore) Get(_ context.Context, username string) (user.User, error) {
	var u user.User
	err := s.db.View(func(txn *badger.Txn) error {
		return load(txn, userKey(username), &u, user.ErrNotFound)
	})
	return u, err
}

// Create fails with user.ErrExists when the username is taken.
func (s *UserStore) Create(_ context.Context, u user.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := userKey(u.Username)
		if _, err := txn.Get(key); err == nil {
			return user.ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return store(txn, key, u)
	})
}

// Save overwrites an existing account.
func (s *UserStore) Save(_ context.Context, u user.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := userKey(u.Username)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return user.ErrNotFound
		} else if err != nil {
			return err
		}
		return store(txn, key, u)
	})
}

func (s *UserStore) Delete(_ context.Context, username string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := userKey(username)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return user.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (s *UserStore) Count(_ context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = userPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(userPrefix); it.ValidForPrefix(userPrefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
