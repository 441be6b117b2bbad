package storage

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/azerweys/panel/backend/internal/model/permission"
)

var permissionsKey = []byte("permissions")

var errNoTable = errors.New("no permission table")

// PermissionStore keeps the role table as one record.
type PermissionStore struct {
	db *badger.DB
}

func NewPermissionStore(db *badger.DB) *PermissionStore {
	return &PermissionStore{db: db}
}

// Load returns an empty table when none was saved yet.
func (s *PermissionStore) Load(_ context.Context) (permission.Table, error) {
	table := permission.Table{}
	err := s.db.View(func(txn *badger.Txn) error {
		return load(txn, permissionsKey, &table, errNoTable)
	})
	if errors.Is(err, errNoTable) {
		return permission.Table{}, nil
	}
	if table == nil {
		table = permission.Table{}
	}
	return table, err
}

func (s *PermissionStore) Save(_ context.Context, t permission.Table) error {
	if t == nil {
		t = permission.Table{}
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return store(txn, permissionsKey, t)
	})
}
