package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/azerweys/panel/backend/internal/model/order"
)

var orderPrefix = []byte("order:")

// OrderStore persists orders. Numeric sale numbers are zero padded in the
// key so listing follows numeric order; anything else sorts after them.
type OrderStore struct {
	db *badger.DB
}

func NewOrderStore(db *badger.DB) *OrderStore {
	return &OrderStore{db: db}
}

func orderKey(saleNo string) []byte {
	if n, err := strconv.ParseUint(saleNo, 10, 64); err == nil {
		return []byte(fmt.Sprintf("%s%020d", orderPrefix, n))
	}
	return []byte(fmt.Sprintf("%s~%s", orderPrefix, saleNo))
}

func (s *OrderStore) List(_ context.Context) ([]order.Order, error) {
	var orders []order.Order
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		orders, err = scan[order.Order](txn, orderPrefix)
		return err
	})
	return orders, err
}

func (s *OrderStore) Get(_ context.Context, saleNo string) (order.Order, error) {
	var o order.Order
	err := s.db.View(func(txn *badger.Txn) error {
		return load(txn, orderKey(saleNo), &o, order.ErrNotFound)
	})
	return o, err
}

func (s *OrderStore) Save(_ context.Context, o order.Order) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return store(txn, orderKey(o.SaleNo), o)
	})
}

func (s *OrderStore) Delete(_ context.Context, saleNo string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := orderKey(saleNo)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return order.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}
