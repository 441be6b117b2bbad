package order

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/azerweys/panel/backend/internal/model/order"
	"github.com/azerweys/panel/backend/internal/model/permission"
	"github.com/azerweys/panel/backend/internal/model/user"
)

type memoryStore struct {
	mu     sync.Mutex
	orders map[string]order.Order
}

func newMemoryStore(orders ...order.Order) *memoryStore {
	m := &memoryStore{orders: map[string]order.Order{}}
	for _, o := range orders {
		m.orders[o.SaleNo] = o
	}
	return m
}

func (m *memoryStore) List(context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].SaleNo)
		b, _ := strconv.Atoi(out[j].SaleNo)
		return a < b
	})
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, saleNo string) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[saleNo]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (m *memoryStore) Save(_ context.Context, o order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.SaleNo] = o
	return nil
}

func (m *memoryStore) Delete(_ context.Context, saleNo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[saleNo]; !ok {
		return order.ErrNotFound
	}
	delete(m.orders, saleNo)
	return nil
}

type staticPermissions permission.Table

func (p staticPermissions) For(_ context.Context, identity user.Identity) (permission.Set, error) {
	if identity.IsOwner() {
		return permission.Full(), nil
	}
	return p[string(identity.Role)], nil
}

type nopAudit struct{}

func (nopAudit) Notify(user.Identity, string) {}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingAudit) Notify(_ user.Identity, action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}
