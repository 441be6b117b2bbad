package chat

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/azerweys/panel/backend/internal/model/user"
)

// ErrAnonymous is returned when registering a connection without identity.
var ErrAnonymous = errors.New("connection has no identity")

// Conn is the write side of a live connection.
type Conn interface {
	// Send writes one text frame. It fails once the connection is closed.
	Send(payload []byte) error
	// Open reports whether the connection still accepts writes.
	Open() bool
	Close() error
}

// Record binds a connection to the identity captured at upgrade time.
type Record struct {
	ID       string
	Conn     Conn
	Identity user.Identity
}

// Registry tracks the connections currently joined to the chat.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// Register stores conn under a fresh random id.
func (r *Registry) Register(conn Conn, identity user.Identity) (Record, error) {
	if identity.Username == "" {
		return Record{}, ErrAnonymous
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	for _, taken := r.records[id]; taken; _, taken = r.records[id] {
		id = uuid.NewString()
	}
	rec := Record{ID: id, Conn: conn, Identity: identity}
	r.records[id] = rec
	return rec, nil
}

// Unregister removes id and reports whether it was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return false
	}
	delete(r.records, id)
	return true
}

// ForEachOpen calls fn for every registered connection that is still open.
// It iterates over a snapshot taken on entry, so fn may register or
// unregister connections.
func (r *Registry) ForEachOpen(fn func(Record)) {
	r.mu.RLock()
	snapshot := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		snapshot = append(snapshot, rec)
	}
	r.mu.RUnlock()

	for _, rec := range snapshot {
		if !rec.Conn.Open() {
			continue
		}
		fn(rec)
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Drain empties the registry and closes every connection it held.
func (r *Registry) Drain() int {
	r.mu.Lock()
	records := r.records
	r.records = make(map[string]Record)
	r.mu.Unlock()

	for _, rec := range records {
		_ = rec.Conn.Close()
	}
	return len(records)
}
