package user

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/azerweys/panel/backend/internal/model/permission"
	"github.com/azerweys/panel/backend/internal/model/user"
)

type memoryStore struct {
	mu    sync.Mutex
	users map[string]user.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[string]user.User{}}
}

func (m *memoryStore) List(context.Context) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]user.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, username string) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (m *memoryStore) Create(_ context.Context, u user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return user.ErrExists
	}
	m.users[u.Username] = u
	return nil
}

func (m *memoryStore) Save(_ context.Context, u user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; !ok {
		return user.ErrNotFound
	}
	m.users[u.Username] = u
	return nil
}

func (m *memoryStore) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return user.ErrNotFound
	}
	delete(m.users, username)
	return nil
}

func (m *memoryStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

type fakePermissions struct {
	ensured []user.Role
	table   permission.Table
}

func (f *fakePermissions) EnsureRole(_ context.Context, role user.Role) error {
	f.ensured = append(f.ensured, role)
	return nil
}

func (f *fakePermissions) Replace(_ context.Context, t permission.Table) error {
	f.table = t
	return nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

type auditEntry struct {
	actor  user.Identity
	action string
}

type recorder struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (r *recorder) Notify(actor user.Identity, action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{actor, action})
}

var errSMTPDown = errors.New("smtp down")
