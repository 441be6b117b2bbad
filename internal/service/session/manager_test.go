package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sessionModel "github.com/azerweys/panel/backend/internal/model/session"
	"github.com/azerweys/panel/backend/internal/model/user"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]sessionModel.Session
	ttls     map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: map[string]sessionModel.Session{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Get(_ context.Context, id string) (sessionModel.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return sessionModel.Session{}, sessionModel.ErrNotFound
	}
	return sess, nil
}

func (s *memoryStore) Save(_ context.Context, sess sessionModel.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	s.ttls[sess.ID] = ttl
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

var alice = user.Identity{Username: "alice", DisplayName: "Alice", Role: user.RoleOwner}

func TestSave_AssignsIDAndSetsCookie(t *testing.T) {
	req := require.New(t)
	store := newMemoryStore()
	m := NewManager(store, 0, false)

	sess := &sessionModel.Session{User: &alice}
	rec := httptest.NewRecorder()
	req.NoError(m.Save(context.Background(), rec, sess))
	req.NotEmpty(sess.ID)
	req.Equal(DefaultTTL, store.ttls[sess.ID])

	cookies := rec.Result().Cookies()
	req.Len(cookies, 1)
	req.Equal(CookieName, cookies[0].Name)
	req.Equal(sess.ID, cookies[0].Value)
	req.True(cookies[0].HttpOnly)
}

func TestResolve(t *testing.T) {
	store := newMemoryStore()
	m := NewManager(store, time.Hour, false)
	require.NoError(t, store.Save(context.Background(), sessionModel.Session{ID: "known", User: &alice}, time.Hour))
	require.NoError(t, store.Save(context.Background(), sessionModel.Session{ID: "anon"}, time.Hour))

	cases := []struct {
		name   string
		cookie string
		ok     bool
	}{
		{"no cookie", "", false},
		{"unknown session", "missing", false},
		{"session without user", "anon", false},
		{"logged in", "known", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.cookie != "" {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: tc.cookie})
			}
			id, ok := m.Resolve(r)
			require.Equal(t, tc.ok, ok)
			if ok {
				require.Equal(t, alice, id)
			}
		})
	}
}

func TestMiddleware_AttachesSession(t *testing.T) {
	req := require.New(t)
	store := newMemoryStore()
	m := NewManager(store, time.Hour, false)
	req.NoError(store.Save(context.Background(), sessionModel.Session{ID: "known", User: &alice}, time.Hour))

	var seen *sessionModel.Session
	var resolved bool
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		_, resolved = m.Resolve(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "known"})
	h.ServeHTTP(httptest.NewRecorder(), r)
	req.True(seen.Authenticated())
	req.True(resolved)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	req.NotNil(seen)
	req.False(seen.Authenticated())
	req.False(resolved)
}

func TestDestroy_RemovesSessionAndExpiresCookie(t *testing.T) {
	req := require.New(t)
	store := newMemoryStore()
	m := NewManager(store, time.Hour, false)
	sess := &sessionModel.Session{User: &alice}
	req.NoError(m.Save(context.Background(), httptest.NewRecorder(), sess))
	id := sess.ID

	rec := httptest.NewRecorder()
	req.NoError(m.Destroy(context.Background(), rec, sess))
	_, err := store.Get(context.Background(), id)
	req.ErrorIs(err, sessionModel.ErrNotFound)
	req.False(sess.Authenticated())
	req.Equal(-1, rec.Result().Cookies()[0].MaxAge)
}

func TestRenew_IssuesFreshID(t *testing.T) {
	req := require.New(t)
	store := newMemoryStore()
	m := NewManager(store, time.Hour, false)
	ctx := context.Background()

	sess := &sessionModel.Session{}
	req.NoError(m.Save(ctx, httptest.NewRecorder(), sess))
	planted := sess.ID

	sess.User = &alice
	rec := httptest.NewRecorder()
	req.NoError(m.Renew(ctx, rec, sess))
	req.NotEqual(planted, sess.ID)
	req.Equal(sess.ID, rec.Result().Cookies()[0].Value)

	_, err := store.Get(ctx, planted)
	req.ErrorIs(err, sessionModel.ErrNotFound)
	stored, err := store.Get(ctx, sess.ID)
	req.NoError(err)
	req.Equal(&alice, stored.User)
}
