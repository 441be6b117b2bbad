package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	sessionModel "github.com/azerweys/panel/backend/internal/model/session"
	"github.com/azerweys/panel/backend/internal/model/user"
)

// CookieName carries the session id.
const CookieName = "sid"

// DefaultTTL is how long an idle session lives.
const DefaultTTL = 24 * time.Hour

type ctxKey struct{}

// Manager binds the sid cookie to sessions in the store.
type Manager struct {
	store  sessionModel.Store
	ttl    time.Duration
	secure bool
}

// NewManager creates a session manager. A non-positive ttl means DefaultTTL.
func NewManager(store sessionModel.Store, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, secure: secure}
}

// Load reads the session named by the request cookie.
func (m *Manager) Load(r *http.Request) (sessionModel.Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return sessionModel.Session{}, false
	}
	sess, err := m.store.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, sessionModel.ErrNotFound) {
			log.Error().Err(err).Msg("[session] load failed")
		}
		return sessionModel.Session{}, false
	}
	return sess, true
}

// Middleware attaches the request's session, or a fresh unsaved one, to the
// request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := m.Load(r)
		if !ok {
			sess = sessionModel.Session{}
		}
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), &sess)))
	})
}

// WithContext stores sess in ctx.
func WithContext(ctx context.Context, sess *sessionModel.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session attached by Middleware. It never returns nil.
func FromContext(ctx context.Context) *sessionModel.Session {
	if sess, ok := ctx.Value(ctxKey{}).(*sessionModel.Session); ok && sess != nil {
		return sess
	}
	return &sessionModel.Session{}
}

// Save persists sess and refreshes the cookie, assigning an id on first save.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, sess *sessionModel.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if err := m.store.Save(ctx, *sess, m.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Renew moves sess to a fresh id and drops the record under the old one, so a
// session id known before login never carries the logged in identity.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, sess *sessionModel.Session) error {
	if old := sess.ID; old != "" {
		if err := m.store.Delete(ctx, old); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	sess.ID = ""
	return m.Save(ctx, w, sess)
}

// Destroy deletes sess and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sess *sessionModel.Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
	})
	if sess.ID == "" {
		return nil
	}
	id := sess.ID
	*sess = sessionModel.Session{}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Resolve returns the identity logged in on the request's session.
func (m *Manager) Resolve(r *http.Request) (user.Identity, bool) {
	if sess, ok := r.Context().Value(ctxKey{}).(*sessionModel.Session); ok && sess != nil {
		if sess.Authenticated() {
			return *sess.User, true
		}
		return user.Identity{}, false
	}
	sess, ok := m.Load(r)
	if !ok || !sess.Authenticated() {
		return user.Identity{}, false
	}
	return *sess.User, true
}
