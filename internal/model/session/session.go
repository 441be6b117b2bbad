package session

import (
	"context"
	"errors"
	"time"

	"github.com/azerweys/panel/backend/internal/model/user"
)

var ErrNotFound = errors.New("session not found")

// Session is the server side state behind the sid cookie.
type Session struct {
	ID            string          `json:"id"`
	User          *user.Identity  `json:"user,omitempty"`
	OwnerVerified bool            `json:"ownerVerified,omitempty"`
	Reset         *user.ResetCode `json:"reset,omitempty"`
}

// Authenticated reports whether a user logged in on this session.
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil
}

// Store persists sessions with an expiry.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
