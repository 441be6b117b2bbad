package user

import (
	"context"
	"errors"
	"time"
)

// Role names a permission group. Owner bypasses every permission check.
type Role string

const RoleOwner Role = "owner"

var (
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("user already exists")
)

// Identity is the authenticated user snapshot kept in the session.
type Identity struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// IsOwner reports whether the identity carries the owner role.
func (i Identity) IsOwner() bool {
	return i.Role == RoleOwner
}

// User is a stored account. PasswordHash never leaves the server.
type User struct {
	Username     string `json:"username"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-" cbor:"passwordHash"`
}

// Identity returns the session view of the user.
func (u User) Identity() Identity {
	return Identity{Username: u.Username, DisplayName: u.DisplayName, Role: u.Role}
}

// ResetCode is a pending one-time password reset.
type ResetCode struct {
	Username  string    `json:"username"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists accounts keyed by username.
type Store interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, u User) error
	Save(ctx context.Context, u User) error
	Delete(ctx context.Context, username string) error
	Count(ctx context.Context) (int, error)
}
