package user

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/azerweys/panel/backend/internal/model/permission"
	"github.com/azerweys/panel/backend/internal/model/user"
	"github.com/azerweys/panel/backend/internal/service/audit"
	"github.com/azerweys/panel/backend/internal/service/mail"
)

const (
	// MinPasswordLength applies to resets and admin password changes.
	MinPasswordLength = 6
	// ResetCodeTTL is how long an emailed reset code stays valid.
	ResetCodeTTL = 10 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalid            = errors.New("invalid user data")
	ErrSelfDelete         = errors.New("owner cannot delete own account")
	ErrNoEmail            = errors.New("no email address for this user")
	ErrInvalidOTP         = errors.New("invalid reset code")
	ErrOTPExpired         = errors.New("reset code expired")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrMailFailed         = errors.New("reset code could not be sent")
)

// Permissions is the part of the permission service accounts depend on.
type Permissions interface {
	EnsureRole(ctx context.Context, role user.Role) error
	Replace(ctx context.Context, table permission.Table) error
}

// CreateRequest is the payload of a new account.
type CreateRequest struct {
	Username    string    `json:"username" validate:"required"`
	Password    string    `json:"password" validate:"required"`
	DisplayName string    `json:"displayName" validate:"required"`
	Email       string    `json:"email" validate:"required,email"`
	Role        user.Role `json:"role" validate:"required"`
}

// UpdateRequest changes an account. Empty fields keep their value.
type UpdateRequest struct {
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email" validate:"omitempty,email"`
	Role        user.Role `json:"role"`
	NewPassword string    `json:"newPassword"`
}

// ResetRequest completes a password reset.
type ResetRequest struct {
	Username    string `json:"username"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// Service manages accounts and their credentials.
type Service struct {
	store    user.Store
	perms    Permissions
	mailer   mail.Sender
	audit    audit.Notifier
	validate *validator.Validate
	now      func() time.Time
	hashCost int
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHashCost sets the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(store user.Store, perms Permissions, mailer mail.Sender, notifier audit.Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		perms:    perms,
		mailer:   mailer,
		audit:    notifier,
		validate: validator.New(),
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (user.Identity, error) {
	u, err := s.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.Identity{}, ErrInvalidCredentials
		}
		return user.Identity{}, fmt.Errorf("get user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return user.Identity{}, ErrInvalidCredentials
	}
	identity := u.Identity()
	s.audit.Notify(identity, "sistemə daxil oldu.")
	return identity, nil
}

// Logout records the end of a session.
func (s *Service) Logout(actor user.Identity) {
	s.audit.Notify(actor, "sistemdən çıxış etdi.")
}

// VerifyOwner checks password against the owner account.
func (s *Service) VerifyOwner(ctx context.Context, password string) error {
	users, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if u.Role != user.RoleOwner {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil {
			return nil
		}
		break
	}
	return ErrInvalidCredentials
}

// Create adds an account and gives an unseen role an empty permission set.
func (s *Service) Create(ctx context.Context, actor user.Identity, req CreateRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return err
	}
	u := user.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: hash,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if err := s.perms.EnsureRole(ctx, req.Role); err != nil {
		return err
	}
	s.audit.Notify(actor, fmt.Sprintf("<b>%s (%s)</b> adlı yeni istifadəçi yaratdı.", html.EscapeString(req.DisplayName), html.EscapeString(string(req.Role))))
	return nil
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Update applies req to username. A new password shorter than
// MinPasswordLength is ignored.
func (s *Service) Update(ctx context.Context, actor user.Identity, username string, req UpdateRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	u, err := s.store.Get(ctx, username)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if req.DisplayName != "" {
		u.DisplayName = req.DisplayName
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	if req.Role != "" {
		u.Role = req.Role
	}
	if len(req.NewPassword) >= MinPasswordLength {
		if u.PasswordHash, err = s.hash(req.NewPassword); err != nil {
			return err
		}
	}
	if err := s.store.Save(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	s.audit.Notify(actor, fmt.Sprintf("<b>%s</b> adlı istifadəçinin məlumatlarını yenilədi.", html.EscapeString(username)))
	return nil
}

// Delete removes username. Nobody can delete their own account.
func (s *Service) Delete(ctx context.Context, actor user.Identity, username string) error {
	if username == actor.Username {
		return ErrSelfDelete
	}
	u, err := s.store.Get(ctx, username)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if err := s.store.Delete(ctx, username); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.audit.Notify(actor, fmt.Sprintf("<b>%s (%s)</b> adlı istifadəçini sildi.", html.EscapeString(u.DisplayName), html.EscapeString(username)))
	return nil
}

// RequestReset mails a one-time code to the user and returns it with the
// address it went to. The caller keeps the code in the session.
func (s *Service) RequestReset(ctx context.Context, username string) (user.ResetCode, string, error) {
	u, err := s.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.ResetCode{}, "", ErrNoEmail
		}
		return user.ResetCode{}, "", fmt.Errorf("get user: %w", err)
	}
	if u.Email == "" {
		return user.ResetCode{}, "", ErrNoEmail
	}

	code, err := newOTP()
	if err != nil {
		return user.ResetCode{}, "", err
	}
	reset := user.ResetCode{Username: username, Code: code, ExpiresAt: s.now().Add(ResetCodeTTL)}

	body := fmt.Sprintf("Salam, %s.\n\nŞifrənizi sıfırlamaq üçün təsdiq kodunuz: %s\n\nBu kod 10 dəqiqə ərzində etibarlıdır.", u.DisplayName, code)
	if err := s.mailer.Send(ctx, u.Email, "Şifrə Sıfırlama Kodu", body); err != nil {
		log.Error().Err(err).Str("user", username).Msg("[user] reset mail failed")
		return user.ResetCode{}, "", fmt.Errorf("%w: %v", ErrMailFailed, err)
	}
	return reset, u.Email, nil
}

// ResetPassword checks req against the pending code and stores the new
// password.
func (s *Service) ResetPassword(ctx context.Context, pending *user.ResetCode, req ResetRequest) error {
	if pending == nil || pending.Username != req.Username || pending.Code != req.OTP {
		return ErrInvalidOTP
	}
	if s.now().After(pending.ExpiresAt) {
		return ErrOTPExpired
	}
	if len(req.NewPassword) < MinPasswordLength {
		return ErrWeakPassword
	}
	u, err := s.store.Get(ctx, req.Username)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if u.PasswordHash, err = s.hash(req.NewPassword); err != nil {
		return err
	}
	if err := s.store.Save(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	s.audit.Notify(user.Identity{Username: u.Username, DisplayName: u.Username, Role: u.Role}, "mail vasitəsilə şifrəsini yenilədi.")
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
