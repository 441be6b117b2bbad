package permission

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/azerweys/panel/backend/internal/model/permission"
	"github.com/azerweys/panel/backend/internal/model/user"
)

// Service answers role permission questions against the stored table.
type Service struct {
	store permission.Store
	mu    sync.Mutex
}

func NewService(store permission.Store) *Service {
	return &Service{store: store}
}

// For returns the effective permissions of identity. The owner always gets
// the full set; an unknown role gets nothing.
func (s *Service) For(ctx context.Context, identity user.Identity) (permission.Set, error) {
	set, _, err := s.Lookup(ctx, identity)
	return set, err
}

// Lookup is For that also reports whether identity's role has an entry.
func (s *Service) Lookup(ctx context.Context, identity user.Identity) (permission.Set, bool, error) {
	if identity.IsOwner() {
		return permission.Full(), true, nil
	}
	table, err := s.store.Load(ctx)
	if err != nil {
		return permission.Set{}, false, fmt.Errorf("load permissions: %w", err)
	}
	set, ok := table[string(identity.Role)]
	return set, ok, nil
}

// All returns the whole table.
func (s *Service) All(ctx context.Context) (permission.Table, error) {
	table, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	if table == nil {
		table = permission.Table{}
	}
	return table, nil
}

// Replace overwrites the table.
func (s *Service) Replace(ctx context.Context, table permission.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if table == nil {
		table = permission.Table{}
	}
	if err := s.store.Save(ctx, table); err != nil {
		return fmt.Errorf("save permissions: %w", err)
	}
	log.Info().Int("roles", len(table)).Msg("[permission] table replaced")
	return nil
}

// EnsureRole adds an all-false entry for role unless one exists.
func (s *Service) EnsureRole(ctx context.Context, role user.Role) error {
	if role == user.RoleOwner || role == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	if _, ok := table[string(role)]; ok {
		return nil
	}
	if table == nil {
		table = permission.Table{}
	}
	table[string(role)] = permission.Set{}
	if err := s.store.Save(ctx, table); err != nil {
		return fmt.Errorf("save permissions: %w", err)
	}
	log.Info().Str("role", string(role)).Msg("[permission] default set created")
	return nil
}
