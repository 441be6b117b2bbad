package user

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/azerweys/panel/backend/internal/model/permission"
	"github.com/azerweys/panel/backend/internal/model/user"
)

// SeedFile is the bootstrap document for an empty store.
type SeedFile struct {
	Users []struct {
		Username    string    `yaml:"username"`
		Password    string    `yaml:"password"`
		DisplayName string    `yaml:"displayName"`
		Email       string    `yaml:"email"`
		Role        user.Role `yaml:"role"`
	} `yaml:"users"`
	Permissions permission.Table `yaml:"permissions"`
}

// Seed loads accounts and permissions from r when the user store is empty.
// It returns how many accounts were created.
func (s *Service) Seed(ctx context.Context, r io.Reader) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		log.Debug().Int("users", count).Msg("[user] store not empty, seed skipped")
		return 0, nil
	}

	var seed SeedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return 0, fmt.Errorf("decode seed: %w", err)
	}

	if len(seed.Permissions) > 0 {
		if err := s.perms.Replace(ctx, seed.Permissions); err != nil {
			return 0, err
		}
	}
	created := 0
	for _, su := range seed.Users {
		if su.Username == "" || su.Password == "" {
			return created, fmt.Errorf("%w: seed user needs username and password", ErrInvalid)
		}
		hash, err := s.hash(su.Password)
		if err != nil {
			return created, err
		}
		u := user.User{Username: su.Username, DisplayName: su.DisplayName, Email: su.Email, Role: su.Role, PasswordHash: hash}
		if err := s.store.Create(ctx, u); err != nil {
			return created, fmt.Errorf("seed user %s: %w", su.Username, err)
		}
		if err := s.perms.EnsureRole(ctx, su.Role); err != nil {
			return created, err
		}
		created++
	}
	log.Info().Int("users", created).Int("roles", len(seed.Permissions)).Msg("[user] store seeded")
	return created, nil
}
