package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/infrahq/broker/internal/access"
)

// User is an API caller configured in the server config file. Terminal and
// applet services are configured with the super role.
type User struct {
	Name      string `mapstructure:"name" validate:"required"`
	AccessKey string `mapstructure:"accessKey" validate:"required,min=16"`
	Role      string `mapstructure:"role" validate:"omitempty,oneof=user super"`
}

type Config struct {
	Users []User `mapstructure:"users" validate:"dive"`
	// PolicyFile is the path of the YAML file with assets, permissions, ACL
	// rules, endpoints and applet hosts.
	PolicyFile string `mapstructure:"policyFile" validate:"required"`
}

type storedUser struct {
	keyHash [sha256.Size]byte
	user    access.User
}

// userStore authenticates access keys. Only hashes of the keys are kept.
type userStore struct {
	users []storedUser
}

func loadUsers(users []User) (*userStore, error) {
	store := &userStore{}
	names := map[string]bool{}
	keys := map[[sha256.Size]byte]bool{}

	for _, u := range users {
		if names[u.Name] {
			return nil, fmt.Errorf("user %q is configured more than once", u.Name)
		}
		names[u.Name] = true

		hash := sha256.Sum256([]byte(u.AccessKey))
		if keys[hash] {
			return nil, fmt.Errorf("user %q: access key is already used by another user", u.Name)
		}
		keys[hash] = true

		role := access.Role(u.Role)
		if role == "" {
			role = access.RoleUser
		}

		store.users = append(store.users, storedUser{
			keyHash: hash,
			user:    access.User{Name: u.Name, Role: role},
		})
	}
	return store, nil
}

func (s *Server) loadConfig(config Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}

	users, err := loadUsers(config.Users)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	s.users = users
	return nil
}

// lookup returns the user that owns key. Every configured key is compared so
// that the time taken does not depend on which user matched.
func (s *userStore) lookup(key string) (*access.User, bool) {
	hash := sha256.Sum256([]byte(key))

	var found *access.User
	for i := range s.users {
		if subtle.ConstantTimeCompare(hash[:], s.users[i].keyHash[:]) == 1 {
			user := s.users[i].user
			found = &user
		}
	}
	return found, found != nil
}
