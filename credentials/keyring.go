// Package credentials stores the portal password in the operating system's
// keyring so it does not have to be passed on every run.
package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service name paperboy's entries live under.
const Service = "paperboy"

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// ErrNotFound is returned when no password is stored for a user.
var ErrNotFound = errors.New("no password stored")

// Store reads and writes portal passwords keyed by username.
type Store struct {
	Service string
}

// NewStore returns a Store using the default service name.
func NewStore() *Store {
	return &Store{Service: Service}
}

// Password returns the stored password for username.
func (s *Store) Password(username string) (string, error) {
	password, err := keyringGet(s.Service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w for %s", ErrNotFound, username)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read password from keyring: %w", err)
	}
	return password, nil
}

// SetPassword stores password for username, replacing any previous entry.
func (s *Store) SetPassword(username, password string) error {
	if username == "" {
		return errors.New("username is required")
	}
	if err := keyringSet(s.Service, username, password); err != nil {
		return fmt.Errorf("failed to store password in keyring: %w", err)
	}
	return nil
}

// DeletePassword removes the stored password for username. Deleting a
// missing entry is not an error.
func (s *Store) DeletePassword(username string) error {
	err := keyringDelete(s.Service, username)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete password from keyring: %w", err)
	}
	return nil
}
