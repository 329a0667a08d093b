package library

import (
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// UserService is thin account CRUD over UserStorage. Credentials are
// plaintext-matched; the circulation engine never consults this service
// beyond treating usernames as opaque identity keys.
type UserService struct {
	storage UserStorage
	users   []*UserAccount
	log     *slog.Logger
}

// NewUserService loads accounts from storage.
func NewUserService(storage UserStorage, log *slog.Logger) (*UserService, error) {
	users, err := storage.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load user accounts")
	}
	return &UserService{storage: storage, users: users, log: log}, nil
}

// Register adds a new account. Usernames are unique case-insensitively.
func (s *UserService) Register(username, password string, role Role, email string) (*UserAccount, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	if s.find(username) != nil {
		return nil, ErrUserExists
	}
	u := &UserAccount{Username: username, Password: password, Role: role, Email: email}
	s.users = append(s.users, u)
	s.persist()
	return u, nil
}

// Authenticate matches the stored credentials exactly.
func (s *UserService) Authenticate(username, password string) (*UserAccount, error) {
	u := s.find(username)
	if u == nil || u.Password != password {
		return nil, errors.New("invalid username or password")
	}
	return u, nil
}

// Find returns the account for the username, or ErrNotFound.
func (s *UserService) Find(username string) (*UserAccount, error) {
	if u := s.find(username); u != nil {
		return u, nil
	}
	return nil, ErrNotFound
}

// Delete removes the account.
func (s *UserService) Delete(username string) error {
	for i, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			s.users = append(s.users[:i], s.users[i+1:]...)
			s.persist()
			return nil
		}
	}
	return ErrNotFound
}

// All returns every account in insertion order.
func (s *UserService) All() []*UserAccount {
	return append([]*UserAccount(nil), s.users...)
}

func (s *UserService) find(username string) *UserAccount {
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u
		}
	}
	return nil
}

func (s *UserService) persist() {
	if err := s.storage.Save(s.users); err != nil {
		s.log.Error("persist user accounts failed", "error", err)
	}
}
