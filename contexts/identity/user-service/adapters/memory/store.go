package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cratewatch/contexts/identity/user-service/application/commands"
	"cratewatch/contexts/identity/user-service/domain/entities"
	domainerrors "cratewatch/contexts/identity/user-service/domain/errors"
	"cratewatch/contexts/identity/user-service/ports"
)

// Store is the in-memory user repository.
type Store struct {
	mu     sync.Mutex
	users  map[string]entities.User
	now    time.Time
	nextID int
}

func NewStore() *Store {
	return &Store{
		users: make(map[string]entities.User),
		now:   time.Now().UTC(),
	}
}

func (s *Store) CreateUser(_ context.Context, user entities.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return domainerrors.ErrDuplicateEmail
		}
	}
	s.users[user.UserID] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = commands.NormalizeEmail(email)
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return entities.User{}, domainerrors.ErrUserNotFound
}

func (s *Store) UpdateUser(_ context.Context, user entities.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.UserID]; !ok {
		return domainerrors.ErrUserNotFound
	}
	s.users[user.UserID] = user
	return nil
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("user-%04d", s.nextID), nil
}

var (
	_ ports.UserRepository = (*Store)(nil)
	_ ports.Clock          = (*Store)(nil)
	_ ports.IDGenerator    = (*Store)(nil)
)
