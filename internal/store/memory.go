package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// InMemoryStore is an implementation of UserStore backed by an ordered
// slice.  It is safe for concurrent use and intended for tests and
// development; nothing survives the process.
type InMemoryStore struct {
	mu    sync.Mutex
	users []user.User
	now   func() time.Time
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: []user.User{},
		now:   time.Now,
	}
}

func (s *InMemoryStore) CreateUser(ctx context.Context, draft user.Draft) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := newRecord(draft, s.now())
	s.users = append(s.users, u)
	return u.Clone(), nil
}

// GetUser retrieves a user by id.  It returns (nil, nil) if the user does
// not exist.
func (s *InMemoryStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		u := s.users[i].Clone()
		return &u, nil
	}
	return nil, nil
}

func (s *InMemoryStore) ListUsers(ctx context.Context) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return user.CloneAll(s.users), nil
}

func (s *InMemoryStore) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(u.ID)
	if i < 0 {
		return user.User{}, ErrNotFound
	}
	s.users[i] = mergeUpdate(s.users[i], u)
	return s.users[i].Clone(), nil
}

func (s *InMemoryStore) DeleteUser(ctx context.Context, id string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return user.User{}, ErrNotFound
	}
	removed := s.users[i]
	s.users = slices.Delete(s.users, i, i+1)
	return removed, nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) index(id string) int {
	return slices.IndexFunc(s.users, func(u user.User) bool { return u.ID == id })
}
