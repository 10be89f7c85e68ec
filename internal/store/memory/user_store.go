package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// UserStore implements domain.UserStore with a mutex-guarded map.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewUserStore creates a UserStore preloaded with the given user ids.
func NewUserStore(ids ...string) *UserStore {
	s := &UserStore{users: make(map[string]domain.User, len(ids))}
	for _, id := range ids {
		s.users[id] = domain.User{ID: id, CreatedAt: time.Now().UTC()}
	}
	return s
}

// Exists reports whether the user id is known.
func (s *UserStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok, nil
}

// Create adds a user. An existing id is left untouched.
func (s *UserStore) Create(_ context.Context, u domain.User) error {
	if u.ID == "" {
		return fmt.Errorf("memory: create user: %w", domain.ErrInvalidUser)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return nil
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	return nil
}

// Compile-time interface check.
var _ domain.UserStore = (*UserStore)(nil)
