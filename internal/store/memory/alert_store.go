package memory

import (
	"context"
	"sync"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// AlertStore is an in-process domain.AlertStore. It is only shared by the
// goroutines of one process, so it suits the single-process "full" mode.
type AlertStore struct {
	mu     sync.Mutex
	states map[string]domain.AlertState
}

// NewAlertStore creates an empty AlertStore.
func NewAlertStore() *AlertStore {
	return &AlertStore{states: make(map[string]domain.AlertState)}
}

// Get returns the book's entry.
func (s *AlertStore) Get(_ context.Context, bookID string) (domain.AlertState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[bookID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return st, nil
}

// SetIfAbsent creates the entry unless one exists.
func (s *AlertStore) SetIfAbsent(_ context.Context, bookID string, state domain.AlertState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[bookID]; ok {
		return false, nil
	}
	s.states[bookID] = state
	return true, nil
}

// Set overwrites the entry.
func (s *AlertStore) Set(_ context.Context, bookID string, state domain.AlertState) error {
	s.mu.Lock()
	s.states[bookID] = state
	s.mu.Unlock()
	return nil
}

// Delete removes the entry. A missing entry is not an error.
func (s *AlertStore) Delete(_ context.Context, bookID string) error {
	s.mu.Lock()
	delete(s.states, bookID)
	s.mu.Unlock()
	return nil
}

// DeleteIf removes the entry while it still holds state.
func (s *AlertStore) DeleteIf(_ context.Context, bookID string, state domain.AlertState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[bookID] != state {
		return false, nil
	}
	delete(s.states, bookID)
	return true, nil
}

// All returns a copy of every entry.
func (s *AlertStore) All(_ context.Context) (map[string]domain.AlertState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.AlertState, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out, nil
}

// Count returns the number of entries.
func (s *AlertStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states), nil
}

// Compile-time interface check.
var _ domain.AlertStore = (*AlertStore)(nil)
