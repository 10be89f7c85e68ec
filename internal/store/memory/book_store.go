// Package memory implements the domain store interfaces in process memory.
// It backs the "memory" store driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// bookEntry holds one record behind its own lock so that mutations of
// different books never contend.
type bookEntry struct {
	mu      sync.Mutex
	book    domain.Book
	deleted bool
}

// BookStore implements domain.BookStore with a per-book mutex.
type BookStore struct {
	mu      sync.RWMutex // guards the map only
	entries map[string]*bookEntry
}

// NewBookStore creates an empty BookStore.
func NewBookStore() *BookStore {
	return &BookStore{entries: make(map[string]*bookEntry)}
}

func (s *BookStore) entry(id string) (*bookEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Create inserts a new book. It returns domain.ErrAlreadyExists on a
// duplicate id.
func (s *BookStore) Create(_ context.Context, b domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[b.ID]; ok {
		return fmt.Errorf("memory: create book %s: %w", b.ID, domain.ErrAlreadyExists)
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	s.entries[b.ID] = &bookEntry{book: b}
	return nil
}

// Get returns a copy of the book.
func (s *BookStore) Get(_ context.Context, id string) (domain.Book, error) {
	e, ok := s.entry(id)
	if !ok {
		return domain.Book{}, fmt.Errorf("memory: get book %s: %w", id, domain.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return domain.Book{}, fmt.Errorf("memory: get book %s: %w", id, domain.ErrNotFound)
	}
	return e.book, nil
}

// List returns every book ordered by title then id.
func (s *BookStore) List(_ context.Context) ([]domain.Book, error) {
	s.mu.RLock()
	entries := make([]*bookEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	books := make([]domain.Book, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			books = append(books, e.book)
		}
		e.mu.Unlock()
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
	return books, nil
}

// Delete removes a book. A Mutate already holding the entry lock finishes
// first; later ones see the entry as deleted.
func (s *BookStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("memory: delete book %s: %w", id, domain.ErrNotFound)
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

// Mutate applies fn to a copy of the book under the book's lock and commits
// the copy only when fn succeeds.
func (s *BookStore) Mutate(_ context.Context, id string, fn domain.BookMutation) (domain.Book, error) {
	e, ok := s.entry(id)
	if !ok {
		return domain.Book{}, fmt.Errorf("memory: mutate book %s: %w", id, domain.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return domain.Book{}, fmt.Errorf("memory: mutate book %s: %w", id, domain.ErrNotFound)
	}

	next := e.book
	if err := fn(&next); err != nil {
		return domain.Book{}, err
	}
	next.ID = e.book.ID
	next.UpdatedAt = time.Now().UTC()
	e.book = next
	return next, nil
}

// Compile-time interface check.
var _ domain.BookStore = (*BookStore)(nil)
