package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BookMutation edits a book in place under the store's per-record guard.
// Returning an error aborts the write and the error is passed through.
type BookMutation func(b *Book) error

// BookStore persists catalog records.
type BookStore interface {
	Create(ctx context.Context, book Book) error
	Get(ctx context.Context, id string) (Book, error)
	List(ctx context.Context) ([]Book, error)
	Delete(ctx context.Context, id string) error
	// Mutate is an atomic read-modify-write on a single book. Concurrent
	// Mutate calls for the same id are serialized; calls for different ids
	// are not.
	Mutate(ctx context.Context, id string, fn BookMutation) (Book, error)
}

// StatusGuard vets a status change against the order's current status.
type StatusGuard func(from OrderStatus) error

// OrderStore persists placed orders.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, opts ListOpts) ([]Order, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Order, error)
	// UpdateStatus sets the status atomically with the guard check. A nil
	// guard accepts any change.
	UpdateStatus(ctx context.Context, id string, status OrderStatus, guard StatusGuard) (Order, error)
}

// User is the slice of an account the inventory core needs.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// UserStore answers user existence checks. Identity is managed elsewhere.
type UserStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, user User) error
}
