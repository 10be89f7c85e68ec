package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLockHeld           = errors.New("lock already held")
	ErrBookNotFound       = errors.New("book not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrInvalidTransition  = errors.New("order status transition not allowed")
	ErrInvalidUser        = errors.New("user does not exist")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidStockStatus = errors.New("invalid stock status")
	ErrInvalidThreshold   = errors.New("invalid stock threshold")
	ErrInvalidBook        = errors.New("invalid book")
)

// InsufficientStockError names the book a reservation could not be satisfied
// for. It matches ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	BookID    string
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for book %s (%q): requested %d, available %d",
		e.BookID, e.Title, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// BookNotFoundError matches both ErrBookNotFound and ErrNotFound.
type BookNotFoundError struct {
	BookID string
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("book %s not found", e.BookID)
}

func (e *BookNotFoundError) Unwrap() []error {
	return []error{ErrBookNotFound, ErrNotFound}
}
