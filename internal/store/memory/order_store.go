package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// OrderStore implements domain.OrderStore with a mutex-guarded map.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]domain.Order)}
}

// Create stores the order. Items are copied so the caller cannot alter them
// afterwards.
func (s *OrderStore) Create(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("memory: create order %s: %w", o.ID, domain.ErrAlreadyExists)
	}
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.OrderDate
	}
	s.orders[o.ID] = o
	return nil
}

// Get returns a copy of the order.
func (s *OrderStore) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("memory: get order %s: %w", id, domain.ErrNotFound)
	}
	return cloneOrder(o), nil
}

// List returns orders newest first.
func (s *OrderStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Order, error) {
	return s.filter(func(domain.Order) bool { return true }, opts), nil
}

// ListByUser returns one user's orders newest first.
func (s *OrderStore) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.Order, error) {
	return s.filter(func(o domain.Order) bool { return o.UserID == userID }, opts), nil
}

// UpdateStatus sets the status under the store lock after the guard accepts.
func (s *OrderStore) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, guard domain.StatusGuard) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("memory: update order status %s: %w", id, domain.ErrNotFound)
	}
	if guard != nil {
		if err := guard(o.Status); err != nil {
			return domain.Order{}, err
		}
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	return cloneOrder(o), nil
}

func (s *OrderStore) filter(keep func(domain.Order) bool, opts domain.ListOpts) []domain.Order {
	s.mu.RLock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if !keep(o) {
			continue
		}
		if opts.Since != nil && o.OrderDate.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && o.OrderDate.After(*opts.Until) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderDate.After(out[j].OrderDate)
		}
		return out[i].ID < out[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []domain.Order{}
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
