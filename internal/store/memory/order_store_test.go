package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

func TestOrderStore_ListNewestFirstWithPaging(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"o1", "o2", "o3"} {
		_ = s.Create(ctx, domain.Order{
			ID:        id,
			UserID:    "u1",
			Status:    domain.OrderStatusPending,
			OrderDate: base.Add(time.Duration(i) * time.Hour),
		})
	}
	_ = s.Create(ctx, domain.Order{ID: "o4", UserID: "u2", OrderDate: base})

	got, _ := s.ListByUser(ctx, "u1", domain.ListOpts{Limit: 2})
	if len(got) != 2 || got[0].ID != "o3" || got[1].ID != "o2" {
		t.Errorf("expected [o3 o2], got %v", ids(got))
	}

	got, _ = s.ListByUser(ctx, "u1", domain.ListOpts{Offset: 2})
	if len(got) != 1 || got[0].ID != "o1" {
		t.Errorf("expected [o1], got %v", ids(got))
	}

	got, _ = s.List(ctx, domain.ListOpts{Offset: 10})
	if len(got) != 0 {
		t.Errorf("expected empty page, got %v", ids(got))
	}
}

func TestOrderStore_UpdateStatusGuard(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	_ = s.Create(ctx, domain.Order{ID: "o1", Status: domain.OrderStatusDelivered})

	reject := errors.New("reject")
	_, err := s.UpdateStatus(ctx, "o1", domain.OrderStatusPending, func(from domain.OrderStatus) error {
		if from != domain.OrderStatusDelivered {
			t.Errorf("expected guard to see DELIVERED, got %s", from)
		}
		return reject
	})
	if !errors.Is(err, reject) {
		t.Fatalf("expected guard error, got %v", err)
	}

	o, _ := s.Get(ctx, "o1")
	if o.Status != domain.OrderStatusDelivered {
		t.Errorf("expected status unchanged, got %s", o.Status)
	}

	if _, err := s.UpdateStatus(ctx, "missing", domain.OrderStatusShipped, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func ids(orders []domain.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}
