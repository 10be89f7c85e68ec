package domain

import (
	"errors"
	"testing"
)

func TestParseOrderStatus(t *testing.T) {
	valid := []string{"PENDING", "PROCESSING", "SHIPPED", "DELIVERED", "CANCELLED"}
	for _, s := range valid {
		got, err := ParseOrderStatus(s)
		if err != nil {
			t.Errorf("expected %s to parse, got %v", s, err)
		}
		if string(got) != s {
			t.Errorf("expected %s, got %s", s, got)
		}
	}

	for _, s := range []string{"", "BOGUS", "shipped", " PENDING"} {
		if _, err := ParseOrderStatus(s); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus for %q, got %v", s, err)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusShipped, OrderStatusShipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	var err error = &InsufficientStockError{BookID: "b1", Title: "Dune", Requested: 4, Available: 1}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Error("expected InsufficientStockError to match ErrInsufficientStock")
	}

	err = &BookNotFoundError{BookID: "b2"}
	if !errors.Is(err, ErrBookNotFound) {
		t.Error("expected BookNotFoundError to match ErrBookNotFound")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected BookNotFoundError to match ErrNotFound")
	}
}
