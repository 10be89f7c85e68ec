package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// ParseOrderStatus returns ErrInvalidStatus for anything but the five known
// values. Matching is exact.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// forward lists the single forward step out of each non-terminal state.
var forward = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// CanTransition applies the strict lifecycle graph:
// PENDING -> PROCESSING -> SHIPPED -> DELIVERED, with CANCELLED reachable from
// any non-terminal state. Writing the current status again is allowed.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	return forward[from] == to
}

// OrderItem is one purchased line with its price frozen at placement.
type OrderItem struct {
	BookID   string
	Title    string
	Price    decimal.Decimal
	Quantity int
}

// Subtotal returns Price * Quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed customer order.
type Order struct {
	ID          string
	UserID      string
	Items       []OrderItem
	TotalAmount decimal.Decimal
	Status      OrderStatus
	OrderDate   time.Time
	UpdatedAt   time.Time
}

// OrderLine is a requested (bookID, quantity) pair. Prices are never taken
// from the caller.
type OrderLine struct {
	BookID   string
	Quantity int
}

// PlaceOrderRequest is the input of the placement pipeline.
type PlaceOrderRequest struct {
	UserID string
	Items  []OrderLine
}
