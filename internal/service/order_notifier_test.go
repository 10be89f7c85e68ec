package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
	"github.com/alanyoungcy/bookstock/internal/store/memory"
)

func TestOrderNotifier_RelaysPlacements(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.NewSignalBus()
	n := &fakeNotifier{}
	relay := NewOrderNotifier(bus, n, discardLogger())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	books := memory.NewBookStore()
	inv := NewInventoryService(books, bus, discardLogger())
	orders := NewOrderService(memory.NewOrderStore(), memory.NewUserStore("u1"), inv, nil, bus, OrderConfig{}, discardLogger())

	f := &fixture{books: books, inventory: inv}
	f.addBook(t, "b1", "Dune", "10.00", 5, 1)

	// Give the relay a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	order, err := orders.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID: "u1",
		Items:  []domain.OrderLine{{BookID: "b1", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for n.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n.count() != 1 {
		t.Fatalf("expected one notification, got %d", n.count())
	}
	n.mu.Lock()
	got := n.sent[0]
	n.mu.Unlock()
	if got.Event != "order_placed" || !strings.Contains(got.Title, order.ID) || !strings.Contains(got.Message, "20.00") {
		t.Errorf("unexpected notification %+v", got)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
