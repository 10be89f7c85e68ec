package memory

import (
	"context"
	"testing"
	"time"
)

func TestSignalBus_PatternDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewSignalBus()
	stock, _ := bus.Subscribe(ctx, "stock")
	all, _ := bus.Subscribe(ctx, "*")

	_ = bus.Publish(ctx, "stock", []byte(`{"type":"stock_changed"}`))
	_ = bus.Publish(ctx, "orders", []byte(`{"type":"order_placed"}`))

	select {
	case msg := <-stock:
		if string(msg) != `{"type":"stock_changed"}` {
			t.Errorf("unexpected payload %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected message on stock subscription")
	}
	select {
	case msg := <-stock:
		t.Errorf("stock subscription should not see %s", msg)
	default:
	}

	for i := 0; i < 2; i++ {
		select {
		case <-all:
		case <-time.After(time.Second):
			t.Fatalf("expected message %d on wildcard subscription", i)
		}
	}
}

func TestSignalBus_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewSignalBus()
	ch, _ := bus.Subscribe(ctx, "alerts")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription channel was not closed")
	}
}
