package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

func TestPlaceOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "12.50", 10, 0)
	f.addBook(t, "B", "Beta", "3.20", 4, 0)

	o, err := f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID: "u1",
		Items:  []domain.OrderLine{{BookID: "A", Quantity: 2}, {BookID: "B", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if o.ID == "" || o.Status != domain.OrderStatusPending || o.OrderDate.IsZero() {
		t.Errorf("unexpected order header %+v", o)
	}
	if got := o.TotalAmount.StringFixed(2); got != "34.60" {
		t.Errorf("expected total 34.60, got %s", got)
	}
	if len(o.Items) != 2 || o.Items[0].Title != "Alpha" || o.Items[1].Price.StringFixed(2) != "3.20" {
		t.Errorf("unexpected items %+v", o.Items)
	}
	if q := f.quantity(t, "A"); q != 8 {
		t.Errorf("expected A quantity 8, got %d", q)
	}
	if q := f.quantity(t, "B"); q != 1 {
		t.Errorf("expected B quantity 1, got %d", q)
	}

	stored, err := f.orderSvc.GetOrder(ctx, o.ID)
	if err != nil || stored.TotalAmount.Cmp(o.TotalAmount) != 0 {
		t.Errorf("expected stored order to match, got %+v %v", stored, err)
	}
	if len(f.bus.named("order_placed")) != 1 {
		t.Error("expected one order_placed event")
	}
}

func TestPlaceOrder_DrainsToOutOfStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "2.00", 5, 5)

	if _, err := f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID: "u1", Items: []domain.OrderLine{{BookID: "A", Quantity: 5}},
	}); err != nil {
		t.Fatalf("place order for the whole stock: %v", err)
	}
	b, err := f.inventory.GetBook(ctx, "A")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if b.StockQuantity != 0 || b.StockStatus != domain.StockOutOfStock {
		t.Errorf("expected 0 OUT_OF_STOCK, got %d %s", b.StockQuantity, b.StockStatus)
	}

	_, err = f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID: "u1", Items: []domain.OrderLine{{BookID: "A", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if q := f.quantity(t, "A"); q != 0 {
		t.Errorf("expected quantity to stay 0, got %d", q)
	}
	if orders, _ := f.orderSvc.ListOrders(ctx, domain.ListOpts{}); len(orders) != 1 {
		t.Errorf("expected only the first order recorded, got %d", len(orders))
	}
}

func TestPlaceOrder_RollbackOnInsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "1.00", 10, 0)
	f.addBook(t, "B", "Beta", "1.00", 5, 0)

	_, err := f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID: "u1",
		Items:  []domain.OrderLine{{BookID: "A", Quantity: 3}, {BookID: "B", Quantity: 1000000}},
	})
	var ise *domain.InsufficientStockError
	if !errors.As(err, &ise) || ise.BookID != "B" {
		t.Fatalf("expected insufficient stock naming B, got %v", err)
	}
	if q := f.quantity(t, "A"); q != 10 {
		t.Errorf("expected A restored to 10, got %d", q)
	}
	if q := f.quantity(t, "B"); q != 5 {
		t.Errorf("expected B untouched at 5, got %d", q)
	}
	if orders, _ := f.orderSvc.ListOrders(ctx, domain.ListOpts{}); len(orders) != 0 {
		t.Errorf("expected no persisted order, got %d", len(orders))
	}
}

func TestPlaceOrder_RollbackWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "1.00", 10, 0)
	f.addBook(t, "B", "Beta", "1.00", 10, 0)
	svc := NewOrderService(failingOrderStore{f.orders}, f.users, f.inventory, nil, nil, OrderConfig{}, discardLogger())

	_, err := svc.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID: "u1",
		Items:  []domain.OrderLine{{BookID: "A", Quantity: 4}, {BookID: "B", Quantity: 6}},
	})
	if err == nil {
		t.Fatal("expected persist error")
	}
	if f.quantity(t, "A") != 10 || f.quantity(t, "B") != 10 {
		t.Errorf("expected all stock released, got A=%d B=%d", f.quantity(t, "A"), f.quantity(t, "B"))
	}
}

// cancellingStore cancels the request context after the first successful
// mutation and refuses mutations on a cancelled context.
type cancellingStore struct {
	domain.BookStore
	cancel context.CancelFunc
	calls  int
}

func (s *cancellingStore) Mutate(ctx context.Context, id string, fn domain.BookMutation) (domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return domain.Book{}, err
	}
	b, err := s.BookStore.Mutate(ctx, id, fn)
	s.calls++
	if s.calls == 1 {
		s.cancel()
	}
	return b, err
}

func TestPlaceOrder_RollbackSurvivesCancelledContext(t *testing.T) {
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "1.00", 10, 0)
	f.addBook(t, "B", "Beta", "1.00", 10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inv := NewInventoryService(&cancellingStore{BookStore: f.books, cancel: cancel}, nil, discardLogger())
	svc := NewOrderService(f.orders, f.users, inv, nil, nil, OrderConfig{}, discardLogger())

	_, err := svc.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID: "u1",
		Items:  []domain.OrderLine{{BookID: "A", Quantity: 2}, {BookID: "B", Quantity: 1}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if q := f.quantity(t, "A"); q != 10 {
		t.Errorf("expected A restored to 10 despite cancellation, got %d", q)
	}
}

func TestPlaceOrder_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "1.00", 10, 0)

	tests := []struct {
		name string
		req  domain.PlaceOrderRequest
		want error
	}{
		{"unknown user", domain.PlaceOrderRequest{UserID: "ghost", Items: []domain.OrderLine{{BookID: "A", Quantity: 1}}}, domain.ErrInvalidUser},
		{"no items", domain.PlaceOrderRequest{UserID: "u1"}, domain.ErrInvalidOrder},
		{"zero quantity", domain.PlaceOrderRequest{UserID: "u1", Items: []domain.OrderLine{{BookID: "A", Quantity: 0}}}, domain.ErrInvalidQuantity},
		{"missing book", domain.PlaceOrderRequest{UserID: "u1", Items: []domain.OrderLine{{BookID: "A", Quantity: 1}, {BookID: "Z", Quantity: 1}}}, domain.ErrBookNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orderSvc.PlaceOrder(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	_, err := f.orderSvc.PlaceOrder(ctx, tests[3].req)
	var nf *domain.BookNotFoundError
	if !errors.As(err, &nf) || nf.BookID != "Z" || !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected BookNotFoundError for Z, got %v", err)
	}
	if q := f.quantity(t, "A"); q != 10 {
		t.Errorf("expected rejected orders to leave A at 10, got %d", q)
	}
}

func TestPlaceOrder_RateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "1.00", 10, 0)
	svc := NewOrderService(f.orders, f.users, f.inventory, &fakeLimiter{}, nil, OrderConfig{RateLimit: 2}, discardLogger())

	req := domain.PlaceOrderRequest{UserID: "u1", Items: []domain.OrderLine{{BookID: "A", Quantity: 1}}}
	for i := 0; i < 2; i++ {
		if _, err := svc.PlaceOrder(ctx, req); err != nil {
			t.Fatalf("order %d: %v", i, err)
		}
	}
	if _, err := svc.PlaceOrder(ctx, req); !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	req.UserID = "u2"
	if _, err := svc.PlaceOrder(ctx, req); err != nil {
		t.Errorf("expected other user to be unaffected, got %v", err)
	}
}

func TestPlaceOrder_ConcurrentBuyersNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "1.00", 7, 0)
	f.addBook(t, "B", "Beta", "1.00", 100, 0)

	const buyers = 30
	var wg sync.WaitGroup
	wg.Add(buyers)
	for i := 0; i < buyers; i++ {
		go func() {
			defer wg.Done()
			_, _ = f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{
				UserID: "u1",
				Items:  []domain.OrderLine{{BookID: "B", Quantity: 1}, {BookID: "A", Quantity: 1}},
			})
		}()
	}
	wg.Wait()

	orders, _ := f.orderSvc.ListOrders(ctx, domain.ListOpts{})
	if len(orders) != 7 {
		t.Errorf("expected 7 orders, got %d", len(orders))
	}
	if q := f.quantity(t, "A"); q != 0 {
		t.Errorf("expected A at 0, got %d", q)
	}
	if q := f.quantity(t, "B"); q != 93 {
		t.Errorf("expected B at 93 after rollbacks, got %d", q)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "1.00", 10, 0)
	o, _ := f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID: "u1", Items: []domain.OrderLine{{BookID: "A", Quantity: 2}},
	})

	if _, err := f.orderSvc.UpdateStatus(ctx, "missing", "BOGUS"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound checked before status, got %v", err)
	}
	if _, err := f.orderSvc.UpdateStatus(ctx, o.ID, "shipped"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus for lower-case value, got %v", err)
	}
	if stored, err := f.orderSvc.GetOrder(ctx, o.ID); err != nil || stored.Status != domain.OrderStatusPending {
		t.Errorf("expected rejected status to leave the order PENDING, got %v %v", stored.Status, err)
	}

	got, err := f.orderSvc.UpdateStatus(ctx, o.ID, "DELIVERED")
	if err != nil || got.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected DELIVERED, got %v %v", got.Status, err)
	}
	got, err = f.orderSvc.UpdateStatus(ctx, o.ID, "CANCELLED")
	if err != nil || got.Status != domain.OrderStatusCancelled {
		t.Errorf("expected permissive policy to allow DELIVERED -> CANCELLED, got %v %v", got.Status, err)
	}
	if q := f.quantity(t, "A"); q != 8 {
		t.Errorf("expected cancellation not to restock, got %d", q)
	}

	evts := f.bus.named("order_status_changed")
	if len(evts) != 2 || evts[1].Fields["from"] != "DELIVERED" {
		t.Errorf("unexpected status events %+v", evts)
	}
}

func TestUpdateStatus_StrictTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{StrictTransitions: true})
	f.addBook(t, "A", "Alpha", "1.00", 10, 0)
	o, _ := f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{
		UserID: "u1", Items: []domain.OrderLine{{BookID: "A", Quantity: 1}},
	})

	if _, err := f.orderSvc.UpdateStatus(ctx, o.ID, "SHIPPED"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected PENDING -> SHIPPED rejected, got %v", err)
	}
	for _, st := range []string{"PROCESSING", "SHIPPED", "DELIVERED"} {
		if _, err := f.orderSvc.UpdateStatus(ctx, o.ID, st); err != nil {
			t.Fatalf("step to %s: %v", st, err)
		}
	}
	if _, err := f.orderSvc.UpdateStatus(ctx, o.ID, "CANCELLED"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected terminal DELIVERED to reject CANCELLED, got %v", err)
	}
	got, _ := f.orderSvc.GetOrder(ctx, o.ID)
	if got.Status != domain.OrderStatusDelivered {
		t.Errorf("expected status to stay DELIVERED, got %s", got.Status)
	}
}

func TestListUserOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, OrderConfig{})
	f.addBook(t, "A", "Alpha", "1.00", 10, 0)
	line := []domain.OrderLine{{BookID: "A", Quantity: 1}}
	_, _ = f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{UserID: "u1", Items: line})
	_, _ = f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{UserID: "u2", Items: line})
	_, _ = f.orderSvc.PlaceOrder(ctx, domain.PlaceOrderRequest{UserID: "u1", Items: line})

	got, err := f.orderSvc.ListUserOrders(ctx, "u1", domain.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 orders for u1, got %d", len(got))
	}
	for _, o := range got {
		if o.UserID != "u1" {
			t.Errorf("unexpected order for %s", o.UserID)
		}
	}
}
