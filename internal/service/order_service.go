package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bookstock/internal/domain"
	"github.com/alanyoungcy/bookstock/internal/metrics"
)

// OrderConfig tunes the placement pipeline and status policy.
type OrderConfig struct {
	// RateLimit is the number of placements allowed per user per RateWindow.
	// Zero disables the limit.
	RateLimit  int
	RateWindow time.Duration
	// StrictTransitions enforces domain.CanTransition on status updates.
	StrictTransitions bool
}

// OrderService places orders against the stock ledger and manages their
// status.
type OrderService struct {
	orders    domain.OrderStore
	users     domain.UserStore
	inventory *InventoryService
	limiter   domain.RateLimiter
	bus       domain.SignalBus
	metrics   *metrics.Metrics
	cfg       OrderConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderService creates an OrderService. limiter and bus may be nil.
func NewOrderService(
	orders domain.OrderStore,
	users domain.UserStore,
	inventory *InventoryService,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	cfg OrderConfig,
	logger *slog.Logger,
) *OrderService {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &OrderService{
		orders:    orders,
		users:     users,
		inventory: inventory,
		limiter:   limiter,
		bus:       bus,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "orders")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics attaches order counters.
func (s *OrderService) WithMetrics(m *metrics.Metrics) *OrderService {
	s.metrics = m
	return s
}

// PlaceOrder reserves stock for every line and persists the order. It is all
// or nothing: when any reservation or the final write fails, every
// reservation already taken is released before the error is returned.
func (s *OrderService) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.Order, error) {
	order, err := s.placeOrder(ctx, req)
	if err != nil {
		s.metrics.OrderFailed(failureReason(err))
		return domain.Order{}, err
	}
	s.metrics.OrderPlaced()
	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.Order, error) {
	if err := s.checkRate(ctx, req.UserID); err != nil {
		return domain.Order{}, err
	}
	if len(req.Items) == 0 {
		return domain.Order{}, fmt.Errorf("order: place: no items: %w", domain.ErrInvalidOrder)
	}
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("order: place: book %s quantity %d: %w",
				line.BookID, line.Quantity, domain.ErrInvalidQuantity)
		}
	}

	ok, err := s.users.Exists(ctx, req.UserID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order: place: check user %s: %w", req.UserID, err)
	}
	if !ok {
		return domain.Order{}, fmt.Errorf("order: place: user %q: %w", req.UserID, domain.ErrInvalidUser)
	}

	for _, line := range req.Items {
		if _, err := s.inventory.GetBook(ctx, line.BookID); err != nil {
			return domain.Order{}, fmt.Errorf("order: place: %w", bookLookupError(line.BookID, err))
		}
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		b, err := s.inventory.ReserveStock(ctx, line.BookID, line.Quantity)
		if err != nil {
			s.releaseAll(ctx, items)
			return domain.Order{}, fmt.Errorf("order: place: %w", bookLookupError(line.BookID, err))
		}
		items = append(items, domain.OrderItem{
			BookID:   b.ID,
			Title:    b.Title,
			Price:    b.Price,
			Quantity: line.Quantity,
		})
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	now := s.now()
	order := domain.Order{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Items:       items,
		TotalAmount: total,
		Status:      domain.OrderStatusPending,
		OrderDate:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.releaseAll(ctx, items)
		return domain.Order{}, fmt.Errorf("order: place: persist %s: %w", order.ID, err)
	}

	s.logger.InfoContext(ctx, "order: placed",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.Int("lines", len(items)),
		slog.String("total", order.TotalAmount.StringFixed(2)),
	)
	s.publish(ctx, map[string]any{
		"event":    "order_placed",
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalAmount.StringFixed(2),
		"lines":    len(items),
	})
	return order, nil
}

// checkRate applies the per-user placement limit. Limiter failures are
// logged and the request is let through.
func (s *OrderService) checkRate(ctx context.Context, userID string) error {
	if s.limiter == nil || s.cfg.RateLimit <= 0 {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, "orders:"+userID, s.cfg.RateLimit, s.cfg.RateWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "order: rate limiter unavailable", slog.String("error", err.Error()))
		return nil
	}
	if !allowed {
		return fmt.Errorf("order: place: user %s: %w", userID, domain.ErrRateLimited)
	}
	return nil
}

// releaseAll undoes reservations in reverse order. It runs on a context that
// ignores cancellation so a dropped client cannot leak reserved stock.
func (s *OrderService) releaseAll(ctx context.Context, items []domain.OrderItem) {
	rctx := context.WithoutCancel(ctx)
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if _, err := s.inventory.ReleaseStock(rctx, it.BookID, it.Quantity); err != nil {
			s.logger.ErrorContext(rctx, "order: release after failed placement",
				slog.String("book_id", it.BookID),
				slog.Int("quantity", it.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}

// GetOrder returns one order.
func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order: get %s: %w", id, err)
	}
	return o, nil
}

// ListOrders returns orders newest first.
func (s *OrderService) ListOrders(ctx context.Context, opts domain.ListOpts) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	return orders, nil
}

// ListUserOrders returns one user's order history newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("order: list user %s: %w", userID, err)
	}
	return orders, nil
}

// UpdateStatus sets the order status. The order must exist before the
// status value is checked. Stock is not touched, including on cancellation.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, raw string) (domain.Order, error) {
	if _, err := s.orders.Get(ctx, id); err != nil {
		return domain.Order{}, fmt.Errorf("order: update status %s: %w", id, err)
	}
	status, err := domain.ParseOrderStatus(raw)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order: update status %s to %q: %w", id, raw, err)
	}

	var from domain.OrderStatus
	guard := func(current domain.OrderStatus) error {
		from = current
		if s.cfg.StrictTransitions && !domain.CanTransition(current, status) {
			return fmt.Errorf("%s -> %s: %w", current, status, domain.ErrInvalidTransition)
		}
		return nil
	}
	o, err := s.orders.UpdateStatus(ctx, id, status, guard)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order: update status %s: %w", id, err)
	}

	s.metrics.OrderStatusChanged(string(status))
	s.logger.InfoContext(ctx, "order: status updated",
		slog.String("order_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(status)),
	)
	s.publish(ctx, map[string]any{
		"event":    "order_status_changed",
		"order_id": id,
		"user_id":  o.UserID,
		"from":     string(from),
		"status":   string(status),
	})
	return o, nil
}

func (s *OrderService) publish(ctx context.Context, evt map[string]any) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(evt)
	if err := s.bus.Publish(ctx, domain.ChannelOrders, payload); err != nil {
		s.logger.WarnContext(ctx, "order: publish event failed",
			slog.Any("event", evt["event"]),
			slog.String("error", err.Error()),
		)
	}
}

// bookLookupError turns a store-level not-found for a book into
// *domain.BookNotFoundError and leaves other errors alone.
func bookLookupError(bookID string, err error) error {
	var nf *domain.BookNotFoundError
	if errors.As(err, &nf) {
		return err
	}
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.BookNotFoundError{BookID: bookID}
	}
	return err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrBookNotFound):
		return "book_not_found"
	case errors.Is(err, domain.ErrInvalidUser):
		return "invalid_user"
	case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_request"
	default:
		return "error"
	}
}
