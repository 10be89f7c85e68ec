package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// OrderNotifier relays order_placed events from the bus to the notifier, so
// placements made by any instance reach the configured channels once per
// subscriber.
type OrderNotifier struct {
	bus      domain.SignalBus
	notifier AlertNotifier
	logger   *slog.Logger
}

// NewOrderNotifier creates an OrderNotifier.
func NewOrderNotifier(bus domain.SignalBus, notifier AlertNotifier, logger *slog.Logger) *OrderNotifier {
	return &OrderNotifier{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "order_notifier")),
	}
}

type orderPlacedEvent struct {
	Event   string `json:"event"`
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Total   string `json:"total"`
	Lines   int    `json:"lines"`
}

// Run consumes the orders channel until ctx is cancelled.
func (n *OrderNotifier) Run(ctx context.Context) error {
	msgs, err := n.bus.Subscribe(ctx, domain.ChannelOrders)
	if err != nil {
		return fmt.Errorf("order notifier: subscribe: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			n.handle(ctx, raw)
		}
	}
}

func (n *OrderNotifier) handle(ctx context.Context, raw []byte) {
	var evt orderPlacedEvent
	if err := json.Unmarshal(raw, &evt); err != nil || evt.Event != "order_placed" {
		return
	}
	title := "New order " + evt.OrderID
	msg := fmt.Sprintf("User %s placed an order of %d line(s) totalling %s.", evt.UserID, evt.Lines, evt.Total)
	if err := n.notifier.Notify(ctx, "order_placed", title, msg); err != nil {
		n.logger.WarnContext(ctx, "order notifier: notify failed",
			slog.String("order_id", evt.OrderID),
			slog.String("error", err.Error()),
		)
	}
}
