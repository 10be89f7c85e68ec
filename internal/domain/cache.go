package domain

import (
	"context"
	"time"
)

// Signal bus channels.
const (
	ChannelStock  = "stock"
	ChannelOrders = "orders"
	ChannelAlerts = "alerts"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of JSON events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// SummaryCache holds the last computed inventory summary. Get returns
// ErrNotFound on a miss.
type SummaryCache interface {
	Get(ctx context.Context) (InventorySummary, error)
	Set(ctx context.Context, summary InventorySummary) error
	Invalidate(ctx context.Context) error
}
