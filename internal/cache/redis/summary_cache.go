package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// SummaryCache implements domain.SummaryCache as a single JSON string key
// with a TTL.
//
// Key schema:
//
//	inventory:summary - JSON-encoded domain.InventorySummary
type SummaryCache struct {
	c   *Client
	ttl time.Duration
}

// NewSummaryCache creates a SummaryCache. A non-positive ttl defaults to one
// minute.
func NewSummaryCache(c *Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SummaryCache{c: c, ttl: ttl}
}

func (sc *SummaryCache) key() string { return sc.c.Key("inventory:summary") }

// Get returns the cached summary or domain.ErrNotFound.
func (sc *SummaryCache) Get(ctx context.Context) (domain.InventorySummary, error) {
	data, err := sc.c.rdb.Get(ctx, sc.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.InventorySummary{}, domain.ErrNotFound
		}
		return domain.InventorySummary{}, fmt.Errorf("redis: get summary: %w", err)
	}
	var s domain.InventorySummary
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.InventorySummary{}, fmt.Errorf("redis: unmarshal summary: %w", err)
	}
	return s, nil
}

// Set stores the summary.
func (sc *SummaryCache) Set(ctx context.Context, s domain.InventorySummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal summary: %w", err)
	}
	if err := sc.c.rdb.Set(ctx, sc.key(), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set summary: %w", err)
	}
	return nil
}

// Invalidate drops the cached summary.
func (sc *SummaryCache) Invalidate(ctx context.Context) error {
	if err := sc.c.rdb.Del(ctx, sc.key()).Err(); err != nil {
		return fmt.Errorf("redis: invalidate summary: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SummaryCache = (*SummaryCache)(nil)
