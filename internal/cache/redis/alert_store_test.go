package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// newTestClient connects to BOOKSTOCK_TEST_REDIS_ADDR under a unique key
// prefix. The test is skipped when the variable is unset.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("BOOKSTOCK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOOKSTOCK_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewFromClient(rdb, "bookstock-test:"+uuid.NewString()+":")
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return c
}

func TestAlertStore_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	worker, server := NewAlertStore(c), NewAlertStore(c)
	t.Cleanup(func() { _ = c.rdb.Del(context.Background(), worker.key()).Err() })

	if ok, err := worker.SetIfAbsent(ctx, "b1", domain.AlertActive); err != nil || !ok {
		t.Fatalf("expected raise, got %v %v", ok, err)
	}
	if ok, _ := server.SetIfAbsent(ctx, "b1", domain.AlertActive); ok {
		t.Error("expected second instance to see the existing entry")
	}

	_ = server.Set(ctx, "b1", domain.AlertAcknowledged)
	if ok, _ := worker.DeleteIf(ctx, "b1", domain.AlertActive); ok {
		t.Error("expected acknowledged entry to survive DeleteIf ACTIVE")
	}
	if st, _ := worker.Get(ctx, "b1"); st != domain.AlertAcknowledged {
		t.Errorf("expected ACKNOWLEDGED, got %s", st)
	}
	if n, _ := server.Count(ctx); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}

	_ = server.Delete(ctx, "b1")
	if _, err := worker.Get(ctx, "b1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after reset, got %v", err)
	}
	if all, _ := worker.All(ctx); len(all) != 0 {
		t.Errorf("expected no entries, got %v", all)
	}
}
