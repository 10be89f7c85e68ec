package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

func TestAlertStore(t *testing.T) {
	ctx := context.Background()
	s := NewAlertStore()

	if _, err := s.Get(ctx, "b1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if ok, _ := s.SetIfAbsent(ctx, "b1", domain.AlertActive); !ok {
		t.Error("expected first SetIfAbsent to create the entry")
	}
	if ok, _ := s.SetIfAbsent(ctx, "b1", domain.AlertActive); ok {
		t.Error("expected second SetIfAbsent to be a no-op")
	}

	_ = s.Set(ctx, "b1", domain.AlertAcknowledged)
	if ok, _ := s.DeleteIf(ctx, "b1", domain.AlertActive); ok {
		t.Error("expected DeleteIf to keep an acknowledged entry")
	}
	if st, _ := s.Get(ctx, "b1"); st != domain.AlertAcknowledged {
		t.Errorf("expected ACKNOWLEDGED, got %s", st)
	}

	_ = s.Set(ctx, "b2", domain.AlertActive)
	if n, _ := s.Count(ctx); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}
	if ok, _ := s.DeleteIf(ctx, "b2", domain.AlertActive); !ok {
		t.Error("expected DeleteIf to remove the active entry")
	}

	all, _ := s.All(ctx)
	all["b9"] = domain.AlertActive
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("expected All to return a copy, got %d entries", n)
	}

	_ = s.Delete(ctx, "b1")
	_ = s.Delete(ctx, "missing")
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
}
