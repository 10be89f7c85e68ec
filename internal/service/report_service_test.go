package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

func TestReportArchiver_Archive(t *testing.T) {
	ctx := context.Background()
	f, alerts := newAlertFixture(t, &fakeNotifier{})
	f.addBook(t, "b1", "Dune", "10.00", 1, 5)
	f.addBook(t, "b2", "Emma", "10.00", 50, 5)
	_, _ = alerts.Sweep(ctx)

	blob := &fakeBlob{}
	a := NewReportArchiver(f.inventory, alerts, blob, blob, blob, ReportConfig{Prefix: "/reports/inventory/"}, discardLogger())
	a.now = func() time.Time { return time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC) }

	key, err := a.Archive(ctx)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if want := "reports/inventory/2026/05/04/1777863721.json"; key != want {
		t.Errorf("expected key %s, got %s", want, key)
	}

	var snap map[string]any
	if err := json.Unmarshal(blob.objects[key], &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap["totalBooks"] != float64(2) || snap["activeAlerts"] != float64(1) {
		t.Errorf("unexpected snapshot %v", snap)
	}
	if low, _ := snap["lowStock"].([]any); len(low) != 1 {
		t.Errorf("expected one low-stock entry, got %v", snap["lowStock"])
	}
}

func TestReportArchiver_Prune(t *testing.T) {
	ctx := context.Background()
	f, alerts := newAlertFixture(t, &fakeNotifier{})
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	blob := &fakeBlob{infos: []domain.BlobInfo{
		{Path: "reports/inventory/2026/04/01/1.json", LastModified: now.AddDate(0, 0, -39)},
		{Path: "reports/inventory/2026/05/09/2.json", LastModified: now.AddDate(0, 0, -1)},
	}}
	a := NewReportArchiver(f.inventory, alerts, blob, blob, blob, ReportConfig{Retention: 30 * 24 * time.Hour}, discardLogger())
	a.now = func() time.Time { return now }

	removed, err := a.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 || len(blob.deleted) != 1 || blob.deleted[0] != "reports/inventory/2026/04/01/1.json" {
		t.Errorf("expected only the old snapshot deleted, got %d %v", removed, blob.deleted)
	}
}
