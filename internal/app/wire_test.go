package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/bookstock/internal/config"
)

func TestWire_MemoryDefaults(t *testing.T) {
	cfg := config.Defaults()
	deps, cleanup, err := Wire(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	defer cleanup()

	if deps.Books == nil || deps.Orders == nil || deps.Users == nil || deps.SignalBus == nil || deps.Alerts == nil {
		t.Fatal("expected memory stores and bus to be wired")
	}
	if deps.RateLimiter != nil || deps.LockManager != nil || deps.SummaryCache != nil {
		t.Error("expected redis components to be absent")
	}
	if deps.BlobWriter != nil || deps.Services.Reports != nil {
		t.Error("expected report archive to be disabled")
	}
	if deps.Services.Inventory == nil || deps.Services.Orders == nil || deps.Services.Alerts == nil || deps.Services.Sales == nil {
		t.Error("expected services to be built")
	}
	if len(deps.HealthChecks) != 0 {
		t.Errorf("expected no backend health checks, got %d", len(deps.HealthChecks))
	}
}

func TestNewNotifier_FallsBackToLog(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		cfg  config.NotifyConfig
		want []string
	}{
		{"none configured", config.NotifyConfig{}, []string{"log"}},
		{"discord", config.NotifyConfig{DiscordWebhookURL: "http://hook"}, []string{"discord"}},
		{"both", config.NotifyConfig{TelegramToken: "t", TelegramChatID: "c", DiscordWebhookURL: "http://hook"}, []string{"telegram", "discord"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newNotifier(tt.cfg, logger)
			got := n.Senders()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}
