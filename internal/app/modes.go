package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bookstock/internal/server"
	"github.com/alanyoungcy/bookstock/internal/server/handler"
	"github.com/alanyoungcy/bookstock/internal/server/ws"
	"github.com/alanyoungcy/bookstock/internal/service"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ServerMode serves the HTTP API and the WebSocket feed.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// WorkerMode runs the background loops: the low-stock sweep, the order
// notification relay and, when enabled, the report archiver.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting worker mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the server and the workers in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	svcs := deps.Services

	g.Go(func() error {
		return svcs.Alerts.Run(ctx)
	})

	relay := service.NewOrderNotifier(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		return relay.Run(ctx)
	})

	if svcs.Reports != nil {
		g.Go(func() error {
			return svcs.Reports.Run(ctx)
		})
	}
}

// startHTTPServer adds the HTTP server and WebSocket hub to g. The server
// is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	svcs := deps.Services

	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, a.cfg.Store.Driver),
		Inventory: handler.NewInventoryHandler(svcs.Inventory, a.logger),
		Alerts:    handler.NewAlertHandler(svcs.Alerts, svcs.Inventory, a.logger),
		Orders:    handler.NewOrderHandler(svcs.Orders, a.logger),
		Reports:   handler.NewReportHandler(svcs.Sales, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		APIKeyHash:      a.cfg.Server.APIKeyHash,
		OrderRateLimit:  a.cfg.Server.RateLimit,
		OrderRateWindow: a.cfg.Server.RateWindow.Duration,
	}, handlers, server.Deps{
		Hub:     hub,
		Metrics: deps.Metrics,
		Limiter: deps.RateLimiter,
	}, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("app: http shutdown failed", slog.String("error", err.Error()))
			return fmt.Errorf("app: %w", err)
		}
		return nil
	})
}
