package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
	"github.com/alanyoungcy/bookstock/internal/metrics"
	"github.com/alanyoungcy/bookstock/internal/server/handler"
	"github.com/alanyoungcy/bookstock/internal/server/middleware"
	"github.com/alanyoungcy/bookstock/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if both key fields are empty, authentication is disabled
	APIKeyHash  string // bcrypt hash, preferred over APIKey

	// OrderRateLimit caps POST /api/orders per client IP within
	// OrderRateWindow. Zero disables the limit.
	OrderRateLimit  int
	OrderRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Inventory *handler.InventoryHandler
	Alerts    *handler.AlertHandler
	Orders    *handler.OrderHandler
	Reports   *handler.ReportHandler
}

// Deps carries the optional infrastructure the server is wired with.
type Deps struct {
	Hub     *ws.Hub
	Metrics *metrics.Metrics
	Limiter domain.RateLimiter
}

// publicPaths are served without an API key.
var publicPaths = []string{"/api/health", "/metrics"}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, deps, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed and middleware-wrapped handler tree.
func NewHandler(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", deps.Metrics.Handler())
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}

	// Inventory.
	inv := handlers.Inventory
	mux.HandleFunc("GET /api/inventory", inv.ListInventory)
	mux.HandleFunc("POST /api/inventory", inv.CreateBook)
	mux.HandleFunc("GET /api/inventory/summary", inv.Summary)
	mux.HandleFunc("GET /api/inventory/low-stock", inv.LowStock)
	mux.HandleFunc("GET /api/inventory/out-of-stock", inv.OutOfStock)
	mux.HandleFunc("GET /api/inventory/in-stock", inv.InStock)
	mux.HandleFunc("GET /api/inventory/{id}", inv.GetBook)
	mux.HandleFunc("DELETE /api/inventory/{id}", inv.DeleteBook)
	mux.HandleFunc("PUT /api/inventory/stock/{id}", inv.UpdateStock)
	mux.HandleFunc("PUT /api/inventory/status/{id}", inv.SetStatus)
	mux.HandleFunc("PUT /api/inventory/threshold/{id}", inv.SetThresholds)

	// Alerts.
	al := handlers.Alerts
	mux.HandleFunc("GET /api/inventory/alerts", al.ListAlerts)
	mux.HandleFunc("GET /api/inventory/alerts/critical", al.Critical)
	mux.HandleFunc("GET /api/inventory/alerts/report", al.Report)
	mux.HandleFunc("POST /api/inventory/alerts/sweep", al.Sweep)
	mux.HandleFunc("POST /api/inventory/alerts/{id}/acknowledge", al.Acknowledge)
	mux.HandleFunc("POST /api/inventory/alerts/{id}/reset", al.Reset)

	// Orders. Placement carries its own per-IP rate limit.
	ord := handlers.Orders
	limit := middleware.RateLimit(deps.Limiter, cfg.OrderRateLimit, cfg.OrderRateWindow)
	mux.Handle("POST /api/orders", limit(http.HandlerFunc(ord.PlaceOrder)))
	mux.HandleFunc("GET /api/orders", ord.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", ord.GetOrder)
	mux.HandleFunc("GET /api/orders/history/{userId}", ord.UserHistory)
	mux.HandleFunc("PUT /api/orders/{id}/status", ord.UpdateStatus)

	if rep := handlers.Reports; rep != nil {
		mux.HandleFunc("GET /api/reports/sales", rep.Sales)
		mux.HandleFunc("GET /api/reports/top-books", rep.TopBooks)
		mux.HandleFunc("GET /api/reports/monthly-revenue", rep.MonthlyRevenue)
	}

	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	// Outermost first: CORS, logging, metrics, auth.
	var h http.Handler = mux
	h = middleware.Auth(middleware.AuthConfig{
		APIKey:     cfg.APIKey,
		APIKeyHash: cfg.APIKeyHash,
		Public:     publicPaths,
	})(h)
	h = middleware.Metrics(deps.Metrics)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
