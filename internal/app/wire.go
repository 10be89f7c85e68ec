package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/alanyoungcy/bookstock/internal/blob/s3"
	"github.com/alanyoungcy/bookstock/internal/cache/redis"
	"github.com/alanyoungcy/bookstock/internal/config"
	"github.com/alanyoungcy/bookstock/internal/domain"
	"github.com/alanyoungcy/bookstock/internal/metrics"
	"github.com/alanyoungcy/bookstock/internal/notify"
	"github.com/alanyoungcy/bookstock/internal/server/handler"
	"github.com/alanyoungcy/bookstock/internal/service"
	"github.com/alanyoungcy/bookstock/internal/store/memory"
	"github.com/alanyoungcy/bookstock/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Books  domain.BookStore
	Orders domain.OrderStore
	Users  domain.UserStore

	// Caches and coordination. RateLimiter, LockManager and SummaryCache are
	// nil when Redis is disabled.
	SignalBus    domain.SignalBus
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SummaryCache domain.SummaryCache

	// Alerts is the shared alert map: a Redis hash when Redis is enabled,
	// otherwise process memory.
	Alerts domain.AlertStore

	// Blob storage, set only when the report archive is enabled.
	BlobWriter  domain.BlobWriter
	BlobReader  domain.BlobReader
	BlobDeleter domain.BlobDeleter

	Notifier *notify.Notifier
	Metrics  *metrics.Metrics

	// HealthChecks probes each external backend for /api/health.
	HealthChecks map[string]handler.HealthCheck

	Services Services
}

// Services holds the wired service layer.
type Services struct {
	Inventory *service.InventoryService
	Orders    *service.OrderService
	Alerts    *service.AlertService
	Sales     *service.SalesReportService
	Reports   *service.ReportArchiver // nil unless report.enabled
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}

	// --- Stores ---
	switch strings.ToLower(cfg.Store.Driver) {
	case "postgres":
		pg, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			applied, err := pg.RunMigrations(ctx)
			if err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
			if len(applied) > 0 {
				logger.InfoContext(ctx, "wire: migrations applied", slog.Any("files", applied))
			}
		}

		pool := pg.Pool()
		deps.Books = postgres.NewBookStore(pool)
		deps.Orders = postgres.NewOrderStore(pool)
		deps.Users = postgres.NewUserStore(pool)
		deps.HealthChecks["postgres"] = pool.Ping
	default:
		deps.Books = memory.NewBookStore()
		deps.Orders = memory.NewOrderStore()
		deps.Users = memory.NewUserStore()
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.SignalBus = redis.NewSignalBus(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.LockManager = redis.NewLockManager(rc)
		deps.SummaryCache = redis.NewSummaryCache(rc, cfg.Redis.SummaryTTL.Duration)
		deps.Alerts = redis.NewAlertStore(rc)
		deps.HealthChecks["redis"] = rc.Ping
	} else {
		deps.SignalBus = memory.NewSignalBus()
		deps.Alerts = memory.NewAlertStore()
	}

	// --- S3 blob storage (report archive only) ---
	if cfg.Report.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.BlobWriter = s3blob.NewWriter(sc)
		reader := s3blob.NewReader(sc)
		deps.BlobReader = reader
		deps.BlobDeleter = reader
		deps.HealthChecks["s3"] = sc.Health
	}

	// --- Notifications ---
	deps.Notifier = newNotifier(cfg.Notify, logger)

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metrics.New(reg)

	deps.Services = buildServices(cfg, deps, logger)
	return deps, cleanup, nil
}

// OpenPostgres connects to the configured database.
func OpenPostgres(ctx context.Context, cfg *config.Config) (*postgres.Client, error) {
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return pg, nil
}

// newNotifier builds the notifier from the configured senders. With no
// remote sender configured, alerts go to the log.
func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if len(senders) == 0 {
		senders = append(senders, notify.NewLogSender(logger))
	}
	return notify.NewNotifier(senders, cfg.Events, logger)
}

func buildServices(cfg *config.Config, deps *Dependencies, logger *slog.Logger) Services {
	inventory := service.NewInventoryService(deps.Books, deps.SignalBus, logger).
		WithMetrics(deps.Metrics)
	if deps.SummaryCache != nil {
		inventory.WithSummaryCache(deps.SummaryCache)
	}

	orders := service.NewOrderService(
		deps.Orders, deps.Users, inventory, deps.RateLimiter, deps.SignalBus,
		service.OrderConfig{
			RateLimit:         cfg.Orders.RateLimit,
			RateWindow:        cfg.Orders.RateWindow.Duration,
			StrictTransitions: cfg.Orders.StrictTransitions,
		},
		logger,
	).WithMetrics(deps.Metrics)

	alertCfg := service.AlertConfig{
		SweepInterval:     cfg.Alert.SweepInterval.Duration,
		SweepOnStart:      cfg.Alert.SweepOnStart,
		CriticalThreshold: cfg.Alert.CriticalThreshold,
		LockTTL:           cfg.Alert.LockTTL.Duration,
	}
	alerts := service.NewAlertService(inventory, deps.Alerts, deps.Notifier, deps.LockManager, deps.SignalBus, alertCfg, logger).
		WithMetrics(deps.Metrics)

	svcs := Services{
		Inventory: inventory,
		Orders:    orders,
		Alerts:    alerts,
		Sales:     service.NewSalesReportService(deps.Orders, inventory, logger),
	}
	if deps.BlobWriter != nil {
		svcs.Reports = service.NewReportArchiver(
			inventory, alerts, deps.BlobWriter, deps.BlobReader, deps.BlobDeleter,
			service.ReportConfig{
				Interval:  cfg.Report.Interval.Duration,
				Cron:      cfg.Report.Cron,
				Prefix:    cfg.Report.Prefix,
				Retention: time.Duration(cfg.Report.RetentionDays) * 24 * time.Hour,
			},
			logger,
		)
	}
	return svcs
}
