package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
	"github.com/alanyoungcy/bookstock/internal/metrics"
)

// sweepLockKey guards the sweep across instances sharing one Redis.
const sweepLockKey = "alert-sweep"

// AlertNotifier delivers operator notifications. *notify.Notifier satisfies
// it.
type AlertNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// AlertConfig tunes the alert engine.
type AlertConfig struct {
	SweepInterval     time.Duration
	SweepOnStart      bool
	CriticalThreshold int
	LockTTL           time.Duration
}

// AlertService raises one notification per book when it enters the
// low-stock band and stays quiet until the book leaves the band. The alert
// map lives in an AlertStore so every process sees the same entries.
type AlertService struct {
	inventory *InventoryService
	states    domain.AlertStore
	notifier  AlertNotifier
	locks     domain.LockManager
	bus       domain.SignalBus
	metrics   *metrics.Metrics
	cfg       AlertConfig
	logger    *slog.Logger

	// sweepMu serializes sweeps within one process; locks does the same
	// across processes.
	sweepMu sync.Mutex
}

// NewAlertService creates an AlertService. notifier, locks and bus may be
// nil.
func NewAlertService(
	inventory *InventoryService,
	states domain.AlertStore,
	notifier AlertNotifier,
	locks domain.LockManager,
	bus domain.SignalBus,
	cfg AlertConfig,
	logger *slog.Logger,
) *AlertService {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.CriticalThreshold <= 0 {
		cfg.CriticalThreshold = 2
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &AlertService{
		inventory: inventory,
		states:    states,
		notifier:  notifier,
		locks:     locks,
		bus:       bus,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "alerts")),
	}
}

// WithMetrics attaches alert counters.
func (s *AlertService) WithMetrics(m *metrics.Metrics) *AlertService {
	s.metrics = m
	return s
}

// Run sweeps on every tick until ctx is cancelled. Call in a goroutine.
func (s *AlertService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "alerts: sweep loop started",
		slog.Duration("interval", s.cfg.SweepInterval),
	)
	if s.cfg.SweepOnStart {
		s.runSweep(ctx)
	}

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *AlertService) runSweep(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "alerts: sweep failed", slog.String("error", err.Error()))
		if s.notifier != nil {
			if nerr := s.notifier.Notify(ctx, "sweep_failed", "Low-stock sweep failed", err.Error()); nerr != nil {
				s.logger.WarnContext(ctx, "alerts: sweep failure notification failed",
					slog.String("error", nerr.Error()),
				)
			}
		}
	}
}

// Sweep scans the low-stock band once. Books entering the band are marked
// ACTIVE and notified; entries for books no longer in the band are dropped.
// When another instance holds the sweep lock the call is skipped.
func (s *AlertService) Sweep(ctx context.Context) (domain.SweepResult, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, sweepLockKey, s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.DebugContext(ctx, "alerts: sweep skipped, lock held elsewhere")
				s.metrics.Sweep("skipped", 0)
				return domain.SweepResult{Skipped: true}, nil
			}
			s.metrics.Sweep("error", 0)
			return domain.SweepResult{}, fmt.Errorf("alerts: sweep lock: %w", err)
		}
		defer unlock()
	}

	low, err := s.inventory.LowStockBooks(ctx)
	if err != nil {
		s.metrics.Sweep("error", 0)
		return domain.SweepResult{}, fmt.Errorf("alerts: sweep: %w", err)
	}

	res := domain.SweepResult{LowStock: len(low)}
	inBand := make(map[string]bool, len(low))
	var raise []domain.Book

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	for _, b := range low {
		inBand[b.ID] = true
		created, err := s.states.SetIfAbsent(ctx, b.ID, domain.AlertActive)
		if err != nil {
			s.metrics.Sweep("error", 0)
			return res, fmt.Errorf("alerts: sweep: %w", err)
		}
		if created {
			raise = append(raise, b)
		}
	}

	tracked, err := s.states.All(ctx)
	if err != nil {
		s.metrics.Sweep("error", 0)
		return res, fmt.Errorf("alerts: sweep: %w", err)
	}
	for id := range tracked {
		if inBand[id] {
			continue
		}
		if err := s.states.Delete(ctx, id); err != nil {
			s.metrics.Sweep("error", 0)
			return res, fmt.Errorf("alerts: sweep: %w", err)
		}
		res.Cleared = append(res.Cleared, id)
	}

	for _, b := range raise {
		if err := s.raise(ctx, b); err != nil {
			s.logger.WarnContext(ctx, "alerts: notification failed, will retry next sweep",
				slog.String("book_id", b.ID),
				slog.String("error", err.Error()),
			)
			if _, derr := s.states.DeleteIf(ctx, b.ID, domain.AlertActive); derr != nil {
				s.logger.WarnContext(ctx, "alerts: could not clear failed entry",
					slog.String("book_id", b.ID),
					slog.String("error", derr.Error()),
				)
			}
			s.metrics.AlertFailed()
			res.Failed = append(res.Failed, b.ID)
			continue
		}
		res.Raised = append(res.Raised, b.ID)
	}

	s.metrics.Sweep("ok", res.LowStock)
	s.logger.InfoContext(ctx, "alerts: sweep complete",
		slog.Int("low_stock", res.LowStock),
		slog.Int("raised", len(res.Raised)),
		slog.Int("cleared", len(res.Cleared)),
		slog.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// raise sends the notification for one book, then publishes the alert
// event. The event is only published once delivery succeeded.
func (s *AlertService) raise(ctx context.Context, b domain.Book) error {
	if s.notifier != nil {
		title := "Low stock: " + b.Title
		msg := fmt.Sprintf("Book '%s' (%s) has only %d units left (threshold %d).",
			b.Title, b.ID, b.StockQuantity, b.EffectiveThreshold())
		if err := s.notifier.Notify(ctx, "low_stock", title, msg); err != nil {
			return err
		}
	}
	s.metrics.AlertRaised()

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":     "low_stock_alert",
			"book_id":   b.ID,
			"title":     b.Title,
			"quantity":  b.StockQuantity,
			"threshold": b.EffectiveThreshold(),
		})
		if err := s.bus.Publish(ctx, domain.ChannelAlerts, evt); err != nil {
			s.logger.WarnContext(ctx, "alerts: publish event failed",
				slog.String("book_id", b.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Acknowledge marks the book's alert as seen. Repeating it is harmless.
func (s *AlertService) Acknowledge(ctx context.Context, bookID string) error {
	if err := s.states.Set(ctx, bookID, domain.AlertAcknowledged); err != nil {
		return fmt.Errorf("alerts: acknowledge %s: %w", bookID, err)
	}
	s.logger.InfoContext(ctx, "alerts: acknowledged", slog.String("book_id", bookID))
	return nil
}

// Reset forgets the book's alert so the next sweep can raise it again.
func (s *AlertService) Reset(ctx context.Context, bookID string) error {
	if err := s.states.Delete(ctx, bookID); err != nil {
		return fmt.Errorf("alerts: reset %s: %w", bookID, err)
	}
	s.logger.InfoContext(ctx, "alerts: reset", slog.String("book_id", bookID))
	return nil
}

// States returns the tracked alert entries.
func (s *AlertService) States(ctx context.Context) (map[string]domain.AlertState, error) {
	states, err := s.states.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("alerts: states: %w", err)
	}
	return states, nil
}

// CriticalLowStock returns books with 0 < quantity <= the critical threshold.
func (s *AlertService) CriticalLowStock(ctx context.Context) ([]domain.Book, error) {
	books, err := s.inventory.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("alerts: critical: %w", err)
	}
	return s.critical(books), nil
}

func (s *AlertService) critical(books []domain.Book) []domain.Book {
	out := make([]domain.Book, 0)
	for _, b := range books {
		if b.StockQuantity > 0 && b.StockQuantity <= s.cfg.CriticalThreshold {
			out = append(out, b)
		}
	}
	return out
}

// Report snapshots low and critical stock with the tracked alert count.
func (s *AlertService) Report(ctx context.Context) (domain.LowStockReport, error) {
	books, err := s.inventory.ListBooks(ctx)
	if err != nil {
		return domain.LowStockReport{}, fmt.Errorf("alerts: report: %w", err)
	}
	low := make([]domain.Book, 0)
	for _, b := range books {
		if b.IsLowStock() {
			low = append(low, b)
		}
	}

	active, err := s.states.Count(ctx)
	if err != nil {
		return domain.LowStockReport{}, fmt.Errorf("alerts: report: %w", err)
	}

	return domain.LowStockReport{
		LowStockBooks:         low,
		CriticalLowStockBooks: s.critical(books),
		ActiveAlerts:          active,
	}, nil
}
