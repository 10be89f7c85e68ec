package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
	"github.com/alanyoungcy/bookstock/internal/schedule"
)

// ReportConfig tunes the report archiver.
type ReportConfig struct {
	// Interval between snapshots. Ignored when Cron is set.
	Interval time.Duration
	// Cron is an optional five-field schedule, e.g. "0 3 * * *".
	Cron string
	// Prefix is the object key prefix, default "reports/inventory".
	Prefix string
	// Retention drops snapshots older than this. Zero keeps everything.
	Retention time.Duration
}

// ReportArchiver writes periodic JSON inventory snapshots to blob storage.
type ReportArchiver struct {
	inventory *InventoryService
	alerts    *AlertService
	writer    domain.BlobWriter
	reader    domain.BlobReader
	deleter   domain.BlobDeleter
	cfg       ReportConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewReportArchiver creates a ReportArchiver. reader and deleter are only
// needed for retention pruning and may be nil.
func NewReportArchiver(
	inventory *InventoryService,
	alerts *AlertService,
	writer domain.BlobWriter,
	reader domain.BlobReader,
	deleter domain.BlobDeleter,
	cfg ReportConfig,
	logger *slog.Logger,
) *ReportArchiver {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if cfg.Prefix == "" {
		cfg.Prefix = "reports/inventory"
	}
	return &ReportArchiver{
		inventory: inventory,
		alerts:    alerts,
		writer:    writer,
		reader:    reader,
		deleter:   deleter,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "report_archiver")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type reportBook struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Price         string `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
	StockStatus   string `json:"stockStatus"`
	MinThreshold  int    `json:"minThreshold"`
}

type reportSnapshot struct {
	GeneratedAt     time.Time         `json:"generatedAt"`
	TotalBooks      int               `json:"totalBooks"`
	InStockCount    int               `json:"inStockCount"`
	OutOfStockCount int               `json:"outOfStockCount"`
	LowStockCount   int               `json:"lowStockCount"`
	LowStock        []reportBook      `json:"lowStock"`
	CriticalStock   []reportBook      `json:"criticalStock"`
	ActiveAlerts    int               `json:"activeAlerts"`
	AlertStates     map[string]string `json:"alertStates"`
}

func toReportBooks(books []domain.Book) []reportBook {
	out := make([]reportBook, len(books))
	for i, b := range books {
		out[i] = reportBook{
			ID:            b.ID,
			Title:         b.Title,
			Author:        b.Author,
			Price:         b.Price.StringFixed(2),
			StockQuantity: b.StockQuantity,
			StockStatus:   string(b.StockStatus),
			MinThreshold:  b.EffectiveThreshold(),
		}
	}
	return out
}

// ObjectPath returns the key a snapshot taken at t is written to:
// <prefix>/YYYY/MM/DD/<unix-seconds>.json.
func (a *ReportArchiver) ObjectPath(t time.Time) string {
	t = t.UTC()
	return path.Join(a.cfg.Prefix, t.Format("2006/01/02"), fmt.Sprintf("%d.json", t.Unix()))
}

// Archive writes one snapshot and returns its key.
func (a *ReportArchiver) Archive(ctx context.Context) (string, error) {
	now := a.now()
	sum, err := a.inventory.Summary(ctx)
	if err != nil {
		return "", fmt.Errorf("report: summary: %w", err)
	}
	rep, err := a.alerts.Report(ctx)
	if err != nil {
		return "", fmt.Errorf("report: low stock: %w", err)
	}

	tracked, err := a.alerts.States(ctx)
	if err != nil {
		return "", fmt.Errorf("report: alert states: %w", err)
	}
	states := make(map[string]string, len(tracked))
	for id, st := range tracked {
		states[id] = string(st)
	}
	snap := reportSnapshot{
		GeneratedAt:     now,
		TotalBooks:      sum.TotalBooks,
		InStockCount:    sum.InStockCount,
		OutOfStockCount: sum.OutOfStockCount,
		LowStockCount:   sum.LowStockCount,
		LowStock:        toReportBooks(rep.LowStockBooks),
		CriticalStock:   toReportBooks(rep.CriticalLowStockBooks),
		ActiveAlerts:    rep.ActiveAlerts,
		AlertStates:     states,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal: %w", err)
	}

	key := a.ObjectPath(now)
	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("report: upload %s: %w", key, err)
	}
	a.logger.InfoContext(ctx, "report_archiver: snapshot written",
		slog.String("path", key),
		slog.Int("bytes", len(data)),
		slog.Int("low_stock", len(snap.LowStock)),
	)
	return key, nil
}

// Prune deletes snapshots older than the retention window and returns how
// many were removed.
func (a *ReportArchiver) Prune(ctx context.Context) (int, error) {
	if a.cfg.Retention <= 0 || a.reader == nil || a.deleter == nil {
		return 0, nil
	}
	cutoff := a.now().Add(-a.cfg.Retention)
	objs, err := a.reader.List(ctx, a.cfg.Prefix+"/")
	if err != nil {
		return 0, fmt.Errorf("report: list: %w", err)
	}

	removed := 0
	for _, o := range objs {
		if o.LastModified.IsZero() || !o.LastModified.Before(cutoff) {
			continue
		}
		if err := a.deleter.Delete(ctx, o.Path); err != nil {
			return removed, fmt.Errorf("report: prune: %w", err)
		}
		removed++
	}
	if removed > 0 {
		a.logger.InfoContext(ctx, "report_archiver: pruned snapshots",
			slog.Int("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}
	return removed, nil
}

// Run archives on the configured schedule until ctx is cancelled.
func (a *ReportArchiver) Run(ctx context.Context) error {
	if a.cfg.Cron != "" {
		return a.runCron(ctx)
	}
	a.logger.InfoContext(ctx, "report_archiver: started", slog.Duration("interval", a.cfg.Interval))
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *ReportArchiver) runCron(ctx context.Context) error {
	c, err := schedule.Parse(a.cfg.Cron)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	a.logger.InfoContext(ctx, "report_archiver: started", slog.String("cron", c.String()))
	for {
		next, err := c.Next(time.Now())
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			a.tick(ctx)
		}
	}
}

func (a *ReportArchiver) tick(ctx context.Context) {
	if _, err := a.Archive(ctx); err != nil {
		a.logger.ErrorContext(ctx, "report_archiver: archive failed", slog.String("error", err.Error()))
		return
	}
	if _, err := a.Prune(ctx); err != nil {
		a.logger.ErrorContext(ctx, "report_archiver: prune failed", slog.String("error", err.Error()))
	}
}
