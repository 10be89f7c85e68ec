package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// AlertService defines the methods that the alert handler requires from the
// service layer.
type AlertService interface {
	Sweep(ctx context.Context) (domain.SweepResult, error)
	Acknowledge(ctx context.Context, bookID string) error
	Reset(ctx context.Context, bookID string) error
	States(ctx context.Context) (map[string]domain.AlertState, error)
	CriticalLowStock(ctx context.Context) ([]domain.Book, error)
	Report(ctx context.Context) (domain.LowStockReport, error)
}

// LowStockLister supplies the low-stock band for the alert listing.
type LowStockLister interface {
	LowStockBooks(ctx context.Context) ([]domain.Book, error)
}

// AlertHandler serves low-stock alert endpoints.
type AlertHandler struct {
	alerts    AlertService
	inventory LowStockLister
	logger    *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(alerts AlertService, inventory LowStockLister, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		alerts:    alerts,
		inventory: inventory,
		logger:    logHandler(logger, "alerts"),
	}
}

type alertBookResponse struct {
	bookResponse
	AlertState string `json:"alertState,omitempty"`
}

type alertListResponse struct {
	Alerts []alertBookResponse `json:"alerts"`
	Count  int                 `json:"count"`
}

// ListAlerts returns low-stock books annotated with their alert state.
// GET /api/inventory/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	books, err := h.inventory.LowStockBooks(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list alerts", err)
		return
	}
	states, err := h.alerts.States(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list alerts", err)
		return
	}
	out := make([]alertBookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, alertBookResponse{
			bookResponse: toBookResponse(b),
			AlertState:   string(states[b.ID]),
		})
	}
	writeJSON(w, http.StatusOK, alertListResponse{Alerts: out, Count: len(out)})
}

// Critical lists books at or below the critical quantity.
// GET /api/inventory/alerts/critical
func (h *AlertHandler) Critical(w http.ResponseWriter, r *http.Request) {
	books, err := h.alerts.CriticalLowStock(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list critical", err)
		return
	}
	writeJSON(w, http.StatusOK, bookListResponse{Books: toBookResponses(books), Count: len(books)})
}

type reportResponse struct {
	LowStockBooks         []bookResponse `json:"lowStockBooks"`
	CriticalLowStockBooks []bookResponse `json:"criticalLowStockBooks"`
	ActiveAlerts          int            `json:"activeAlerts"`
}

// Report returns the low-stock report.
// GET /api/inventory/alerts/report
func (h *AlertHandler) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.alerts.Report(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "alert report", err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		LowStockBooks:         toBookResponses(rep.LowStockBooks),
		CriticalLowStockBooks: toBookResponses(rep.CriticalLowStockBooks),
		ActiveAlerts:          rep.ActiveAlerts,
	})
}

type alertStateResponse struct {
	BookID string `json:"bookId"`
	State  string `json:"state"`
}

// Acknowledge silences the book's alert until it is reset or clears.
// POST /api/inventory/alerts/{id}/acknowledge
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.alerts.Acknowledge(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, "acknowledge alert", err)
		return
	}
	writeJSON(w, http.StatusOK, alertStateResponse{BookID: id, State: string(domain.AlertAcknowledged)})
}

// Reset clears the book's alert so the next sweep can raise it again.
// POST /api/inventory/alerts/{id}/reset
func (h *AlertHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.alerts.Reset(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, "reset alert", err)
		return
	}
	writeJSON(w, http.StatusOK, alertStateResponse{BookID: id, State: "NONE"})
}

type sweepResponse struct {
	Skipped  bool     `json:"skipped"`
	LowStock int      `json:"lowStock"`
	Raised   []string `json:"raised"`
	Cleared  []string `json:"cleared"`
	Failed   []string `json:"failed"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Sweep runs one alert sweep immediately.
// POST /api/inventory/alerts/sweep
func (h *AlertHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.alerts.Sweep(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "alert sweep", err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{
		Skipped:  res.Skipped,
		LowStock: res.LowStock,
		Raised:   nonNil(res.Raised),
		Cleared:  nonNil(res.Cleared),
		Failed:   nonNil(res.Failed),
	})
}
