package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// SalesReportService defines the methods that the reports handler requires
// from the service layer.
type SalesReportService interface {
	Summary(ctx context.Context, since, until *time.Time) (domain.SalesSummary, error)
	TopBooks(ctx context.Context, limit int, since, until *time.Time) ([]domain.BookSales, error)
	MonthlyRevenue(ctx context.Context, since, until *time.Time) ([]domain.MonthlyRevenue, error)
}

const (
	defaultTopBooks = 10
	maxTopBooks     = 100
)

// ReportHandler serves the sales reporting endpoints.
type ReportHandler struct {
	sales  SalesReportService
	logger *slog.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(sales SalesReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		sales:  sales,
		logger: logHandler(logger, "reports"),
	}
}

type salesSummaryResponse struct {
	TotalRevenue      string            `json:"totalRevenue"`
	TotalOrders       int               `json:"totalOrders"`
	TotalItemsSold    int               `json:"totalItemsSold"`
	AverageOrderValue string            `json:"averageOrderValue"`
	OrdersByStatus    map[string]int    `json:"ordersByStatus"`
	RevenueByStatus   map[string]string `json:"revenueByStatus"`
}

// Sales returns revenue, order and item totals.
// GET /api/reports/sales?since=...&until=...
func (h *ReportHandler) Sales(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := h.sales.Summary(r.Context(), win.Since, win.Until)
	if err != nil {
		writeServiceError(w, r, h.logger, "sales report", err)
		return
	}

	resp := salesSummaryResponse{
		TotalRevenue:      sum.TotalRevenue.StringFixed(2),
		TotalOrders:       sum.TotalOrders,
		TotalItemsSold:    sum.TotalItemsSold,
		AverageOrderValue: sum.AverageOrderValue.StringFixed(2),
		OrdersByStatus:    make(map[string]int, len(sum.OrdersByStatus)),
		RevenueByStatus:   make(map[string]string, len(sum.RevenueByStatus)),
	}
	for st, n := range sum.OrdersByStatus {
		resp.OrdersByStatus[string(st)] = n
	}
	for st, v := range sum.RevenueByStatus {
		resp.RevenueByStatus[string(st)] = v.StringFixed(2)
	}
	writeJSON(w, http.StatusOK, resp)
}

type bookSalesResponse struct {
	BookID            string `json:"bookId"`
	Title             string `json:"title"`
	Author            string `json:"author,omitempty"`
	Price             string `json:"price"`
	TotalQuantitySold int    `json:"totalQuantitySold"`
	TotalRevenue      string `json:"totalRevenue"`
}

// TopBooks ranks books by quantity sold.
// GET /api/reports/top-books?limit=10
func (h *ReportHandler) TopBooks(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopBooks
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: expected a positive integer")
			return
		}
		limit = min(n, maxTopBooks)
	}
	win, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ranked, err := h.sales.TopBooks(r.Context(), limit, win.Since, win.Until)
	if err != nil {
		writeServiceError(w, r, h.logger, "top books report", err)
		return
	}
	out := make([]bookSalesResponse, 0, len(ranked))
	for _, b := range ranked {
		out = append(out, bookSalesResponse{
			BookID:            b.BookID,
			Title:             b.Title,
			Author:            b.Author,
			Price:             b.Price.StringFixed(2),
			TotalQuantitySold: b.QuantitySold,
			TotalRevenue:      b.Revenue.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type monthlyRevenueResponse struct {
	Period     string `json:"period"`
	Year       int    `json:"year"`
	Month      string `json:"month"`
	Revenue    string `json:"revenue"`
	OrderCount int    `json:"orderCount"`
	ItemsSold  int    `json:"itemsSold"`
}

// MonthlyRevenue returns per-month totals, most recent first.
// GET /api/reports/monthly-revenue
func (h *ReportHandler) MonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	months, err := h.sales.MonthlyRevenue(r.Context(), win.Since, win.Until)
	if err != nil {
		writeServiceError(w, r, h.logger, "monthly revenue report", err)
		return
	}
	out := make([]monthlyRevenueResponse, 0, len(months))
	for _, m := range months {
		out = append(out, monthlyRevenueResponse{
			Period:     m.Period,
			Year:       m.Year,
			Month:      m.Month,
			Revenue:    m.Revenue.StringFixed(2),
			OrderCount: m.OrderCount,
			ItemsSold:  m.ItemsSold,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
