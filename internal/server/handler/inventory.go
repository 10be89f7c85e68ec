package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// InventoryService defines the methods that the inventory handler requires
// from the service layer.
type InventoryService interface {
	CreateBook(ctx context.Context, nb domain.NewBook) (domain.Book, error)
	GetBook(ctx context.Context, bookID string) (domain.Book, error)
	DeleteBook(ctx context.Context, bookID string) error
	ListBooks(ctx context.Context) ([]domain.Book, error)
	LowStockBooks(ctx context.Context) ([]domain.Book, error)
	OutOfStockBooks(ctx context.Context) ([]domain.Book, error)
	InStockBooks(ctx context.Context) ([]domain.Book, error)
	Summary(ctx context.Context) (domain.InventorySummary, error)
	UpdateStock(ctx context.Context, bookID string, qty int) (domain.Book, error)
	SetStatusOverride(ctx context.Context, bookID string, status domain.StockStatus) (domain.Book, error)
	SetThresholds(ctx context.Context, bookID string, minThreshold, maxThreshold int) (domain.Book, error)
}

// InventoryHandler serves catalog and stock endpoints.
type InventoryHandler struct {
	inventory InventoryService
	logger    *slog.Logger
}

// NewInventoryHandler creates an InventoryHandler with the given service and logger.
func NewInventoryHandler(inventory InventoryService, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventory: inventory,
		logger:    logHandler(logger, "inventory"),
	}
}

type inventoryResponse struct {
	Books   []bookResponse  `json:"books"`
	Summary summaryResponse `json:"summary"`
}

// ListInventory returns every book together with the summary counts.
// GET /api/inventory
func (h *InventoryHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	books, err := h.inventory.ListBooks(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list inventory", err)
		return
	}
	sum, err := h.inventory.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "inventory summary", err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryResponse{
		Books:   toBookResponses(books),
		Summary: toSummaryResponse(sum),
	})
}

type createBookRequest struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	MinThreshold  int             `json:"minThreshold"`
	MaxThreshold  int             `json:"maxThreshold"`
	CoverImageURL string          `json:"coverImageUrl"`
}

// CreateBook adds a book to the catalog.
// POST /api/inventory
func (h *InventoryHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.inventory.CreateBook(r.Context(), domain.NewBook{
		ID:            req.ID,
		Title:         req.Title,
		Author:        req.Author,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		MinThreshold:  req.MinThreshold,
		MaxThreshold:  req.MaxThreshold,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "create book", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookResponse(b))
}

// GetBook returns one book.
// GET /api/inventory/{id}
func (h *InventoryHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.inventory.GetBook(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get book", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(b))
}

// DeleteBook removes a book from the catalog.
// DELETE /api/inventory/{id}
func (h *InventoryHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.DeleteBook(r.Context(), pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "delete book", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary returns the stock band counts.
// GET /api/inventory/summary
func (h *InventoryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.inventory.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "inventory summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}

type bookListResponse struct {
	Books []bookResponse `json:"books"`
	Count int            `json:"count"`
}

func (h *InventoryHandler) list(op string, fetch func(context.Context) ([]domain.Book, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		books, err := fetch(r.Context())
		if err != nil {
			writeServiceError(w, r, h.logger, op, err)
			return
		}
		writeJSON(w, http.StatusOK, bookListResponse{Books: toBookResponses(books), Count: len(books)})
	}
}

// LowStock lists books in the low-stock band.
// GET /api/inventory/low-stock
func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	h.list("list low stock", h.inventory.LowStockBooks)(w, r)
}

// OutOfStock lists unavailable books.
// GET /api/inventory/out-of-stock
func (h *InventoryHandler) OutOfStock(w http.ResponseWriter, r *http.Request) {
	h.list("list out of stock", h.inventory.OutOfStockBooks)(w, r)
}

// InStock lists available books.
// GET /api/inventory/in-stock
func (h *InventoryHandler) InStock(w http.ResponseWriter, r *http.Request) {
	h.list("list in stock", h.inventory.InStockBooks)(w, r)
}

type updateStockRequest struct {
	StockQuantity *int `json:"stockQuantity"`
}

// UpdateStock overwrites a book's quantity.
// PUT /api/inventory/stock/{id}
func (h *InventoryHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req updateStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StockQuantity == nil {
		writeError(w, http.StatusBadRequest, "stockQuantity is required")
		return
	}
	b, err := h.inventory.UpdateStock(r.Context(), pathParam(r, "id"), *req.StockQuantity)
	if err != nil {
		writeServiceError(w, r, h.logger, "update stock", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(b))
}

type statusOverrideRequest struct {
	StockStatus string `json:"stockStatus"`
}

// SetStatus stores a manual stock status.
// PUT /api/inventory/status/{id}
func (h *InventoryHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.inventory.SetStatusOverride(r.Context(), pathParam(r, "id"), domain.StockStatus(req.StockStatus))
	if err != nil {
		writeServiceError(w, r, h.logger, "set stock status", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(b))
}

type thresholdRequest struct {
	MinThreshold int `json:"minThreshold"`
	MaxThreshold int `json:"maxThreshold"`
}

// SetThresholds updates a book's low-stock band.
// PUT /api/inventory/threshold/{id}
func (h *InventoryHandler) SetThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.inventory.SetThresholds(r.Context(), pathParam(r, "id"), req.MinThreshold, req.MaxThreshold)
	if err != nil {
		writeServiceError(w, r, h.logger, "set thresholds", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(b))
}
