package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, opts domain.ListOpts) ([]domain.Order, error)
	ListUserOrders(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status string) (domain.Order, error)
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logHandler(logger, "orders"),
	}
}

type placeOrderItem struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
}

type placeOrderRequest struct {
	UserID string           `json:"userId"`
	Items  []placeOrderItem `json:"items"`
}

// PlaceOrder reserves stock and records a new order.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lines := make([]domain.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, domain.OrderLine{BookID: it.BookID, Quantity: it.Quantity})
	}

	order, err := h.orders.PlaceOrder(r.Context(), domain.PlaceOrderRequest{
		UserID: req.UserID,
		Items:  lines,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "place order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Count  int             `json:"count"`
}

// ListOrders returns orders newest first.
// GET /api/orders?limit=50&offset=0&since=...&until=...
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := h.orders.ListOrders(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: toOrderResponses(orders), Count: len(orders)})
}

// UserHistory returns one user's orders newest first.
// GET /api/orders/history/{userId}
func (h *OrderHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := h.orders.ListUserOrders(r.Context(), pathParam(r, "userId"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "order history", err)
		return
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: toOrderResponses(orders), Count: len(orders)})
}

// GetOrder returns one order.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus changes an order's lifecycle status.
// PUT /api/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.orders.UpdateStatus(r.Context(), pathParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
