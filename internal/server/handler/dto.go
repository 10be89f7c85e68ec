package handler

import (
	"time"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// The wire format uses camelCase keys. Money is rendered as a decimal string
// so no precision is lost in transit.

type bookResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author,omitempty"`
	Price         string    `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	StockStatus   string    `json:"stockStatus"`
	MinThreshold  int       `json:"minThreshold"`
	MaxThreshold  int       `json:"maxThreshold,omitempty"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	LowStock      bool      `json:"lowStock"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toBookResponse(b domain.Book) bookResponse {
	return bookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Price:         b.Price.StringFixed(2),
		StockQuantity: b.StockQuantity,
		StockStatus:   string(b.StockStatus),
		MinThreshold:  b.EffectiveThreshold(),
		MaxThreshold:  b.MaxThreshold,
		CoverImageURL: b.CoverImageURL,
		LowStock:      b.IsLowStock(),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toBookResponses(books []domain.Book) []bookResponse {
	out := make([]bookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, toBookResponse(b))
	}
	return out
}

type summaryResponse struct {
	TotalBooks      int `json:"totalBooks"`
	InStockCount    int `json:"inStockCount"`
	OutOfStockCount int `json:"outOfStockCount"`
	LowStockCount   int `json:"lowStockCount"`
}

func toSummaryResponse(s domain.InventorySummary) summaryResponse {
	return summaryResponse{
		TotalBooks:      s.TotalBooks,
		InStockCount:    s.InStockCount,
		OutOfStockCount: s.OutOfStockCount,
		LowStockCount:   s.LowStockCount,
	}
}

type orderItemResponse struct {
	BookID   string `json:"bookId"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	Items       []orderItemResponse `json:"items"`
	TotalAmount string              `json:"totalAmount"`
	Status      string              `json:"status"`
	OrderDate   time.Time           `json:"orderDate"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			BookID:   it.BookID,
			Title:    it.Title,
			Price:    it.Price.StringFixed(2),
			Quantity: it.Quantity,
			Subtotal: it.Subtotal().StringFixed(2),
		})
	}
	return orderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		Items:       items,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Status:      string(o.Status),
		OrderDate:   o.OrderDate,
		UpdatedAt:   o.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}
