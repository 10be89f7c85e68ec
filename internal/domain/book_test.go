package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		threshold int
		want      StockStatus
	}{
		{"zero", 0, 5, StockOutOfStock},
		{"negative", -3, 5, StockOutOfStock},
		{"one", 1, 5, StockLow},
		{"at threshold", 5, 5, StockLow},
		{"above threshold", 6, 5, StockInStock},
		{"unset threshold uses default", 5, 0, StockLow},
		{"unset threshold above default", 6, 0, StockInStock},
		{"custom threshold", 10, 10, StockLow},
		{"custom threshold above", 11, 10, StockInStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStock(tt.quantity, tt.threshold)
			if got != tt.want {
				t.Errorf("ClassifyStock(%d, %d) = %s, want %s", tt.quantity, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestParseStockStatus(t *testing.T) {
	for _, s := range []string{"IN_STOCK", "LOW_STOCK", "OUT_OF_STOCK"} {
		if _, err := ParseStockStatus(s); err != nil {
			t.Errorf("expected %s to parse, got %v", s, err)
		}
	}
	if _, err := ParseStockStatus("in_stock"); err != ErrInvalidStockStatus {
		t.Errorf("expected ErrInvalidStockStatus, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	books := []Book{
		{ID: "a", StockQuantity: 0, StockStatus: StockOutOfStock},
		{ID: "b", StockQuantity: 3, StockStatus: StockLow},
		{ID: "c", StockQuantity: 50, StockStatus: StockInStock},
		// manual override: quantity left but forced unavailable
		{ID: "d", StockQuantity: 4, StockStatus: StockOutOfStock},
	}

	got := Summarize(books)
	want := InventorySummary{TotalBooks: 4, InStockCount: 2, OutOfStockCount: 2, LowStockCount: 2}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestOrderItemSubtotal(t *testing.T) {
	item := OrderItem{Price: decimal.RequireFromString("12.50"), Quantity: 3}
	if !item.Subtotal().Equal(decimal.RequireFromString("37.5")) {
		t.Errorf("expected 37.5, got %s", item.Subtotal())
	}
}
