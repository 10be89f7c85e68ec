package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMinThreshold applies to books whose MinThreshold is unset.
const DefaultMinThreshold = 5

// StockStatus is the availability band derived from a book's quantity.
type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockLow        StockStatus = "LOW_STOCK"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
)

// ParseStockStatus validates a raw status string.
func ParseStockStatus(s string) (StockStatus, error) {
	switch st := StockStatus(s); st {
	case StockInStock, StockLow, StockOutOfStock:
		return st, nil
	default:
		return "", ErrInvalidStockStatus
	}
}

// ClassifyStock maps a quantity onto its stock band. A threshold <= 0 means
// unset and DefaultMinThreshold is used.
func ClassifyStock(quantity, minThreshold int) StockStatus {
	if minThreshold <= 0 {
		minThreshold = DefaultMinThreshold
	}
	switch {
	case quantity <= 0:
		return StockOutOfStock
	case quantity <= minThreshold:
		return StockLow
	default:
		return StockInStock
	}
}

// Book is a catalog record together with its inventory fields.
type Book struct {
	ID            string
	Title         string
	Author        string
	Price         decimal.Decimal
	StockQuantity int
	StockStatus   StockStatus
	MinThreshold  int
	MaxThreshold  int
	CoverImageURL string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Classify returns the status implied by the book's quantity and threshold,
// ignoring any manual override stored in StockStatus.
func (b Book) Classify() StockStatus {
	return ClassifyStock(b.StockQuantity, b.MinThreshold)
}

// EffectiveThreshold returns MinThreshold, or the default when unset.
func (b Book) EffectiveThreshold() int {
	if b.MinThreshold <= 0 {
		return DefaultMinThreshold
	}
	return b.MinThreshold
}

// IsLowStock reports whether the book sits in the low-stock band.
func (b Book) IsLowStock() bool {
	return b.Classify() == StockLow
}

// IsOutOfStock counts a book as unavailable when it has no quantity or an
// operator forced it out of stock.
func (b Book) IsOutOfStock() bool {
	return b.StockQuantity <= 0 || b.StockStatus == StockOutOfStock
}

// NewBook carries the fields accepted when creating an inventory item.
type NewBook struct {
	ID            string
	Title         string
	Author        string
	Price         decimal.Decimal
	StockQuantity int
	MinThreshold  int
	MaxThreshold  int
	CoverImageURL string
}

// InventorySummary aggregates stock bands over the whole catalog.
type InventorySummary struct {
	TotalBooks      int
	InStockCount    int
	OutOfStockCount int
	LowStockCount   int
}

// Summarize counts books into the summary bands. The bands overlap: a
// low-stock book is also in stock.
func Summarize(books []Book) InventorySummary {
	s := InventorySummary{TotalBooks: len(books)}
	for _, b := range books {
		if b.IsOutOfStock() {
			s.OutOfStockCount++
		} else {
			s.InStockCount++
		}
		if b.IsLowStock() {
			s.LowStockCount++
		}
	}
	return s
}
