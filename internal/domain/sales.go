package domain

import "github.com/shopspring/decimal"

// SalesSummary aggregates every order in a window.
type SalesSummary struct {
	TotalRevenue      decimal.Decimal
	TotalOrders       int
	TotalItemsSold    int
	AverageOrderValue decimal.Decimal
	OrdersByStatus    map[OrderStatus]int
	RevenueByStatus   map[OrderStatus]decimal.Decimal
}

// BookSales is one book's line in the top-sellers ranking. Title and Price
// come from the most recent order snapshot; Author from the live catalog and
// is empty once the book is deleted.
type BookSales struct {
	BookID       string
	Title        string
	Author       string
	Price        decimal.Decimal
	QuantitySold int
	Revenue      decimal.Decimal
}

// MonthlyRevenue is one calendar month (UTC) of placed orders.
type MonthlyRevenue struct {
	Period     string // YYYY-MM
	Year       int
	Month      string
	Revenue    decimal.Decimal
	OrderCount int
	ItemsSold  int
}
