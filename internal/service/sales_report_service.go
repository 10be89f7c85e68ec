package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// SalesReportService computes revenue and sales figures from placed orders.
// Every report reads the order store fresh; nothing is cached.
type SalesReportService struct {
	orders    domain.OrderStore
	inventory *InventoryService
	logger    *slog.Logger
}

// NewSalesReportService creates a SalesReportService.
func NewSalesReportService(orders domain.OrderStore, inventory *InventoryService, logger *slog.Logger) *SalesReportService {
	return &SalesReportService{
		orders:    orders,
		inventory: inventory,
		logger:    logger.With(slog.String("component", "sales")),
	}
}

// window lists every order between since and until. Either bound may be nil.
func (s *SalesReportService) window(ctx context.Context, since, until *time.Time) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx, domain.ListOpts{Since: since, Until: until})
	if err != nil {
		return nil, fmt.Errorf("sales: list orders: %w", err)
	}
	return orders, nil
}

// Summary totals revenue, orders and items sold, with a per-status split.
func (s *SalesReportService) Summary(ctx context.Context, since, until *time.Time) (domain.SalesSummary, error) {
	orders, err := s.window(ctx, since, until)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	sum := domain.SalesSummary{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		OrdersByStatus:    make(map[domain.OrderStatus]int),
		RevenueByStatus:   make(map[domain.OrderStatus]decimal.Decimal),
	}
	for _, o := range orders {
		sum.TotalRevenue = sum.TotalRevenue.Add(o.TotalAmount)
		sum.TotalItemsSold += itemCount(o)
		sum.OrdersByStatus[o.Status]++
		sum.RevenueByStatus[o.Status] = sum.RevenueByStatus[o.Status].Add(o.TotalAmount)
	}
	sum.TotalOrders = len(orders)
	if sum.TotalOrders > 0 {
		sum.AverageOrderValue = sum.TotalRevenue.Div(decimal.NewFromInt(int64(sum.TotalOrders))).Round(2)
	}
	return sum, nil
}

// TopBooks ranks books by quantity sold, then revenue, then id. A limit of
// zero or less returns every book that has sold.
func (s *SalesReportService) TopBooks(ctx context.Context, limit int, since, until *time.Time) ([]domain.BookSales, error) {
	orders, err := s.window(ctx, since, until)
	if err != nil {
		return nil, err
	}

	// Orders arrive newest first, so the first snapshot seen per book is the
	// latest title and price.
	byBook := make(map[string]*domain.BookSales)
	for _, o := range orders {
		for _, it := range o.Items {
			bs, ok := byBook[it.BookID]
			if !ok {
				bs = &domain.BookSales{BookID: it.BookID, Title: it.Title, Price: it.Price, Revenue: decimal.Zero}
				byBook[it.BookID] = bs
			}
			bs.QuantitySold += it.Quantity
			bs.Revenue = bs.Revenue.Add(it.Subtotal())
		}
	}

	ranked := make([]domain.BookSales, 0, len(byBook))
	for _, bs := range byBook {
		ranked = append(ranked, *bs)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.QuantitySold != b.QuantitySold {
			return a.QuantitySold > b.QuantitySold
		}
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		return a.BookID < b.BookID
	})
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	for i := range ranked {
		b, err := s.inventory.GetBook(ctx, ranked[i].BookID)
		switch {
		case err == nil:
			ranked[i].Author = b.Author
		case errors.Is(err, domain.ErrNotFound):
			s.logger.DebugContext(ctx, "sales: ranked book no longer in catalog",
				slog.String("book_id", ranked[i].BookID),
			)
		default:
			return nil, fmt.Errorf("sales: author lookup: %w", err)
		}
	}
	return ranked, nil
}

// MonthlyRevenue groups orders by UTC calendar month, most recent first.
func (s *SalesReportService) MonthlyRevenue(ctx context.Context, since, until *time.Time) ([]domain.MonthlyRevenue, error) {
	orders, err := s.window(ctx, since, until)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*domain.MonthlyRevenue)
	for _, o := range orders {
		if o.OrderDate.IsZero() {
			continue
		}
		d := o.OrderDate.UTC()
		key := d.Format("2006-01")
		m, ok := byMonth[key]
		if !ok {
			m = &domain.MonthlyRevenue{Period: key, Year: d.Year(), Month: d.Month().String(), Revenue: decimal.Zero}
			byMonth[key] = m
		}
		m.Revenue = m.Revenue.Add(o.TotalAmount)
		m.OrderCount++
		m.ItemsSold += itemCount(o)
	}

	out := make([]domain.MonthlyRevenue, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out, nil
}

func itemCount(o domain.Order) int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
