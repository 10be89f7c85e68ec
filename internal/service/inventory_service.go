package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/bookstock/internal/domain"
	"github.com/alanyoungcy/bookstock/internal/metrics"
)

// Reasons carried by stock_changed events.
const (
	ReasonReserve     = "reserve"
	ReasonRelease     = "release"
	ReasonSetQuantity = "set_quantity"
	ReasonOverride    = "override"
	ReasonThresholds  = "thresholds"
	ReasonCreate      = "create"
	ReasonDelete      = "delete"
)

// InventoryService is the stock ledger. Every quantity change runs through
// BookStore.Mutate, so the availability check and the write share one
// per-book guard.
type InventoryService struct {
	books   domain.BookStore
	bus     domain.SignalBus
	summary domain.SummaryCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewInventoryService creates an InventoryService. bus may be nil.
func NewInventoryService(books domain.BookStore, bus domain.SignalBus, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		books:  books,
		bus:    bus,
		logger: logger.With(slog.String("component", "inventory")),
	}
}

// WithSummaryCache caches Summary results until the next stock change.
func (s *InventoryService) WithSummaryCache(c domain.SummaryCache) *InventoryService {
	s.summary = c
	return s
}

// WithMetrics attaches reservation counters.
func (s *InventoryService) WithMetrics(m *metrics.Metrics) *InventoryService {
	s.metrics = m
	return s
}

// ReserveStock decrements the quantity when at least qty units are on hand.
// It fails with *domain.InsufficientStockError otherwise.
func (s *InventoryService) ReserveStock(ctx context.Context, bookID string, qty int) (domain.Book, error) {
	if qty <= 0 {
		return domain.Book{}, fmt.Errorf("inventory: reserve %s: %w", bookID, domain.ErrInvalidQuantity)
	}
	b, err := s.books.Mutate(ctx, bookID, func(b *domain.Book) error {
		if b.StockQuantity < qty {
			return &domain.InsufficientStockError{
				BookID:    b.ID,
				Title:     b.Title,
				Requested: qty,
				Available: b.StockQuantity,
			}
		}
		b.StockQuantity -= qty
		b.StockStatus = b.Classify()
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.Reservation("insufficient")
		} else {
			s.metrics.Reservation("error")
		}
		return domain.Book{}, fmt.Errorf("inventory: reserve %s: %w", bookID, err)
	}
	s.metrics.Reservation("ok")
	s.stockChanged(ctx, b, ReasonReserve)
	return b, nil
}

// ReleaseStock returns qty units to the book.
func (s *InventoryService) ReleaseStock(ctx context.Context, bookID string, qty int) (domain.Book, error) {
	if qty <= 0 {
		return domain.Book{}, fmt.Errorf("inventory: release %s: %w", bookID, domain.ErrInvalidQuantity)
	}
	b, err := s.books.Mutate(ctx, bookID, func(b *domain.Book) error {
		b.StockQuantity += qty
		b.StockStatus = b.Classify()
		return nil
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("inventory: release %s: %w", bookID, err)
	}
	s.stockChanged(ctx, b, ReasonRelease)
	return b, nil
}

// SetQuantity overwrites the quantity and recomputes the status.
func (s *InventoryService) SetQuantity(ctx context.Context, bookID string, qty int) (domain.Book, error) {
	if qty < 0 {
		return domain.Book{}, fmt.Errorf("inventory: set quantity %s: %w", bookID, domain.ErrInvalidQuantity)
	}
	b, err := s.books.Mutate(ctx, bookID, func(b *domain.Book) error {
		b.StockQuantity = qty
		b.StockStatus = b.Classify()
		return nil
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("inventory: set quantity %s: %w", bookID, err)
	}
	s.logger.InfoContext(ctx, "inventory: quantity set",
		slog.String("book_id", bookID),
		slog.Int("quantity", b.StockQuantity),
		slog.String("status", string(b.StockStatus)),
	)
	s.stockChanged(ctx, b, ReasonSetQuantity)
	return b, nil
}

// UpdateStock is the administrative name for SetQuantity.
func (s *InventoryService) UpdateStock(ctx context.Context, bookID string, qty int) (domain.Book, error) {
	return s.SetQuantity(ctx, bookID, qty)
}

// SetStatusOverride stores a manual status. OUT_OF_STOCK also zeroes the
// quantity. The override lasts until the next quantity-driven change.
func (s *InventoryService) SetStatusOverride(ctx context.Context, bookID string, status domain.StockStatus) (domain.Book, error) {
	st, err := domain.ParseStockStatus(string(status))
	if err != nil {
		return domain.Book{}, fmt.Errorf("inventory: override %s: %w", bookID, err)
	}
	b, err := s.books.Mutate(ctx, bookID, func(b *domain.Book) error {
		b.StockStatus = st
		if st == domain.StockOutOfStock {
			b.StockQuantity = 0
		}
		return nil
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("inventory: override %s: %w", bookID, err)
	}
	s.logger.InfoContext(ctx, "inventory: status overridden",
		slog.String("book_id", bookID),
		slog.String("status", string(st)),
	)
	s.stockChanged(ctx, b, ReasonOverride)
	return b, nil
}

// SetThresholds updates the low-stock band. min 0 falls back to the default
// threshold; max 0 means no restock ceiling.
func (s *InventoryService) SetThresholds(ctx context.Context, bookID string, minThreshold, maxThreshold int) (domain.Book, error) {
	if minThreshold < 0 || maxThreshold < 0 || (maxThreshold > 0 && maxThreshold < minThreshold) {
		return domain.Book{}, fmt.Errorf("inventory: thresholds %s (%d, %d): %w",
			bookID, minThreshold, maxThreshold, domain.ErrInvalidThreshold)
	}
	b, err := s.books.Mutate(ctx, bookID, func(b *domain.Book) error {
		b.MinThreshold = minThreshold
		b.MaxThreshold = maxThreshold
		b.StockStatus = b.Classify()
		return nil
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("inventory: thresholds %s: %w", bookID, err)
	}
	s.stockChanged(ctx, b, ReasonThresholds)
	return b, nil
}

// CreateBook adds a catalog record. An empty id gets a generated uuid.
func (s *InventoryService) CreateBook(ctx context.Context, nb domain.NewBook) (domain.Book, error) {
	switch {
	case strings.TrimSpace(nb.Title) == "":
		return domain.Book{}, fmt.Errorf("inventory: create book: title required: %w", domain.ErrInvalidBook)
	case !nb.Price.IsPositive():
		return domain.Book{}, fmt.Errorf("inventory: create book: price must be positive: %w", domain.ErrInvalidBook)
	case nb.Price.Exponent() < -2 && !nb.Price.Equal(nb.Price.Round(2)):
		return domain.Book{}, fmt.Errorf("inventory: create book: price has more than 2 decimal places: %w", domain.ErrInvalidBook)
	case nb.StockQuantity < 0:
		return domain.Book{}, fmt.Errorf("inventory: create book: %w", domain.ErrInvalidQuantity)
	case nb.MinThreshold < 0 || nb.MaxThreshold < 0 || (nb.MaxThreshold > 0 && nb.MaxThreshold < nb.MinThreshold):
		return domain.Book{}, fmt.Errorf("inventory: create book: %w", domain.ErrInvalidThreshold)
	}

	id := strings.TrimSpace(nb.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	b := domain.Book{
		ID:            id,
		Title:         strings.TrimSpace(nb.Title),
		Author:        strings.TrimSpace(nb.Author),
		Price:         nb.Price,
		StockQuantity: nb.StockQuantity,
		MinThreshold:  nb.MinThreshold,
		MaxThreshold:  nb.MaxThreshold,
		CoverImageURL: nb.CoverImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.StockStatus = b.Classify()

	if err := s.books.Create(ctx, b); err != nil {
		return domain.Book{}, fmt.Errorf("inventory: create book %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "inventory: book created",
		slog.String("book_id", b.ID),
		slog.String("title", b.Title),
		slog.Int("quantity", b.StockQuantity),
	)
	s.stockChanged(ctx, b, ReasonCreate)
	return b, nil
}

// DeleteBook removes a catalog record. Placed orders keep their snapshot.
func (s *InventoryService) DeleteBook(ctx context.Context, bookID string) error {
	if err := s.books.Delete(ctx, bookID); err != nil {
		return fmt.Errorf("inventory: delete book %s: %w", bookID, err)
	}
	s.logger.InfoContext(ctx, "inventory: book deleted", slog.String("book_id", bookID))
	s.stockChanged(ctx, domain.Book{ID: bookID}, ReasonDelete)
	return nil
}

// GetBook returns one book.
func (s *InventoryService) GetBook(ctx context.Context, bookID string) (domain.Book, error) {
	b, err := s.books.Get(ctx, bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("inventory: get book %s: %w", bookID, err)
	}
	return b, nil
}

// ListBooks returns the whole catalog.
func (s *InventoryService) ListBooks(ctx context.Context) ([]domain.Book, error) {
	books, err := s.books.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: list books: %w", err)
	}
	return books, nil
}

// LowStockBooks returns books in the LOW_STOCK band of their own threshold.
func (s *InventoryService) LowStockBooks(ctx context.Context) ([]domain.Book, error) {
	return s.filter(ctx, domain.Book.IsLowStock)
}

// OutOfStockBooks returns books with no quantity or an OUT_OF_STOCK override.
func (s *InventoryService) OutOfStockBooks(ctx context.Context) ([]domain.Book, error) {
	return s.filter(ctx, domain.Book.IsOutOfStock)
}

// InStockBooks returns books that are available.
func (s *InventoryService) InStockBooks(ctx context.Context) ([]domain.Book, error) {
	return s.filter(ctx, func(b domain.Book) bool { return !b.IsOutOfStock() })
}

func (s *InventoryService) filter(ctx context.Context, keep func(domain.Book) bool) ([]domain.Book, error) {
	books, err := s.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Book, 0, len(books))
	for _, b := range books {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Summary counts the catalog into stock bands. A cached value is used when
// a SummaryCache is attached.
func (s *InventoryService) Summary(ctx context.Context) (domain.InventorySummary, error) {
	if s.summary != nil {
		cached, err := s.summary.Get(ctx)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "inventory: summary cache read failed", slog.String("error", err.Error()))
		}
	}

	books, err := s.ListBooks(ctx)
	if err != nil {
		return domain.InventorySummary{}, err
	}
	sum := domain.Summarize(books)

	if s.summary != nil {
		if err := s.summary.Set(ctx, sum); err != nil {
			s.logger.WarnContext(ctx, "inventory: summary cache write failed", slog.String("error", err.Error()))
		}
	}
	return sum, nil
}

// IsLowStock reports whether the book is in the low-stock band. A missing
// book is not low on stock.
func (s *InventoryService) IsLowStock(ctx context.Context, bookID string) (bool, error) {
	b, err := s.books.Get(ctx, bookID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("inventory: is low stock %s: %w", bookID, err)
	}
	return b.IsLowStock(), nil
}

// stockChanged invalidates the summary cache and publishes a stock_changed
// event. Failures are logged only; the mutation has already committed.
func (s *InventoryService) stockChanged(ctx context.Context, b domain.Book, reason string) {
	if s.summary != nil {
		if err := s.summary.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "inventory: summary cache invalidate failed", slog.String("error", err.Error()))
		}
	}
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":    "stock_changed",
		"book_id":  b.ID,
		"title":    b.Title,
		"quantity": b.StockQuantity,
		"status":   string(b.StockStatus),
		"reason":   reason,
	})
	if err := s.bus.Publish(ctx, domain.ChannelStock, evt); err != nil {
		s.logger.WarnContext(ctx, "inventory: publish stock event failed",
			slog.String("book_id", b.ID),
			slog.String("error", err.Error()),
		)
	}
}
