package domain

import "context"

// AlertState is the per-book low-stock alert flag. A book with no entry has
// no alert raised.
type AlertState string

const (
	AlertActive       AlertState = "ACTIVE"
	AlertAcknowledged AlertState = "ACKNOWLEDGED"
)

// AlertStore holds the alert map shared by every process that sweeps or
// serves alert endpoints. Each call is atomic on its own.
type AlertStore interface {
	// Get returns ErrNotFound when the book has no entry.
	Get(ctx context.Context, bookID string) (AlertState, error)
	// SetIfAbsent creates the entry and reports whether it did.
	SetIfAbsent(ctx context.Context, bookID string, state AlertState) (bool, error)
	Set(ctx context.Context, bookID string, state AlertState) error
	Delete(ctx context.Context, bookID string) error
	// DeleteIf removes the entry only while it still holds state.
	DeleteIf(ctx context.Context, bookID string, state AlertState) (bool, error)
	All(ctx context.Context) (map[string]AlertState, error)
	Count(ctx context.Context) (int, error)
}

// LowStockReport is a point-in-time view of low stock and alert tracking.
type LowStockReport struct {
	LowStockBooks         []Book
	CriticalLowStockBooks []Book
	ActiveAlerts          int
}

// SweepResult describes what one alert sweep did.
type SweepResult struct {
	Skipped  bool // another instance holds the sweep lock
	LowStock int
	Raised   []string
	Cleared  []string
	Failed   []string
}
