package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts the order header and its items in one transaction.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: begin: %w", o.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updatedAt := o.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = o.OrderDate
	}
	const insertOrder = `
		INSERT INTO orders (id, user_id, total_amount, status, order_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insertOrder,
		o.ID, o.UserID, o.TotalAmount.String(), string(o.Status), o.OrderDate, updatedAt,
	); err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	const insertItem = `
		INSERT INTO order_items (order_id, position, book_id, title, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i, it := range o.Items {
		batch.Queue(insertItem, o.ID, i, it.BookID, it.Title, it.Price.String(), it.Quantity)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: create order %s: items: %w", o.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: create order %s: commit: %w", o.ID, err)
	}
	return nil
}

const orderSelectCols = `id, user_id, total_amount::text, status, order_date, updated_at`

// Get returns an order with its items.
func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE id = $1`
	o, err := scanOrder(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, domain.ErrNotFound)
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}

	orders := []domain.Order{o}
	if err := s.attachItems(ctx, s.pool, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// List returns orders newest first.
func (s *OrderStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Order, error) {
	return s.list(ctx, "", opts)
}

// ListByUser returns one user's orders newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Order, error) {
	return s.list(ctx, userID, opts)
}

func (s *OrderStore) list(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Order, error) {
	var (
		conds []string
		args  []any
	)
	if userID != "" {
		args = append(args, userID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		conds = append(conds, fmt.Sprintf("order_date >= $%d", len(args)))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		conds = append(conds, fmt.Sprintf("order_date <= $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderSelectCols + ` FROM orders`)
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY order_date DESC, id")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}

	if err := s.attachItems(ctx, s.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus locks the order row, consults the guard with the current
// status and writes the new one.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, guard domain.StatusGuard) (domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: update order status %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE id = $1 FOR UPDATE`
	o, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("postgres: update order status %s: %w", id, domain.ErrNotFound)
		}
		return domain.Order{}, fmt.Errorf("postgres: update order status %s: %w", id, err)
	}
	if guard != nil {
		if err := guard(o.Status); err != nil {
			return domain.Order{}, err
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at`,
		string(status), id,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: update order status %s: %w", id, err)
	}
	o.Status = status

	orders := []domain.Order{o}
	if err := s.attachItems(ctx, tx, orders); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("postgres: update order status %s: commit: %w", id, err)
	}
	return orders[0], nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// attachItems loads items for all given orders with one query.
func (s *OrderStore) attachItems(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[string]int, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}

	rows, err := q.Query(ctx, `
		SELECT order_id, book_id, title, price::text, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID, price string
		var it domain.OrderItem
		if err := rows.Scan(&orderID, &it.BookID, &it.Title, &price, &it.Quantity); err != nil {
			return fmt.Errorf("postgres: scan order item: %w", err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("postgres: parse item price %q: %w", price, err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func scanOrder(scanner interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var o domain.Order
	var total, status string
	if err := scanner.Scan(&o.ID, &o.UserID, &total, &status, &o.OrderDate, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	var err error
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("parse total %q: %w", total, err)
	}
	return o, nil
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
