package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// BookStore implements domain.BookStore using PostgreSQL.
type BookStore struct {
	pool *pgxpool.Pool
}

// NewBookStore creates a new BookStore backed by the given connection pool.
func NewBookStore(pool *pgxpool.Pool) *BookStore {
	return &BookStore{pool: pool}
}

const bookSelectCols = `id, title, author, price::text, stock_quantity, stock_status,
	min_threshold, max_threshold, cover_image_url, created_at, updated_at`

// Create inserts a new book.
func (s *BookStore) Create(ctx context.Context, b domain.Book) error {
	const query = `
		INSERT INTO books (
			id, title, author, price, stock_quantity, stock_status,
			min_threshold, max_threshold, cover_image_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, query,
		b.ID, b.Title, b.Author, b.Price.String(), b.StockQuantity, string(b.StockStatus),
		b.MinThreshold, b.MaxThreshold, b.CoverImageURL, createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: create book %s: %w", b.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create book %s: %w", b.ID, err)
	}
	return nil
}

// Get returns a single book by id.
func (s *BookStore) Get(ctx context.Context, id string) (domain.Book, error) {
	query := `SELECT ` + bookSelectCols + ` FROM books WHERE id = $1`
	b, err := scanBook(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Book{}, fmt.Errorf("postgres: get book %s: %w", id, domain.ErrNotFound)
		}
		return domain.Book{}, fmt.Errorf("postgres: get book %s: %w", id, err)
	}
	return b, nil
}

// List returns every book ordered by title.
func (s *BookStore) List(ctx context.Context) ([]domain.Book, error) {
	query := `SELECT ` + bookSelectCols + ` FROM books ORDER BY title, id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list books: %w", err)
	}
	return books, nil
}

// Delete removes a book. Order items keep their snapshot of it.
func (s *BookStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete book %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete book %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Mutate locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// result back in the same transaction. Concurrent calls on one id queue on
// the row lock.
func (s *BookStore) Mutate(ctx context.Context, id string, fn domain.BookMutation) (domain.Book, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Book{}, fmt.Errorf("postgres: mutate book %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + bookSelectCols + ` FROM books WHERE id = $1 FOR UPDATE`
	b, err := scanBook(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Book{}, fmt.Errorf("postgres: mutate book %s: %w", id, domain.ErrNotFound)
		}
		return domain.Book{}, fmt.Errorf("postgres: mutate book %s: select: %w", id, err)
	}

	if err := fn(&b); err != nil {
		return domain.Book{}, err
	}
	b.ID = id

	const update = `
		UPDATE books SET
			title = $2, author = $3, price = $4, stock_quantity = $5, stock_status = $6,
			min_threshold = $7, max_threshold = $8, cover_image_url = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err = tx.QueryRow(ctx, update,
		b.ID, b.Title, b.Author, b.Price.String(), b.StockQuantity, string(b.StockStatus),
		b.MinThreshold, b.MaxThreshold, b.CoverImageURL,
	).Scan(&b.UpdatedAt)
	if err != nil {
		return domain.Book{}, fmt.Errorf("postgres: mutate book %s: update: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Book{}, fmt.Errorf("postgres: mutate book %s: commit: %w", id, err)
	}
	return b, nil
}

func scanBook(scanner interface{ Scan(dest ...any) error }) (domain.Book, error) {
	var b domain.Book
	var price, status string
	err := scanner.Scan(
		&b.ID, &b.Title, &b.Author, &price, &b.StockQuantity, &status,
		&b.MinThreshold, &b.MaxThreshold, &b.CoverImageURL, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Book{}, err
	}
	b.StockStatus = domain.StockStatus(status)
	b.Price, err = decimal.NewFromString(price)
	if err != nil {
		return domain.Book{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	return b, nil
}

// Compile-time interface check.
var _ domain.BookStore = (*BookStore)(nil)
