package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bookstock/internal/domain"
)

// Seed is the content of a seed file:
//
//	[[books]]
//	id = "b1"
//	title = "Dune"
//	price = "12.50"
//	stock_quantity = 10
//
//	[[users]]
//	id = "u1"
type Seed struct {
	Books []SeedBook `toml:"books"`
	Users []SeedUser `toml:"users"`
}

// SeedBook is one catalog entry. Price is a decimal string.
type SeedBook struct {
	ID            string `toml:"id"`
	Title         string `toml:"title"`
	Author        string `toml:"author"`
	Price         string `toml:"price"`
	StockQuantity int    `toml:"stock_quantity"`
	MinThreshold  int    `toml:"min_threshold"`
	MaxThreshold  int    `toml:"max_threshold"`
	CoverImageURL string `toml:"cover_image_url"`
}

// SeedUser is one account allowed to place orders.
type SeedUser struct {
	ID    string `toml:"id"`
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// SeedResult counts what ApplySeed wrote.
type SeedResult struct {
	Books   int
	Users   int
	Skipped int
}

// LoadSeed decodes a seed file.
func LoadSeed(path string) (Seed, error) {
	var s Seed
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Seed{}, fmt.Errorf("seed: decode %s: %w", path, err)
	}
	return s, nil
}

// BookCreator is the slice of the inventory service the seeder uses.
type BookCreator interface {
	CreateBook(ctx context.Context, nb domain.NewBook) (domain.Book, error)
}

// ApplySeed creates the seed's users and books. Books whose id already
// exists are skipped, so seeding is safe to repeat.
func ApplySeed(ctx context.Context, books BookCreator, users domain.UserStore, s Seed) (SeedResult, error) {
	var res SeedResult
	for _, u := range s.Users {
		if err := users.Create(ctx, domain.User{ID: u.ID, Name: u.Name, Email: u.Email}); err != nil {
			return res, fmt.Errorf("seed: user %s: %w", u.ID, err)
		}
		res.Users++
	}
	for _, b := range s.Books {
		price, err := decimal.NewFromString(b.Price)
		if err != nil {
			return res, fmt.Errorf("seed: book %s: price %q: %w", b.ID, b.Price, domain.ErrInvalidBook)
		}
		_, err = books.CreateBook(ctx, domain.NewBook{
			ID:            b.ID,
			Title:         b.Title,
			Author:        b.Author,
			Price:         price,
			StockQuantity: b.StockQuantity,
			MinThreshold:  b.MinThreshold,
			MaxThreshold:  b.MaxThreshold,
			CoverImageURL: b.CoverImageURL,
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed: %w", err)
		}
		res.Books++
	}
	return res, nil
}
