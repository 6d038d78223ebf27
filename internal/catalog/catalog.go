// Package catalog gives read access to products by their canonical id.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Image string `json:"image,omitempty"`
	Stock int    `json:"stock"`
}

// Reader looks up active products
type Reader interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}

// PostgresReader reads the products table
type PostgresReader struct {
	db *sql.DB
}

func NewPostgresReader(db *sql.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

func (r *PostgresReader) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, price, image, stock FROM products WHERE id = $1 AND is_active`,
		id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Image, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MemoryReader serves a fixed set of products
type MemoryReader struct {
	mu       sync.RWMutex
	products map[string]Product
}

func NewMemoryReader(products ...Product) *MemoryReader {
	r := &MemoryReader{products: make(map[string]Product, len(products))}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

// Put adds or replaces a product
func (r *MemoryReader) Put(p Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *MemoryReader) GetProduct(_ context.Context, id string) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}
