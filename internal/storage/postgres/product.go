package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, image, price, tag FROM products ORDER BY position`

	getProductByIDSQL = `SELECT id, name, image, price, tag FROM products WHERE id = $1`

	createProductSQL = `INSERT INTO products (id, name, image, price, tag)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`

	updateProductSQL = `UPDATE products SET name = $2, image = $3, price = $4, tag = $5 WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products in insertion order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Create inserts a product. An existing ID yields product.ErrAlreadyExists.
func (r *ProductRepository) Create(ctx context.Context, p product.Product) error {
	tag, err := r.pool.Exec(ctx, createProductSQL, p.ID, p.Name, p.Image, p.Price, nullableTag(p.Tag))
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrAlreadyExists
	}
	return nil
}

// Update replaces the mutable columns of a product.
func (r *ProductRepository) Update(ctx context.Context, p product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL, p.ID, p.Name, p.Image, p.Price, nullableTag(p.Tag))
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func nullableTag(tag string) *string {
	if tag == "" {
		return nil
	}
	return &tag
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
		tag   *string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Image, &price, &tag)
	p.Price = price
	if tag != nil {
		p.Tag = product.NormalizeTag(*tag)
	}
	return p, err
}
