package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Promotional tags used to split the catalog into display sections.
const (
	TagSale       = "SALE"
	TagBestseller = "BESTSELLER"
	TagNew        = "NEW"
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID    string
	Name  string
	Image string
	Price decimal.Decimal
	// Tag is an optional upper-cased label. Empty means no label.
	Tag string
}

// HasTag reports whether the product carries one of the given tags.
func (p Product) HasTag(tags ...string) bool {
	if p.Tag == "" {
		return false
	}
	for _, t := range tags {
		if p.Tag == t {
			return true
		}
	}
	return false
}

// NormalizeTag trims and upper-cases a tag so "  sale " and "SALE" compare equal.
func NormalizeTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// Repository defines read and write operations for the product catalog.
//
// Update and Delete return ErrNotFound when no product has the given ID.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id string) error
}

// ErrAlreadyExists is returned when creating a product whose ID is taken.
var ErrAlreadyExists = errors.New("product already exists")
