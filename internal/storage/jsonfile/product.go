package jsonfile

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// productRecord is the on-disk shape of a product. Price is kept as a JSON
// number and a missing tag is written as null.
type productRecord struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Image string      `json:"image"`
	Price json.Number `json:"price"`
	Tag   *string     `json:"tag"`
}

// ProductRepository implements product.Repository on a JSON array file.
type ProductRepository struct {
	doc *Document[[]productRecord]
}

// OpenProducts opens (creating if missing, as an empty array) the products file.
func OpenProducts(path string, opts ...Option) (*ProductRepository, error) {
	doc, _, err := Open(path, func() ([]productRecord, error) {
		return []productRecord{}, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	return &ProductRepository{doc: doc}, nil
}

// Ping checks that the products file is readable.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.doc.Ping(ctx)
}

// Close stops the file owner.
func (r *ProductRepository) Close() error {
	return r.doc.Close()
}

// List returns all products in file order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	err := r.doc.View(ctx, func(records []productRecord) error {
		out = make([]product.Product, 0, len(records))
		for _, rec := range records {
			p, err := rec.toProduct()
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return out, nil
}

// GetByID returns the product with the given ID or product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var found *product.Product
	err := r.doc.View(ctx, func(records []productRecord) error {
		if i := indexOf(records, id); i >= 0 {
			p, err := records[i].toProduct()
			if err != nil {
				return err
			}
			found = &p
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	if found == nil {
		return nil, product.ErrNotFound
	}
	return found, nil
}

// Create appends a product. The ID must not be in use.
func (r *ProductRepository) Create(ctx context.Context, p product.Product) error {
	return r.doc.Update(ctx, func(records []productRecord) ([]productRecord, error) {
		if indexOf(records, p.ID) >= 0 {
			return nil, product.ErrAlreadyExists
		}
		return append(records, fromProduct(p)), nil
	})
}

// Update replaces the stored product with the same ID.
func (r *ProductRepository) Update(ctx context.Context, p product.Product) error {
	return r.doc.Update(ctx, func(records []productRecord) ([]productRecord, error) {
		i := indexOf(records, p.ID)
		if i < 0 {
			return nil, product.ErrNotFound
		}
		records[i] = fromProduct(p)
		return records, nil
	})
}

// Delete removes the product with the given ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	return r.doc.Update(ctx, func(records []productRecord) ([]productRecord, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, product.ErrNotFound
		}
		return append(records[:i], records[i+1:]...), nil
	})
}

func indexOf(records []productRecord, id string) int {
	for i, rec := range records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (rec productRecord) toProduct() (product.Product, error) {
	p := product.Product{
		ID:    rec.ID,
		Name:  rec.Name,
		Image: rec.Image,
	}
	if rec.Price != "" {
		price, err := decimal.NewFromString(rec.Price.String())
		if err != nil {
			return product.Product{}, errors.Wrapf(err, "product %q price", rec.ID)
		}
		p.Price = price
	}
	if rec.Tag != nil {
		p.Tag = product.NormalizeTag(*rec.Tag)
	}
	return p, nil
}

func fromProduct(p product.Product) productRecord {
	rec := productRecord{
		ID:    p.ID,
		Name:  p.Name,
		Image: p.Image,
		Price: json.Number(p.Price.String()),
	}
	if p.Tag != "" {
		tag := p.Tag
		rec.Tag = &tag
	}
	return rec
}
