package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service encapsulates catalog maintenance: validation, ID assignment and
// tag normalisation in front of a Repository.
type Service struct {
	repo  Repository
	newID func() string
}

// NewService creates a product Service backed by the given Repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		newID: uuid.NewString,
	}
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a single product or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates the input, assigns a fresh ID and stores the product.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := in.apply(Product{ID: s.newID()})
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return &p, nil
}

// Update replaces the mutable fields of an existing product. A missing
// product is reported before input validation.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Product, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := in.apply(*existing)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "update product %s", id)
	}
	return &p, nil
}

// Delete removes a product or returns ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
