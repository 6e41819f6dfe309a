package product

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Input carries the client-supplied fields of a create or update request.
type Input struct {
	Name  string
	Image string
	// Price is nil when the request did not carry a numeric price.
	Price *decimal.Decimal
	// Tag is nil when the request did not mention a tag. On update a nil tag
	// keeps the stored one; an empty string clears it.
	Tag *string
}

// ValidationError describes the first invalid field of an Input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid product %s: %s", e.Field, e.Reason)
}

// Validate checks the constraints of the mutation path: non-empty name and
// image, and a strictly positive price.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(in.Image) == "" {
		return &ValidationError{Field: "image", Reason: "required"}
	}
	if in.Price == nil {
		return &ValidationError{Field: "price", Reason: "must be a number"}
	}
	if !in.Price.IsPositive() {
		return &ValidationError{Field: "price", Reason: "must be greater than 0"}
	}
	return nil
}

// apply copies the input onto p. The ID is never touched.
func (in Input) apply(p Product) Product {
	p.Name = in.Name
	p.Image = in.Image
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Tag != nil {
		p.Tag = NormalizeTag(*in.Tag)
	}
	return p
}
