package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
	"github.com/xenking/pharmacy-storefront/pkg/httpmiddleware"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.serverError(w, r, "List products", err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProducts(e, products)
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.productError(w, r, "Get product", err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, *p)
	})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := h.productInput(w, r)
	if !ok {
		return
	}
	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		h.productError(w, r, "Create product", err)
		return
	}
	h.countMutation(r.Context(), "create")
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeMessage(e, msgProductAdded, func(e *jx.Encoder) {
			e.FieldStart("product")
			encodeProduct(e, *p)
		})
	})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := h.productInput(w, r)
	if !ok {
		return
	}
	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.productError(w, r, "Update product", err)
		return
	}
	h.countMutation(r.Context(), "update")
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeMessage(e, msgProductUpdated, func(e *jx.Encoder) {
			e.FieldStart("product")
			encodeProduct(e, *p)
		})
	})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.productError(w, r, "Delete product", err)
		return
	}
	h.countMutation(r.Context(), "delete")
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeMessage(e, msgProductDeleted, nil)
	})
}

// productInput reads and decodes the body. Malformed JSON is reported like
// invalid field values.
func (h *Handler) productInput(w http.ResponseWriter, r *http.Request) (product.Input, bool) {
	data, err := readBody(w, r)
	if err != nil {
		httpmiddleware.WriteMessage(w, http.StatusBadRequest, msgInvalidProduct)
		return product.Input{}, false
	}
	in, err := decodeProductInput(data)
	if err != nil {
		httpmiddleware.WriteMessage(w, http.StatusBadRequest, msgInvalidProduct)
		return product.Input{}, false
	}
	return in, true
}

func (h *Handler) productError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *product.ValidationError
	switch {
	case errors.As(err, &verr):
		httpmiddleware.WriteMessage(w, http.StatusBadRequest, msgInvalidProduct)
	case errors.Is(err, product.ErrNotFound):
		httpmiddleware.WriteMessage(w, http.StatusNotFound, msgProductNotFound)
	default:
		h.serverError(w, r, op, err)
	}
}
