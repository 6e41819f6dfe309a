package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pharmacy-storefront/internal/storefront"
)

const catalogJSON = `[
	{"id":"p1","name":"Paracetamol","image":"p1.png","price":45,"tag":"SALE"},
	{"id":"p2","name":"Syrup","image":"p2.png","price":120.5,"tag":"new"},
	{"id":"p3","name":"Gauze","image":"p3.png","price":10,"tag":null}
]`

type harness struct {
	api   string
	state string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogJSON))
	}))
	t.Cleanup(srv.Close)
	return &harness{api: srv.URL + "/api", state: t.TempDir()}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-api", h.api, "-state-dir", h.state}, args...)
	err := run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), err
}

func TestProducts(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "products")
	require.NoError(t, err)
	assert.Contains(t, out, "Paracetamol")
	assert.Contains(t, out, "₹120.50")
	assert.Contains(t, out, "NEW")

	out, err = h.run(t, "products", "popular")
	require.NoError(t, err)
	assert.Contains(t, out, "Paracetamol")
	assert.NotContains(t, out, "Syrup")

	out, err = h.run(t, "products", "new")
	require.NoError(t, err)
	assert.Contains(t, out, "Syrup")
	assert.NotContains(t, out, "Gauze")

	_, err = h.run(t, "products", "cheap")
	require.ErrorIs(t, err, errUsage)
}

func TestCartFlow(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "add", "p1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "[success] 2x Paracetamol added to cart!")
	assert.Contains(t, out, "Cart: 2 item(s), total ₹90.00")
	assert.FileExists(t, filepath.Join(h.state, storefront.CartKey+".json"))

	out, err = h.run(t, "inc", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart: 3 item(s), total ₹135.00")

	out, err = h.run(t, "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "Paracetamol")
	assert.Contains(t, out, "Items: 3  Total: ₹135.00")

	out, err = h.run(t, "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "1. 3 x Paracetamol (₹45.00 each) = ₹135.00")
	assert.Contains(t, out, "Link: https://wa.me/919620318855?text=")
	assert.Contains(t, out, "Cart closed.")
	assert.Contains(t, out, "[success] Your order request has been sent to WhatsApp!")

	out, err = h.run(t, "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "Your cart is empty.")

	out, err = h.run(t, "checkout")
	require.ErrorIs(t, err, storefront.ErrEmptyCart)
	assert.Contains(t, out, "[warning] Your cart is empty.")
}

func TestRemoveAndDecrement(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "add", "p2")
	require.NoError(t, err)
	_, err = h.run(t, "add", "p3")
	require.NoError(t, err)

	out, err := h.run(t, "dec", "p2")
	require.NoError(t, err)
	assert.Contains(t, out, "[error] Syrup removed from cart.")

	out, err = h.run(t, "remove", "p3")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart: empty")

	_, err = h.run(t, "inc", "p3")
	require.Error(t, err)
}

func TestAddCorrectsQuantity(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "add", "p1", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "[warning] Quantity must be at least 1.")
	assert.Contains(t, out, "1x Paracetamol added to cart!")
}

func TestAddUnknownProduct(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "add", "missing")
	var nf *storefront.ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, out, "[error] Product not found in catalog.")
}

func TestBuyNowLeavesCart(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "buy", "p3", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "I'm interested in buying 4 of Gauze for a total of ₹40.00.")
	assert.Contains(t, out, "Link: https://wa.me/")

	_, statErr := os.Stat(filepath.Join(h.state, storefront.CartKey+".json"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestCatalogUnavailable(t *testing.T) {
	h := &harness{api: "http://127.0.0.1:1/api", state: t.TempDir()}

	out, err := h.run(t, "products")
	require.NoError(t, err)
	assert.Contains(t, out, "[error] Error loading product data from server. Please try again later.")
	assert.Contains(t, out, "No products.")
}

func TestUsage(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t)
	require.ErrorIs(t, err, errUsage)

	_, err = h.run(t, "frobnicate")
	require.ErrorIs(t, err, errUsage)

	_, err = h.run(t, "remove")
	require.ErrorIs(t, err, errUsage)
}

func TestAddHugeQuantity(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "add", "p1", "9223372036854775807")
	require.NoError(t, err)
	assert.Contains(t, out, "[warning] Quantity cannot be more than 9999.")
	assert.Contains(t, out, "Cart: 9999 item(s)")

	out, err = h.run(t, "add", "p1", "9223372036854775807")
	require.ErrorIs(t, err, storefront.ErrQuantityLimit)
	assert.Contains(t, out, "[warning] You can have at most 9999 of an item in your cart.")

	out, err = h.run(t, "inc", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart: 9999 item(s), total ₹449955.00")
}

func TestProductsCurrency(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "-currency", "$", "products")
	require.NoError(t, err)
	assert.Contains(t, out, "$45.00")
	assert.NotContains(t, out, "₹")
}
