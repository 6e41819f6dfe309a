// Package storefront is the shopper-side core of the pharmacy store: the
// catalog cache, the persisted cart and the WhatsApp checkout.
package storefront

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Config holds the storefront settings.
type Config struct {
	// APIBaseURL is the backend API root, e.g. http://localhost:3000/api.
	APIBaseURL string
	Phone      string
	Currency   string
}

// Options carries the platform adapters. Nil fields get in-memory or no-op
// defaults.
type Options struct {
	HTTPClient *http.Client
	Storage    Storage
	Notifier   Notifier
	Opener     LinkOpener
	View       CartView
}

// Storefront owns the catalog, the cart and the checkout of one shopper.
type Storefront struct {
	Catalog  *Catalog
	Cart     *Cart
	Checkout *Checkout

	notifier Notifier
}

// New wires a Storefront.
func New(cfg Config, opts Options) *Storefront {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	catalog := NewCatalog(cfg.APIBaseURL, opts.HTTPClient, notifier)
	cart := NewCart(catalog, opts.Storage, notifier)
	checkout := NewCheckout(cart, catalog, NewFormatter(cfg.Phone, cfg.Currency), opts.Opener, opts.View, notifier)
	return &Storefront{
		Catalog:  catalog,
		Cart:     cart,
		Checkout: checkout,
		notifier: notifier,
	}
}

// Start loads the catalog and then restores the cart. Failures are logged
// and notified; the storefront keeps working with what it has.
func (s *Storefront) Start(ctx context.Context) {
	lg := zctx.From(ctx)
	if err := s.Catalog.Load(ctx); err != nil {
		lg.Warn("Load catalog", zap.Error(err))
	}
	if err := s.Cart.Restore(); err != nil {
		lg.Warn("Restore cart", zap.Error(err))
	}
	lg.Debug("Storefront started",
		zap.Int("products", len(s.Catalog.All())),
		zap.Int("cart_lines", s.Cart.Len()),
	)
}

// ParseQuantity reads a quantity field, warning the shopper when it had to
// be corrected.
func (s *Storefront) ParseQuantity(input string) int {
	qty, corrected := ParseQuantity(input)
	switch {
	case corrected && qty == MaxQuantity:
		s.notifier.Notify(LevelWarning, fmt.Sprintf(msgQuantityCappedFormat, MaxQuantity))
	case corrected:
		s.notifier.Notify(LevelWarning, msgQuantityCorrect)
	}
	return qty
}
