package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
)

// ErrEmptyCart is returned when checking out a cart without lines.
var ErrEmptyCart = errors.New("cart is empty")

const (
	// DefaultPhone is the WhatsApp number orders are sent to.
	DefaultPhone = "919620318855"
	// DefaultCurrency prefixes every amount in order messages.
	DefaultCurrency = "₹"
)

// LinkOpener hands a deep link to the platform, e.g. a browser.
type LinkOpener interface {
	Open(ctx context.Context, url string) error
}

// LinkOpenerFunc adapts a function to LinkOpener.
type LinkOpenerFunc func(ctx context.Context, url string) error

// Open calls f.
func (f LinkOpenerFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }

// CartView is the cart display surface closed after checkout.
type CartView interface {
	Close()
}

// Formatter renders order messages and WhatsApp links.
type Formatter struct {
	Phone    string
	Currency string
}

// NewFormatter returns a Formatter, falling back to DefaultPhone and
// DefaultCurrency for empty arguments.
func NewFormatter(phone, currency string) Formatter {
	if phone == "" {
		phone = DefaultPhone
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return Formatter{Phone: phone, Currency: currency}
}

// Summary is a formatted order.
type Summary struct {
	Text  string
	Total decimal.Decimal
	// Lines counts the cart lines that made it into Text.
	Lines int
}

// Money renders an amount with the currency symbol and two decimals.
func (f Formatter) Money(d decimal.Decimal) string {
	return f.Currency + d.StringFixed(2)
}

// Order formats the cart lines. Lines are numbered by their cart position;
// lines whose product cannot be resolved are left out, so numbering may
// have gaps.
func (f Formatter) Order(lines []CartLine, lookup ProductLookup) Summary {
	var b strings.Builder
	b.WriteString("Hello, I'd like to place an order for the following items:\n\n")

	total := decimal.Zero
	n := 0
	for i, l := range lines {
		p, ok := lookup.Lookup(l.ProductID)
		if !ok {
			continue
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		total = total.Add(lineTotal)
		n++
		fmt.Fprintf(&b, "%d. %d x %s (%s each) = %s\n",
			i+1, l.Quantity, p.Name, f.Money(p.Price), f.Money(lineTotal))
	}

	fmt.Fprintf(&b, "\nTotal Estimated Price: %s", f.Money(total))
	b.WriteString("\n\nPlease confirm availability and details.")
	return Summary{Text: b.String(), Total: total, Lines: n}
}

// BuyNow formats a single-product request.
func (f Formatter) BuyNow(p product.Product, quantity int) string {
	total := p.Price.Mul(decimal.NewFromInt(int64(quantity)))
	return fmt.Sprintf("Hello, I'm interested in buying %d of %s for a total of %s. Please share the details.",
		quantity, p.Name, f.Money(total))
}

// Link returns the wa.me deep link carrying text.
func (f Formatter) Link(text string) string {
	return "https://wa.me/" + f.Phone + "?text=" + encodeURIComponent(text)
}

// encodeURIComponent percent-encodes every byte except the unreserved
// characters A-Z a-z 0-9 - _ . ! ~ * ' ( ), matching the browser function
// of the same name.
func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isURIUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// Order is the result of a checkout.
type Order struct {
	Summary
	Link string
}

// Checkout turns the cart, or a single product, into a WhatsApp order.
type Checkout struct {
	cart      *Cart
	lookup    ProductLookup
	formatter Formatter
	opener    LinkOpener
	view      CartView
	notifier  Notifier
}

// NewCheckout wires a Checkout. view may be nil.
func NewCheckout(cart *Cart, lookup ProductLookup, f Formatter, opener LinkOpener, view CartView, notifier Notifier) *Checkout {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Checkout{
		cart:      cart,
		lookup:    lookup,
		formatter: f,
		opener:    opener,
		view:      view,
		notifier:  notifier,
	}
}

// Cart sends the whole cart. An empty cart is rejected with ErrEmptyCart and
// nothing changes. Otherwise the link is opened and the cart cleared even
// when opening failed.
func (c *Checkout) Cart(ctx context.Context) (*Order, error) {
	if c.cart.IsEmpty() {
		c.notifier.Notify(LevelWarning, msgEmptyCart)
		return nil, ErrEmptyCart
	}

	summary := c.formatter.Order(c.cart.Lines(), c.lookup)
	order := &Order{Summary: summary, Link: c.formatter.Link(summary.Text)}
	c.open(ctx, order.Link)

	c.cart.Clear()
	if c.view != nil {
		c.view.Close()
	}
	c.notifier.Notify(LevelSuccess, msgOrderSent)
	return order, nil
}

// BuyNow sends a single product without touching the cart.
func (c *Checkout) BuyNow(ctx context.Context, productID string, quantity int) (*Order, error) {
	if quantity < 1 {
		c.notifier.Notify(LevelWarning, msgInvalidQuantity)
		return nil, ErrInvalidQuantity
	}
	p, ok := c.lookup.Lookup(productID)
	if !ok {
		c.notifier.Notify(LevelError, msgProductNotFound)
		return nil, &ProductNotFoundError{ProductID: productID}
	}

	text := c.formatter.BuyNow(p, quantity)
	order := &Order{
		Summary: Summary{
			Text:  text,
			Total: p.Price.Mul(decimal.NewFromInt(int64(quantity))),
			Lines: 1,
		},
		Link: c.formatter.Link(text),
	}
	c.open(ctx, order.Link)
	return order, nil
}

func (c *Checkout) open(ctx context.Context, link string) {
	if c.opener == nil {
		return
	}
	if err := c.opener.Open(ctx, link); err != nil {
		c.notifier.Notify(LevelError, msgOpenLinkFailed)
	}
}
