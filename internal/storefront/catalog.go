package storefront

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
)

// maxCatalogSize bounds the product list response.
const maxCatalogSize = 16 << 20

// ProductLookup resolves a product id against the loaded catalog.
type ProductLookup interface {
	Lookup(id string) (product.Product, bool)
}

// NewHTTPClient returns a traced HTTP client with the given timeout.
func NewHTTPClient(timeout time.Duration, tp trace.TracerProvider) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tp),
		),
	}
}

// Catalog is the client-side cache of the product list.
type Catalog struct {
	baseURL  string
	client   *http.Client
	notifier Notifier

	products []product.Product
	index    map[string]int
}

// NewCatalog returns an empty catalog that loads from baseURL + "/products".
func NewCatalog(baseURL string, client *http.Client, notifier Notifier) *Catalog {
	if client == nil {
		client = http.DefaultClient
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Catalog{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		notifier: notifier,
		index:    map[string]int{},
	}
}

// Load fetches the product list once. On any failure the cache is emptied,
// the shopper is notified and the error is returned for logging.
func (c *Catalog) Load(ctx context.Context) error {
	products, err := c.fetch(ctx)
	if err != nil {
		c.Replace(nil)
		c.notifier.Notify(LevelError, msgCatalogFailed)
		return err
	}
	c.Replace(products)
	return nil
}

func (c *Catalog) fetch(ctx context.Context) ([]product.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products", nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch products")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("fetch products: HTTP status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, errors.Wrap(err, "read products")
	}
	return decodeProducts(data)
}

// Replace swaps the cached product list.
func (c *Catalog) Replace(products []product.Product) {
	c.products = products
	c.index = make(map[string]int, len(products))
	for i, p := range products {
		if _, dup := c.index[p.ID]; !dup {
			c.index[p.ID] = i
		}
	}
}

// All returns every cached product in server order.
func (c *Catalog) All() []product.Product {
	return c.filter(func(product.Product) bool { return true })
}

// Popular returns the products tagged SALE or BESTSELLER.
func (c *Catalog) Popular() []product.Product {
	return c.filter(func(p product.Product) bool {
		return p.HasTag(product.TagSale, product.TagBestseller)
	})
}

// NewArrivals returns the products tagged NEW.
func (c *Catalog) NewArrivals() []product.Product {
	return c.filter(func(p product.Product) bool {
		return p.HasTag(product.TagNew)
	})
}

// Lookup implements ProductLookup.
func (c *Catalog) Lookup(id string) (product.Product, bool) {
	i, ok := c.index[id]
	if !ok {
		return product.Product{}, false
	}
	return c.products[i], true
}

func (c *Catalog) filter(keep func(product.Product) bool) []product.Product {
	out := make([]product.Product, 0, len(c.products))
	for _, p := range c.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// decodeProducts parses the GET /products response. Tags are normalised,
// prices that are not numbers read as zero.
func decodeProducts(data []byte) ([]product.Product, error) {
	products := []product.Product{}
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "id":
				id, err := decodeID(d)
				p.ID = id
				return err
			case "name":
				return decodeText(d, &p.Name)
			case "image":
				return decodeText(d, &p.Image)
			case "price":
				price, err := decodePrice(d)
				p.Price = price
				return err
			case "tag":
				var tag string
				if err := decodeText(d, &tag); err != nil {
					return err
				}
				p.Tag = product.NormalizeTag(tag)
				return nil
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

func decodeText(d *jx.Decoder, dst *string) error {
	if d.Next() != jx.String {
		return d.Skip()
	}
	s, err := d.Str()
	*dst = s
	return err
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		v, perr := decimal.NewFromString(strings.TrimSpace(s))
		if perr != nil {
			return decimal.Zero, nil
		}
		return v, nil
	default:
		return decimal.Zero, d.Skip()
	}
}
