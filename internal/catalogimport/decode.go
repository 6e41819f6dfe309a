package catalogimport

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
)

// DecodeProduct decodes one product object. The price may be a JSON number
// or a numeric string. The result passes the same validation as the REST
// create path, and the ID is required.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var (
		p     product.Product
		in    product.Input
		price *decimal.Decimal
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			id, err := decodeID(d)
			if err != nil {
				return errors.Wrap(err, "id")
			}
			p.ID = id
		case "name":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			in.Name = s
		case "image":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "image")
			}
			in.Image = s
		case "price":
			v, err := decodePrice(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			price = v
		case "tag":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "tag")
			}
			in.Tag = &s
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return product.Product{}, err
	}

	in.Price = price
	if strings.TrimSpace(p.ID) == "" {
		return product.Product{}, &product.ValidationError{Field: "id", Reason: "required"}
	}
	if err := in.Validate(); err != nil {
		return product.Product{}, err
	}
	p.Name = in.Name
	p.Image = in.Image
	p.Price = *in.Price
	if in.Tag != nil {
		p.Tag = product.NormalizeTag(*in.Tag)
	}
	return p, nil
}

// DecodeProducts decodes a JSON array of products, as stored in
// products.json. The first invalid element fails the whole array.
func DecodeProducts(data []byte) ([]product.Product, error) {
	var (
		out []product.Product
		i   int
	)
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product #%d", i)
		}
		out = append(out, p)
		i++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", errors.New("must be a string or a number")
	}
}

func decodePrice(d *jx.Decoder) (*decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		raw = strings.TrimSpace(s)
	default:
		return nil, d.Skip()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %q", raw)
	}
	return &v, nil
}
