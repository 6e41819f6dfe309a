package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
)

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("image")
	e.Str(p.Image)
	e.FieldStart("price")
	e.Num(jx.Num(p.Price.String()))
	e.FieldStart("tag")
	if p.Tag == "" {
		e.Null()
	} else {
		e.Str(p.Tag)
	}
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, products []product.Product) {
	e.ArrStart()
	for _, p := range products {
		encodeProduct(e, p)
	}
	e.ArrEnd()
}

func encodeMessage(e *jx.Encoder, msg string, extra func(e *jx.Encoder)) {
	e.ObjStart()
	e.FieldStart("message")
	e.Str(msg)
	if extra != nil {
		extra(e)
	}
	e.ObjEnd()
}

// writeJSON writes the encoder output with the given status.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return data, nil
}

// decodeProductInput parses a product create or update body. Unknown fields
// and the id field are ignored. A price that is not a JSON number leaves
// Input.Price nil; a null tag is treated like an empty one.
func decodeProductInput(data []byte) (product.Input, error) {
	var in product.Input
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return in, errors.New("product body must be an object")
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "name":
			return decodeOptString(d, &in.Name)
		case "image":
			return decodeOptString(d, &in.Image)
		case "price":
			if d.Next() != jx.Number {
				return d.Skip()
			}
			n, err := d.Num()
			if err != nil {
				return errors.Wrap(err, "price")
			}
			price, err := decimal.NewFromString(n.String())
			if err != nil {
				return errors.Wrap(err, "price")
			}
			in.Price = &price
			return nil
		case "tag":
			var tag string
			if err := decodeOptString(d, &tag); err != nil {
				return err
			}
			in.Tag = &tag
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return in, errors.Wrap(err, "decode product")
	}
	return in, nil
}

// decodeOptString reads a string value. null and non-string values leave
// dst empty.
func decodeOptString(d *jx.Decoder, dst *string) error {
	if d.Next() != jx.String {
		*dst = ""
		return d.Skip()
	}
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

type credentials struct {
	Username string
	Password string
}

func decodeCredentials(data []byte) (credentials, error) {
	var c credentials
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return c, errors.New("login body must be an object")
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "username":
			return decodeOptString(d, &c.Username)
		case "password":
			return decodeOptString(d, &c.Password)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return c, errors.Wrap(err, "decode credentials")
	}
	return c, nil
}
