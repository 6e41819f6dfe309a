package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
	"github.com/xenking/pharmacy-storefront/internal/storefront"
)

const usage = `usage: storefront [flags] <command> [args]

commands:
  products [all|popular|new]  list the catalog
  cart                        show the cart
  add <id> [qty]              add a product (qty defaults to 1)
  remove <id>                 remove a product
  inc <id>                    increase a quantity by one
  dec <id>                    decrease a quantity by one
  checkout                    send the cart as a WhatsApp order
  buy <id> [qty]              send a single product as a WhatsApp order
`

var errUsage = errors.New("invalid usage")

// shell runs one command against a started storefront.
type shell struct {
	sf     *storefront.Storefront
	format storefront.Formatter
	out    io.Writer
}

func (s *shell) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "products":
		view := "all"
		if len(rest) > 0 {
			view = rest[0]
		}
		return s.products(view)
	case "cart":
		s.printCart()
		return nil
	case "add":
		id, qty, err := s.idAndQuantity(rest)
		if err != nil {
			return err
		}
		if err := s.sf.Cart.AddItem(id, qty); err != nil {
			return err
		}
		return nil
	case "remove":
		id, err := single(rest)
		if err != nil {
			return err
		}
		s.sf.Cart.RemoveItem(id)
		return nil
	case "inc", "dec":
		id, err := single(rest)
		if err != nil {
			return err
		}
		delta := 1
		if cmd == "dec" {
			delta = -1
		}
		if !s.sf.Cart.ChangeQuantity(id, delta) {
			return errors.Errorf("product %q is not in the cart", id)
		}
		return nil
	case "checkout":
		order, err := s.sf.Checkout.Cart(ctx)
		if err != nil {
			return err
		}
		s.printOrder(order)
		return nil
	case "buy":
		id, qty, err := s.idAndQuantity(rest)
		if err != nil {
			return err
		}
		order, err := s.sf.Checkout.BuyNow(ctx, id, qty)
		if err != nil {
			return err
		}
		s.printOrder(order)
		return nil
	default:
		return errors.Wrapf(errUsage, "unknown command %q", cmd)
	}
}

func single(args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}
	return args[0], nil
}

func (s *shell) idAndQuantity(args []string) (string, int, error) {
	switch len(args) {
	case 1:
		return args[0], 1, nil
	case 2:
		return args[0], s.sf.ParseQuantity(args[1]), nil
	default:
		return "", 0, errUsage
	}
}

func (s *shell) products(view string) error {
	var list []product.Product
	switch view {
	case "all":
		list = s.sf.Catalog.All()
	case "popular":
		list = s.sf.Catalog.Popular()
	case "new":
		list = s.sf.Catalog.NewArrivals()
	default:
		return errors.Wrapf(errUsage, "unknown product view %q", view)
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(s.out, "No products.")
		return nil
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPRICE\tTAG")
	for _, p := range list {
		tag := p.Tag
		if tag == "" {
			tag = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, s.format.Money(p.Price), tag)
	}
	return tw.Flush()
}

func (s *shell) printCart() {
	cart := s.sf.Cart
	if cart.IsEmpty() {
		_, _ = fmt.Fprintln(s.out, "Your cart is empty.")
		return
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tQTY\tSUBTOTAL")
	for _, line := range cart.Lines() {
		name, subtotal := "(unavailable)", "-"
		if p, ok := s.sf.Catalog.Lookup(line.ProductID); ok {
			name = p.Name
			subtotal = s.format.Money(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", line.ProductID, name, line.Quantity, subtotal)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(s.out, "Items: %d  Total: %s\n", cart.ItemCount(), s.format.Money(cart.Total()))
}

// render prints a one-line cart status after every cart change.
func (s *shell) render(e storefront.Event) {
	if e.State == storefront.StateEmpty {
		_, _ = fmt.Fprintln(s.out, "Cart: empty")
		return
	}
	_, _ = fmt.Fprintf(s.out, "Cart: %d item(s), total %s\n", e.ItemCount, s.format.Money(s.sf.Cart.Total()))
}

func (s *shell) printOrder(o *storefront.Order) {
	_, _ = fmt.Fprintln(s.out, strings.TrimSpace(o.Text))
	_, _ = fmt.Fprintf(s.out, "\nLink: %s\n", o.Link)
}
