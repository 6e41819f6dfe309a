package storefront

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a cart line may hold.
const MaxQuantity = 9999

var (
	// ErrInvalidQuantity is returned when a quantity below 1 is requested.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrQuantityLimit is returned when a line would exceed MaxQuantity.
	ErrQuantityLimit = errors.New("quantity limit exceeded")
)

// ProductNotFoundError is returned when a product id is not in the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %q not found in catalog", e.ProductID)
}

// CartLine is one product in the cart. Quantity is always at least 1.
type CartLine struct {
	ProductID string
	Quantity  int
}

// State is the coarse cart state used by renderers.
type State int

const (
	StateEmpty State = iota
	StateNonEmpty
)

func (s State) String() string {
	if s == StateEmpty {
		return "empty"
	}
	return "non-empty"
}

// EventKind tells what changed the cart.
type EventKind int

const (
	EventAdded EventKind = iota
	EventRemoved
	EventUpdated
	EventCleared
	EventRestored
)

// Event is delivered to subscribers after every cart change.
type Event struct {
	Kind EventKind
	// ProductID is empty for EventCleared and EventRestored.
	ProductID string
	State     State
	ItemCount int
}

// Cart holds the shopper's selections in insertion order and persists them
// to Storage after every change. A Cart is not safe for concurrent use.
type Cart struct {
	lookup   ProductLookup
	storage  Storage
	notifier Notifier

	lines       []CartLine
	subscribers map[int]func(Event)
	nextSub     int
}

// NewCart returns an empty cart. Call Restore to load the persisted state.
// A nil storage keeps the cart in memory, a nil notifier drops notifications.
func NewCart(lookup ProductLookup, storage Storage, notifier Notifier) *Cart {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Cart{
		lookup:      lookup,
		storage:     storage,
		notifier:    notifier,
		subscribers: map[int]func(Event){},
	}
}

// AddItem adds quantity units of a product, merging into an existing line.
func (c *Cart) AddItem(productID string, quantity int) error {
	if quantity < 1 {
		c.notifier.Notify(LevelWarning, msgInvalidQuantity)
		return ErrInvalidQuantity
	}
	p, ok := c.lookup.Lookup(productID)
	if !ok {
		c.notifier.Notify(LevelError, msgProductNotFound)
		return &ProductNotFoundError{ProductID: productID}
	}

	i := c.indexOf(productID)
	current := 0
	if i >= 0 {
		current = c.lines[i].Quantity
	}
	if quantity > MaxQuantity-current {
		c.notifier.Notify(LevelWarning, fmt.Sprintf(msgQuantityLimitFormat, MaxQuantity))
		return ErrQuantityLimit
	}

	if i >= 0 {
		c.lines[i].Quantity += quantity
	} else {
		c.lines = append(c.lines, CartLine{ProductID: productID, Quantity: quantity})
	}
	c.save()
	c.emit(EventAdded, productID)
	c.notifier.Notify(LevelSuccess, fmt.Sprintf(msgAddedFormat, quantity, p.Name))
	return nil
}

// RemoveItem drops the line for productID. It reports false and does
// nothing when the product is not in the cart.
func (c *Cart) RemoveItem(productID string) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.save()
	c.emit(EventRemoved, productID)

	name := unknownItemName
	if p, ok := c.lookup.Lookup(productID); ok {
		name = p.Name
	}
	c.notifier.Notify(LevelError, fmt.Sprintf(msgRemovedFormat, name))
	return true
}

// ChangeQuantity adds delta to an existing line. A result of zero or less
// removes the line and a result above MaxQuantity is capped. It reports
// false when the product is not in the cart.
func (c *Cart) ChangeQuantity(productID string, delta int) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	if delta <= -c.lines[i].Quantity {
		return c.RemoveItem(productID)
	}
	c.lines[i].Quantity = addCapped(c.lines[i].Quantity, delta)
	c.save()
	c.emit(EventUpdated, productID)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
	c.save()
	c.emit(EventCleared, "")
}

// Total sums quantity times unit price. Lines whose product is no longer in
// the catalog contribute nothing.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		p, ok := c.lookup.Lookup(l.ProductID)
		if !ok {
			continue
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// ItemCount sums the quantities of all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []CartLine {
	return append([]CartLine(nil), c.lines...)
}

// Len returns the number of distinct products in the cart.
func (c *Cart) Len() int { return len(c.lines) }

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// State returns StateEmpty or StateNonEmpty.
func (c *Cart) State() State {
	if c.IsEmpty() {
		return StateEmpty
	}
	return StateNonEmpty
}

// Subscribe registers fn for cart events and returns a function that
// removes it.
func (c *Cart) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() { delete(c.subscribers, id) }
}

// Restore replaces the cart with the persisted snapshot. Duplicate lines
// are merged and lines with a quantity below 1 dropped. Unreadable or
// malformed snapshots reset the cart to empty, notify the shopper and
// return the cause.
func (c *Cart) Restore() error {
	lines, err := c.load()
	if err != nil {
		c.lines = nil
		c.notifier.Notify(LevelWarning, msgCorruptCart)
		c.emit(EventRestored, "")
		return errors.Wrap(err, "restore cart")
	}
	c.lines = normalizeLines(lines)
	c.emit(EventRestored, "")
	return nil
}

func (c *Cart) load() ([]CartLine, error) {
	data, ok, err := c.storage.Get(CartKey)
	if err != nil || !ok {
		return nil, err
	}
	return decodeLines(data)
}

func normalizeLines(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	pos := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		if i, ok := pos[l.ProductID]; ok {
			out[i].Quantity = addCapped(out[i].Quantity, l.Quantity)
			continue
		}
		pos[l.ProductID] = len(out)
		l.Quantity = min(l.Quantity, MaxQuantity)
		out = append(out, l)
	}
	return out
}

func (c *Cart) indexOf(productID string) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// save writes the snapshot. Failures are reported to the shopper only; the
// in-memory cart stays authoritative and the next change writes again.
func (c *Cart) save() {
	if err := c.storage.Set(CartKey, encodeLines(c.lines)); err != nil {
		c.notifier.Notify(LevelError, msgSaveFailed)
	}
}

func (c *Cart) emit(kind EventKind, productID string) {
	if len(c.subscribers) == 0 {
		return
	}
	ev := Event{
		Kind:      kind,
		ProductID: productID,
		State:     c.State(),
		ItemCount: c.ItemCount(),
	}
	for _, fn := range c.subscribers {
		fn(ev)
	}
}

// ParseQuantity reads a quantity field. Anything that is not a whole number
// of at least 1 becomes 1, values above MaxQuantity become MaxQuantity, and
// corrected is true in both cases.
func ParseQuantity(s string) (qty int, corrected bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	switch {
	case errors.Is(err, strconv.ErrRange) && n > 0:
		return MaxQuantity, true
	case err != nil || n < 1:
		return 1, true
	case n > MaxQuantity:
		return MaxQuantity, true
	}
	return n, false
}

// addCapped returns q+delta for a positive q, limited to MaxQuantity.
func addCapped(q, delta int) int {
	if delta > MaxQuantity-q {
		return MaxQuantity
	}
	return q + delta
}
