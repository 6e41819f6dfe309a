package storefront

import (
	"math"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
)

// --- Test helpers ---

type catalogMap map[string]product.Product

func (m catalogMap) Lookup(id string) (product.Product, bool) {
	p, ok := m[id]
	return p, ok
}

func testCatalog() catalogMap {
	return catalogMap{
		"A": {ID: "A", Name: "Paracetamol", Image: "a.png", Price: decimal.NewFromInt(10), Tag: product.TagSale},
		"B": {ID: "B", Name: "Cough Syrup", Image: "b.png", Price: decimal.NewFromInt(25)},
		"C": {ID: "C", Name: "Vitamin C", Image: "c.png", Price: decimal.RequireFromString("3.99"), Tag: product.TagNew},
	}
}

type notification struct {
	Level   Level
	Message string
}

type recorder struct {
	got []notification
}

func (r *recorder) Notify(level Level, msg string) {
	r.got = append(r.got, notification{Level: level, Message: msg})
}

func (r *recorder) last() notification {
	if len(r.got) == 0 {
		return notification{}
	}
	return r.got[len(r.got)-1]
}

type failingStorage struct {
	sets int
}

func (s *failingStorage) Get(string) ([]byte, bool, error) { return nil, false, nil }

func (s *failingStorage) Set(string, []byte) error {
	s.sets++
	return errors.New("disk full")
}

func newTestCart(t *testing.T) (*Cart, *MemoryStorage, *recorder) {
	t.Helper()
	storage := NewMemoryStorage()
	rec := &recorder{}
	return NewCart(testCatalog(), storage, rec), storage, rec
}

// assertInvariants checks that every line is unique and has a quantity in
// [1, MaxQuantity].
func assertInvariants(t *testing.T, c *Cart) {
	t.Helper()
	seen := map[string]bool{}
	for _, l := range c.Lines() {
		assert.GreaterOrEqual(t, l.Quantity, 1, "line %s", l.ProductID)
		assert.LessOrEqual(t, l.Quantity, MaxQuantity, "line %s", l.ProductID)
		assert.False(t, seen[l.ProductID], "duplicate line %s", l.ProductID)
		seen[l.ProductID] = true
	}
}

// --- Tests ---

func TestCart_AddItem(t *testing.T) {
	c, _, rec := newTestCart(t)

	require.NoError(t, c.AddItem("A", 2))
	assert.Equal(t, []CartLine{{ProductID: "A", Quantity: 2}}, c.Lines())
	assert.Equal(t, notification{LevelSuccess, "2x Paracetamol added to cart!"}, rec.last())
	assert.Equal(t, StateNonEmpty, c.State())
}

func TestCart_AddItem_Merges(t *testing.T) {
	c, _, _ := newTestCart(t)

	require.NoError(t, c.AddItem("A", 2))
	require.NoError(t, c.AddItem("B", 1))
	require.NoError(t, c.AddItem("A", 3))

	assert.Equal(t, []CartLine{
		{ProductID: "A", Quantity: 5},
		{ProductID: "B", Quantity: 1},
	}, c.Lines())
	assert.Equal(t, 6, c.ItemCount())
	assertInvariants(t, c)
}

func TestCart_AddItem_InvalidQuantity(t *testing.T) {
	for _, qty := range []int{0, -1, -100} {
		c, storage, rec := newTestCart(t)

		err := c.AddItem("A", qty)
		require.ErrorIs(t, err, ErrInvalidQuantity)
		assert.True(t, c.IsEmpty())
		assert.Equal(t, notification{LevelWarning, msgInvalidQuantity}, rec.last())

		_, ok, _ := storage.Get(CartKey)
		assert.False(t, ok, "nothing persisted")
	}
}

func TestCart_AddItem_UnknownProduct(t *testing.T) {
	c, _, rec := newTestCart(t)

	err := c.AddItem("missing", 1)
	var nf *ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ProductID)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, LevelError, rec.last().Level)
}

func TestCart_RemoveItem(t *testing.T) {
	c, _, rec := newTestCart(t)
	require.NoError(t, c.AddItem("A", 1))
	require.NoError(t, c.AddItem("B", 1))

	assert.True(t, c.RemoveItem("A"))
	assert.Equal(t, []CartLine{{ProductID: "B", Quantity: 1}}, c.Lines())
	assert.Equal(t, "Paracetamol removed from cart.", rec.last().Message)

	n := len(rec.got)
	assert.False(t, c.RemoveItem("A"))
	assert.Len(t, rec.got, n, "absent product is a silent no-op")
}

func TestCart_RemoveItem_UnknownName(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(CartKey, []byte(`[{"productId":"gone","quantity":1}]`)))
	rec := &recorder{}
	c := NewCart(testCatalog(), storage, rec)
	require.NoError(t, c.Restore())

	assert.True(t, c.RemoveItem("gone"))
	assert.Equal(t, "Item removed from cart.", rec.last().Message)
}

func TestCart_ChangeQuantity(t *testing.T) {
	c, _, _ := newTestCart(t)
	require.NoError(t, c.AddItem("A", 1))

	assert.True(t, c.ChangeQuantity("A", 1))
	assert.Equal(t, 2, c.Lines()[0].Quantity)

	assert.True(t, c.ChangeQuantity("A", -1))
	assert.Equal(t, 1, c.Lines()[0].Quantity)

	assert.False(t, c.ChangeQuantity("B", 1), "missing line is a no-op")
	assert.Equal(t, 1, c.Len())
}

func TestCart_ChangeQuantity_RemovesAtZero(t *testing.T) {
	c, _, _ := newTestCart(t)
	require.NoError(t, c.AddItem("A", 1))

	assert.True(t, c.ChangeQuantity("A", -1))
	assert.True(t, c.IsEmpty())
	assert.Equal(t, StateEmpty, c.State())

	require.NoError(t, c.AddItem("B", 2))
	assert.True(t, c.ChangeQuantity("B", -5))
	assert.True(t, c.IsEmpty())
}

func TestCart_Total(t *testing.T) {
	c, _, _ := newTestCart(t)
	assert.True(t, c.Total().IsZero())

	require.NoError(t, c.AddItem("A", 2))
	require.NoError(t, c.AddItem("C", 3))
	assert.Equal(t, "31.97", c.Total().StringFixed(2))
}

func TestCart_Total_SkipsUnresolvable(t *testing.T) {
	catalog := testCatalog()
	c := NewCart(catalog, nil, nil)
	require.NoError(t, c.AddItem("A", 2))
	require.NoError(t, c.AddItem("B", 1))

	delete(catalog, "B")

	assert.Equal(t, "20.00", c.Total().StringFixed(2))
	assert.Equal(t, 3, c.ItemCount(), "unresolvable line still counts")
}

func TestCart_Clear(t *testing.T) {
	c, storage, _ := newTestCart(t)
	require.NoError(t, c.AddItem("A", 2))

	c.Clear()
	assert.True(t, c.IsEmpty())
	data, ok, err := storage.Get(CartKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(data))
}

func TestCart_PersistAndRestore(t *testing.T) {
	c, storage, _ := newTestCart(t)
	require.NoError(t, c.AddItem("A", 2))
	require.NoError(t, c.AddItem("B", 1))
	c.ChangeQuantity("A", 1)

	data, ok, err := storage.Get(CartKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"productId":"A","quantity":3},{"productId":"B","quantity":1}]`, string(data))

	reloaded := NewCart(testCatalog(), storage, nil)
	require.NoError(t, reloaded.Restore())
	assert.Equal(t, c.Lines(), reloaded.Lines())
	assert.True(t, c.Total().Equal(reloaded.Total()))
}

func TestCart_Restore_Missing(t *testing.T) {
	c, _, rec := newTestCart(t)
	require.NoError(t, c.Restore())
	assert.True(t, c.IsEmpty())
	assert.Empty(t, rec.got)
}

func TestCart_Restore_Corrupt(t *testing.T) {
	for name, data := range map[string]string{
		"NotJSON":       `{{{`,
		"Object":        `{"productId":"A"}`,
		"FloatQuantity": `[{"productId":"A","quantity":1.5}]`,
		"Truncated":     `[{"productId":"A","quantity":1}`,
	} {
		t.Run(name, func(t *testing.T) {
			storage := NewMemoryStorage()
			require.NoError(t, storage.Set(CartKey, []byte(data)))
			rec := &recorder{}
			c := NewCart(testCatalog(), storage, rec)

			assert.Error(t, c.Restore())
			assert.True(t, c.IsEmpty())
			assert.Equal(t, notification{LevelWarning, msgCorruptCart}, rec.last())
		})
	}
}

func TestCart_Restore_Normalizes(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(CartKey, []byte(`[
		{"productId":"A","quantity":1},
		{"productId":"B","quantity":0},
		{"productId":"A","quantity":2},
		{"productId":"C","quantity":-4},
		{"productId":17,"quantity":1},
		{"quantity":3}
	]`)))
	c := NewCart(testCatalog(), storage, nil)

	require.NoError(t, c.Restore())
	assert.Equal(t, []CartLine{
		{ProductID: "A", Quantity: 3},
		{ProductID: "17", Quantity: 1},
	}, c.Lines())
	assertInvariants(t, c)
}

func TestCart_SaveFailure(t *testing.T) {
	storage := &failingStorage{}
	rec := &recorder{}
	c := NewCart(testCatalog(), storage, rec)

	require.NoError(t, c.AddItem("A", 1))
	assert.Equal(t, 1, c.Len(), "in-memory state stays authoritative")
	assert.Contains(t, rec.got, notification{LevelError, msgSaveFailed})

	require.NoError(t, c.AddItem("A", 1))
	assert.Equal(t, 2, storage.sets, "next mutation writes again")
	assert.Equal(t, 2, c.ItemCount())
}

func TestCart_Subscribe(t *testing.T) {
	c, _, _ := newTestCart(t)
	var events []Event
	unsubscribe := c.Subscribe(func(ev Event) { events = append(events, ev) })

	require.NoError(t, c.AddItem("A", 2))
	c.ChangeQuantity("A", 1)
	c.RemoveItem("A")
	c.Clear()

	require.Len(t, events, 4)
	assert.Equal(t, Event{Kind: EventAdded, ProductID: "A", State: StateNonEmpty, ItemCount: 2}, events[0])
	assert.Equal(t, Event{Kind: EventUpdated, ProductID: "A", State: StateNonEmpty, ItemCount: 3}, events[1])
	assert.Equal(t, Event{Kind: EventRemoved, ProductID: "A", State: StateEmpty}, events[2])
	assert.Equal(t, EventCleared, events[3].Kind)

	unsubscribe()
	require.NoError(t, c.AddItem("B", 1))
	assert.Len(t, events, 4)
}

func TestCart_InvariantsUnderRandomOps(t *testing.T) {
	c, _, _ := newTestCart(t)
	ids := []string{"A", "B", "C", "missing"}
	for i := range 500 {
		id := ids[i%len(ids)]
		switch i % 5 {
		case 0, 1:
			_ = c.AddItem(id, i%4-1)
		case 2:
			c.ChangeQuantity(id, i%3-1)
		case 3:
			c.ChangeQuantity(id, -(i % 7))
		case 4:
			if i%50 == 4 {
				c.RemoveItem(id)
			}
		}
		assertInvariants(t, c)
	}
}

func TestParseQuantity(t *testing.T) {
	for _, tt := range []struct {
		in        string
		want      int
		corrected bool
	}{
		{"1", 1, false},
		{" 12 ", 12, false},
		{"0", 1, true},
		{"-3", 1, true},
		{"", 1, true},
		{"abc", 1, true},
		{"2.5", 1, true},
	} {
		got, corrected := ParseQuantity(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.corrected, corrected, "input %q", tt.in)
	}
}

func TestParseQuantity_Capped(t *testing.T) {
	for _, in := range []string{"10000", "9223372036854775807", "99999999999999999999999"} {
		got, corrected := ParseQuantity(in)
		assert.Equal(t, MaxQuantity, got, "input %q", in)
		assert.True(t, corrected, "input %q", in)
	}

	got, corrected := ParseQuantity("9999")
	assert.Equal(t, MaxQuantity, got)
	assert.False(t, corrected)
}

func TestCart_AddItem_QuantityLimit(t *testing.T) {
	c, storage, rec := newTestCart(t)

	require.NoError(t, c.AddItem("A", MaxQuantity-1))
	before, _, err := storage.Get(CartKey)
	require.NoError(t, err)

	require.ErrorIs(t, c.AddItem("A", 2), ErrQuantityLimit)
	assert.Equal(t, LevelWarning, rec.last().Level)
	assert.Equal(t, []CartLine{{ProductID: "A", Quantity: MaxQuantity - 1}}, c.Lines())

	after, _, err := storage.Get(CartKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, c.AddItem("A", 1))
	assert.Equal(t, MaxQuantity, c.ItemCount())

	require.ErrorIs(t, c.AddItem("B", math.MaxInt), ErrQuantityLimit)
	require.ErrorIs(t, c.AddItem("A", math.MaxInt), ErrQuantityLimit)
	assert.True(t, c.Total().IsPositive())
	assertInvariants(t, c)
}

func TestCart_ChangeQuantity_Capped(t *testing.T) {
	c, _, _ := newTestCart(t)
	require.NoError(t, c.AddItem("A", 5))

	assert.True(t, c.ChangeQuantity("A", math.MaxInt))
	assert.Equal(t, []CartLine{{ProductID: "A", Quantity: MaxQuantity}}, c.Lines())

	assert.True(t, c.ChangeQuantity("A", 1))
	assert.Equal(t, MaxQuantity, c.ItemCount())

	assert.True(t, c.ChangeQuantity("A", math.MinInt))
	assert.True(t, c.IsEmpty())
	assertInvariants(t, c)
}

func TestCart_Restore_CapsMergedQuantities(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(CartKey, []byte(`[
		{"productId":"A","quantity":9223372036854775807},
		{"productId":"A","quantity":9223372036854775807},
		{"productId":"B","quantity":6000},
		{"productId":"B","quantity":6000},
		{"productId":"C","quantity":2}
	]`)))
	c := NewCart(testCatalog(), storage, nil)

	require.NoError(t, c.Restore())
	assert.Equal(t, []CartLine{
		{ProductID: "A", Quantity: MaxQuantity},
		{ProductID: "B", Quantity: MaxQuantity},
		{ProductID: "C", Quantity: 2},
	}, c.Lines())
	assertInvariants(t, c)
}
