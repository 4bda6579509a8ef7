package restaurants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	c := Default()

	r, ok := c.Lookup("demo")
	require.True(t, ok)
	assert.Equal(t, "Demo Restaurant", r.Name)
	assert.Equal(t, 10.0, r.MinOrder)
	assert.Len(t, r.Menu, 10)

	_, ok = c.Lookup("pizzanyc")
	assert.False(t, ok)

	assert.Equal(t, []string{"demo"}, c.Slugs())
}

func TestSubtotal(t *testing.T) {
	c := Default()

	items, subtotal, err := c.Subtotal("demo", []LineItem{{ItemID: 1, Quantity: 1}, {ItemID: 9, Quantity: 2}, {ItemID: 8, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 30.0, subtotal)
	require.Len(t, items, 3)
	assert.Equal(t, "Soda", items[1].Name)
	assert.Equal(t, 2, items[1].Quantity)
}

func TestSubtotalErrors(t *testing.T) {
	c := Default()

	cases := []struct {
		name  string
		slug  string
		lines []LineItem
		want  error
	}{
		{"unknown restaurant", "nope", []LineItem{{ItemID: 1, Quantity: 1}}, ErrUnknownRestaurant},
		{"empty", "demo", nil, ErrEmptyOrder},
		{"unknown item", "demo", []LineItem{{ItemID: 42, Quantity: 1}}, ErrUnknownItem},
		{"below minimum", "demo", []LineItem{{ItemID: 9, Quantity: 3}}, ErrBelowMinimum},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := c.Subtotal(tc.slug, tc.lines)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, _, err := c.Subtotal("demo", []LineItem{{ItemID: 1, Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = c.Subtotal("demo", []LineItem{{ItemID: 9, Quantity: 3}})
	var bme *BelowMinimumError
	require.ErrorAs(t, err, &bme)
	assert.Equal(t, 9.0, bme.Subtotal)
}

func TestSubtotalAtMinimumIsAccepted(t *testing.T) {
	_, subtotal, err := Default().Subtotal("demo", []LineItem{{ItemID: 10, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, 10.0, subtotal)
}
