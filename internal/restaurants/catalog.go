// Package restaurants holds the white-label restaurant catalog: location,
// branding, minimum order and menu for each slug.
package restaurants

import (
	"errors"
	"fmt"
	"sort"

	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/pricing"
)

var (
	ErrUnknownRestaurant = errors.New("unknown restaurant")
	ErrUnknownItem       = errors.New("unknown menu item")
	ErrEmptyOrder        = errors.New("order has no items")
	ErrBelowMinimum      = errors.New("order below restaurant minimum")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)

type MenuItem struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

type Restaurant struct {
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Coord       models.Coord `json:"coord"`
	Color       string       `json:"color"`
	Description string       `json:"description"`
	MinOrder    float64      `json:"min_order"`
	Menu        []MenuItem   `json:"menu"`
}

// Item looks up a menu entry by id.
func (r Restaurant) Item(id int) (MenuItem, bool) {
	for _, it := range r.Menu {
		if it.ID == id {
			return it, true
		}
	}
	return MenuItem{}, false
}

// LineItem is one requested menu entry and its quantity.
type LineItem struct {
	ItemID   int `json:"item_id"`
	Quantity int `json:"quantity"`
}

// BelowMinimumError reports an order subtotal under the restaurant minimum.
type BelowMinimumError struct {
	Subtotal float64
	Minimum  float64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("subtotal $%.2f is below the $%.2f minimum", e.Subtotal, e.Minimum)
}

func (e *BelowMinimumError) Is(target error) bool { return target == ErrBelowMinimum }

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	bySlug map[string]Restaurant
}

func NewCatalog(rs ...Restaurant) *Catalog {
	c := &Catalog{bySlug: make(map[string]Restaurant, len(rs))}
	for _, r := range rs {
		c.bySlug[r.Slug] = r
	}
	return c
}

// Default is the catalog shipped with the platform.
func Default() *Catalog {
	return NewCatalog(Demo)
}

func (c *Catalog) Lookup(slug string) (Restaurant, bool) {
	r, ok := c.bySlug[slug]
	return r, ok
}

func (c *Catalog) Slugs() []string {
	out := make([]string, 0, len(c.bySlug))
	for s := range c.bySlug {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Subtotal prices the requested lines against the restaurant's menu and
// enforces its minimum order. Quantities below one are rejected.
func (c *Catalog) Subtotal(slug string, lines []LineItem) ([]models.OrderItem, float64, error) {
	r, ok := c.Lookup(slug)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownRestaurant, slug)
	}
	if len(lines) == 0 {
		return nil, 0, ErrEmptyOrder
	}
	items := make([]models.OrderItem, 0, len(lines))
	var subtotal float64
	for _, l := range lines {
		it, ok := r.Item(l.ItemID)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %d", ErrUnknownItem, l.ItemID)
		}
		if l.Quantity < 1 {
			return nil, 0, fmt.Errorf("item %d: %w", l.ItemID, ErrInvalidQuantity)
		}
		items = append(items, models.OrderItem{ItemID: it.ID, Name: it.Name, Price: it.Price, Quantity: l.Quantity})
		subtotal += it.Price * float64(l.Quantity)
	}
	subtotal = pricing.Round2(subtotal)
	if subtotal < r.MinOrder {
		return nil, 0, &BelowMinimumError{Subtotal: subtotal, Minimum: r.MinOrder}
	}
	return items, subtotal, nil
}
