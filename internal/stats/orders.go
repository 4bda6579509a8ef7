package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/pricing"
)

// AddOrder appends o to the order log. Ids are unique; the log is
// append-only and keeps insertion order.
func (s *Store) AddOrder(ctx context.Context, o models.Order) error {
	if o.ID == "" {
		return ErrInvalidOrder
	}
	if err := geo.ValidateCoord(o.Customer.Coord); err != nil {
		return err
	}
	return s.mutate(ctx, func(st *models.State, now time.Time) error {
		if indexOf(st.Orders, o.ID) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		if o.UpdatedAt.IsZero() {
			o.UpdatedAt = o.CreatedAt
		}
		o.Items = append([]models.OrderItem(nil), o.Items...)
		st.Orders = append(st.Orders, o)
		return nil
	})
}

func (s *Store) GetOrder(id string) (models.Order, bool) {
	var (
		o  models.Order
		ok bool
	)
	s.view(func(st *models.State) {
		if i := indexOf(st.Orders, id); i >= 0 {
			o, ok = st.Orders[i], true
		}
	})
	return o, ok
}

// Orders returns a copy of the order log, oldest first.
func (s *Store) Orders() []models.Order {
	var out []models.Order
	s.view(func(st *models.State) {
		out = make([]models.Order, len(st.Orders))
		copy(out, st.Orders)
	})
	return out
}

// UpdateOrder merges patch into the order and reports whether it existed.
func (s *Store) UpdateOrder(ctx context.Context, id string, patch models.OrderPatch) bool {
	err := s.MutateOrder(ctx, id, func(o *models.Order) error {
		patch.Apply(o)
		return nil
	})
	return err == nil
}

// MutateOrder runs fn on a copy of the order under the store lock and
// commits the copy only when fn returns nil. It is the building block for
// conditional transitions such as "accept only if still pending".
func (s *Store) MutateOrder(ctx context.Context, id string, fn func(o *models.Order) error) error {
	return s.mutate(ctx, func(st *models.State, now time.Time) error {
		i := indexOf(st.Orders, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		o := st.Orders[i]
		o.Items = append([]models.OrderItem(nil), o.Items...)
		if err := fn(&o); err != nil {
			return err
		}
		o.UpdatedAt = now
		st.Orders[i] = o
		return nil
	})
}

// RecordCancellation bumps the ledger's cancelled counter.
func (s *Store) RecordCancellation(ctx context.Context) error {
	return s.mutate(ctx, func(st *models.State, _ time.Time) error {
		st.Cancelled++
		return nil
	})
}

// UpdateRestaurantStats books one order's revenue and commission against
// the restaurant, creating its account on first use.
func (s *Store) UpdateRestaurantStats(ctx context.Context, slug string, revenue, commission float64) error {
	if slug == "" {
		return ErrInvalidRestaurant
	}
	if err := checkAmount("revenue", revenue); err != nil {
		return err
	}
	if err := checkAmount("commission", commission); err != nil {
		return err
	}
	return s.mutate(ctx, func(st *models.State, _ time.Time) error {
		bookRestaurantOrder(st, slug, revenue, commission)
		return nil
	})
}

func bookRestaurantOrder(st *models.State, slug string, revenue, commission float64) {
	acct := st.Restaurants[slug]
	acct.TotalOrders++
	acct.TotalRevenue = pricing.Round2(acct.TotalRevenue + revenue)
	acct.CommissionOwed = pricing.Round2(acct.CommissionOwed + commission)
	st.Restaurants[slug] = acct
}

// SettleOrder runs fn on a copy of the order and, when fn succeeds, books
// the order for its driver, the platform ledger and its restaurant in the
// same critical section as the order update. Any error leaves the document
// untouched. Restaurant revenue is the subtotal net of commission.
func (s *Store) SettleOrder(ctx context.Context, id string, fn func(o *models.Order) error) (models.Order, error) {
	var out models.Order
	err := s.mutate(ctx, func(st *models.State, now time.Time) error {
		i := indexOf(st.Orders, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		o := st.Orders[i]
		o.Items = append([]models.OrderItem(nil), o.Items...)
		if err := fn(&o); err != nil {
			return err
		}
		if err := checkDriver(o.DriverID); err != nil {
			return err
		}
		if o.Restaurant == "" {
			return ErrInvalidRestaurant
		}
		revenue := pricing.Round2(o.Subtotal - o.Commission)
		if err := checkBooking(o.DriverPay, o.DistanceKm, o.PlatformProfit); err != nil {
			return err
		}
		if err := checkAmount("revenue", revenue); err != nil {
			return err
		}
		if err := checkAmount("commission", o.Commission); err != nil {
			return err
		}

		o.UpdatedAt = now
		st.Orders[i] = o
		bookDriverOrder(st, o.DriverID, o.DriverName, o.DriverPay, o.DistanceKm, o.PlatformProfit, now)
		bookRestaurantOrder(st, o.Restaurant, revenue, o.Commission)
		out = o
		return nil
	})
	return out, err
}

func (s *Store) Restaurant(slug string) (models.RestaurantAccount, bool) {
	var (
		a  models.RestaurantAccount
		ok bool
	)
	s.view(func(st *models.State) { a, ok = st.Restaurants[slug] })
	return a, ok
}

func indexOf(orders []models.Order, id string) int {
	for i := range orders {
		if orders[i].ID == id {
			return i
		}
	}
	return -1
}
