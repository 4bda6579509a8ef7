// Package delivery runs the order flow: quote, place, offer, accept,
// complete, cancel and rate. Geography is always resolved before the stats
// store is touched, so no external call happens under the store lock.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/example/delivery-dispatch/internal/clock"
	"github.com/example/delivery-dispatch/internal/dispatch"
	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/ingest"
	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/notify"
	"github.com/example/delivery-dispatch/internal/observability"
	"github.com/example/delivery-dispatch/internal/pricing"
	"github.com/example/delivery-dispatch/internal/restaurants"
	"github.com/example/delivery-dispatch/internal/stats"
)

// Trips resolves addresses and trip geometry.
type Trips interface {
	Geocode(ctx context.Context, address string, proximity *models.Coord) (geo.Place, bool)
	Trip(ctx context.Context, a, b models.Coord) geo.TripMetrics
}

type Dispatcher interface {
	Offer(driverID int64, offer dispatch.Offer) error
	Connected() []int64
}

const (
	DefaultSubscriptionDays = 30
	DefaultOfferTopN        = 5
)

// Service wires the order flow to its collaborators. Store, Catalog, Trips
// and Notifier are required; Locator, Dispatch and Events are optional.
type Service struct {
	Store    *stats.Store
	Catalog  *restaurants.Catalog
	Trips    Trips
	Notifier notify.Notifier
	Locator  geo.Locator
	Dispatch Dispatcher
	Events   ingest.Publisher
	Clock    clock.Clock
	Log      *zap.Logger

	SubscriptionDays int
	// DeliveryRadiusKm caps the straight-line distance between restaurant
	// and customer. Zero disables the check.
	DeliveryRadiusKm float64
	OfferTopN        int
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *Service) log() *zap.Logger { return logging.OrNop(s.Log) }

// NewOrderID returns a time-ordered, lexically sortable id.
func NewOrderID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

type QuoteResult struct {
	Trip  geo.TripMetrics `json:"trip"`
	Quote pricing.Quote   `json:"quote"`
}

// Quote prices a trip between two points without creating anything.
func (s *Service) Quote(ctx context.Context, pickup, dropoff models.Coord) (QuoteResult, error) {
	if err := geo.ValidateCoord(pickup); err != nil {
		return QuoteResult{}, err
	}
	if err := geo.ValidateCoord(dropoff); err != nil {
		return QuoteResult{}, err
	}
	trip := s.Trips.Trip(ctx, pickup, dropoff)
	q, err := pricing.Price(trip.Km, trip.Minutes)
	if err != nil {
		return QuoteResult{}, err
	}
	return QuoteResult{Trip: trip, Quote: q}, nil
}

type PlaceOrderCommand struct {
	Restaurant string                 `json:"restaurant"`
	Name       string                 `json:"name"`
	Phone      string                 `json:"phone"`
	Address    string                 `json:"address"`
	Coord      *models.Coord          `json:"coord,omitempty"`
	Items      []restaurants.LineItem `json:"items"`
}

// PlaceOrder validates the basket, locates the customer, prices the
// delivery and records a pending order. Offers to drivers and the order
// event are best-effort.
func (s *Service) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (models.Order, error) {
	rest, ok := s.Catalog.Lookup(cmd.Restaurant)
	if !ok {
		return models.Order{}, fmt.Errorf("%w: %q", restaurants.ErrUnknownRestaurant, cmd.Restaurant)
	}
	items, subtotal, err := s.Catalog.Subtotal(cmd.Restaurant, cmd.Items)
	if err != nil {
		return models.Order{}, err
	}

	customer := models.Customer{Name: cmd.Name, Phone: cmd.Phone, Address: cmd.Address}
	if cmd.Coord != nil {
		if err := geo.ValidateCoord(*cmd.Coord); err != nil {
			return models.Order{}, err
		}
		customer.Coord = *cmd.Coord
	} else {
		place, ok := s.Trips.Geocode(ctx, cmd.Address, &rest.Coord)
		if !ok {
			return models.Order{}, fmt.Errorf("%w: %q", ErrAddressNotFound, cmd.Address)
		}
		customer.Coord = place.Coord
		customer.Address = place.Address
	}

	if s.DeliveryRadiusKm > 0 {
		if d := geo.StraightLineKm(rest.Coord, customer.Coord); d > s.DeliveryRadiusKm {
			return models.Order{}, &OutOfRangeError{DistanceKm: d, RadiusKm: s.DeliveryRadiusKm}
		}
	}

	trip := s.Trips.Trip(ctx, rest.Coord, customer.Coord)
	q, err := pricing.Price(trip.Km, trip.Minutes)
	if err != nil {
		return models.Order{}, err
	}
	_, commission, err := pricing.SplitRestaurantRevenue(subtotal)
	if err != nil {
		return models.Order{}, err
	}

	now := s.now()
	o := models.Order{
		ID:                NewOrderID(now),
		Status:            models.OrderPending,
		Restaurant:        rest.Slug,
		Customer:          customer,
		Items:             items,
		Subtotal:          subtotal,
		DeliveryFee:       q.CustomerTotal,
		DriverPay:         q.DriverPay,
		PlatformProfit:    pricing.Round2(q.PlatformProfit + commission),
		Commission:        commission,
		Total:             pricing.Round2(subtotal + q.CustomerTotal),
		DistanceKm:        trip.Km,
		DurationMin:       trip.Minutes,
		DurationEstimated: trip.Estimated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Store.AddOrder(ctx, o); err != nil {
		return models.Order{}, err
	}
	observability.OrdersPlaced.Inc()
	s.log().Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("restaurant", o.Restaurant),
		zap.Float64("total", o.Total),
		zap.Float64("km", o.DistanceKm),
		zap.Bool("estimated", o.DurationEstimated))

	s.offer(ctx, o, rest)
	s.publish(ctx, o)
	return o, nil
}

func (s *Service) GetOrder(id string) (models.Order, error) {
	o, ok := s.Store.GetOrder(id)
	if !ok {
		return models.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return o, nil
}

// AcceptOrder assigns a pending order to a subscribed driver and tells the
// customer who is coming and roughly when.
func (s *Service) AcceptOrder(ctx context.Context, orderID string, driverID int64) (models.Order, error) {
	if !s.Store.IsDriverSubscribed(driverID) {
		return models.Order{}, ErrNotSubscribed
	}
	drv, _ := s.Store.Driver(driverID)
	name := drv.Name
	if name == "" {
		name = fmt.Sprintf("Driver #%d", driverID)
	}

	now := s.now()
	o, err := s.transition(ctx, orderID, models.OrderAccepted, func(o *models.Order) error {
		o.DriverID = driverID
		o.DriverName = name
		o.AcceptedAt = &now
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	eta := s.etaMinutes(ctx, drv, o)
	s.Notifier.NotifyAccepted(ctx, o.Customer.Phone, o.ID, name, eta)
	s.publish(ctx, o)
	s.log().Info("order accepted", zap.String("order_id", o.ID), zap.Int64("driver_id", driverID), zap.Int("eta_min", eta))
	return o, nil
}

// CompleteOrder books a delivered order for the driver, the restaurant and
// the platform together with the status change. Only the assigned driver
// may complete it.
func (s *Service) CompleteOrder(ctx context.Context, orderID string, driverID int64) (models.Order, error) {
	now := s.now()
	o, err := s.Store.SettleOrder(ctx, orderID, func(o *models.Order) error {
		if err := checkTransition(o, models.OrderCompleted); err != nil {
			return err
		}
		if o.DriverID != driverID {
			return ErrNotAssigned
		}
		o.Status = models.OrderCompleted
		o.CompletedAt = &now
		return nil
	})
	if err != nil {
		return models.Order{}, orderErr(orderID, err)
	}
	observability.OrdersCompleted.Inc()
	observability.PlatformProfit.Add(o.PlatformProfit)

	s.Notifier.NotifyCompleted(ctx, o.Customer.Phone, o.ID)
	s.publish(ctx, o)
	s.log().Info("order completed", zap.String("order_id", o.ID), zap.Int64("driver_id", o.DriverID), zap.Float64("driver_pay", o.DriverPay))
	return o, nil
}

func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) (models.Order, error) {
	now := s.now()
	o, err := s.transition(ctx, orderID, models.OrderCancelled, func(o *models.Order) error {
		o.CancelReason = reason
		o.CancelledAt = &now
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}
	if err := s.Store.RecordCancellation(ctx); err != nil {
		return o, err
	}
	observability.OrdersCancelled.Inc()

	s.Notifier.NotifyCancelled(ctx, o.Customer.Phone, o.ID, reason)
	s.publish(ctx, o)
	s.log().Info("order cancelled", zap.String("order_id", o.ID), zap.String("reason", reason))
	return o, nil
}

// RateDriver records the customer's rating for a completed order's driver.
// Each order can be rated once.
func (s *Service) RateDriver(ctx context.Context, orderID string, rating int) error {
	if rating < 1 || rating > 5 {
		return &stats.InvalidRatingError{Rating: rating}
	}
	var driverID int64
	err := s.mutate(ctx, orderID, func(o *models.Order) error {
		if o.Status != models.OrderCompleted {
			return &TransitionError{OrderID: o.ID, From: o.Status, To: "rated"}
		}
		if o.Rated {
			return ErrAlreadyRated
		}
		o.Rated = true
		driverID = o.DriverID
		return nil
	})
	if err != nil {
		return err
	}
	return s.Store.AddDriverRating(ctx, driverID, rating)
}

// UpdateLocation records a driver position in the store, the locator and
// the location stream.
func (s *Service) UpdateLocation(ctx context.Context, driverID int64, name string, c models.Coord) error {
	if err := geo.ValidateCoord(c); err != nil {
		return err
	}
	prev, _ := s.Store.Driver(driverID)
	if err := s.Store.SetDriverLocation(ctx, driverID, name, c); err != nil {
		return err
	}
	if prev.Location == nil {
		observability.DriverFirstLocations.Inc()
	}
	if s.Locator != nil {
		if err := s.Locator.Upsert(ctx, driverID, c); err != nil {
			s.log().Warn("locator upsert failed", zap.Int64("driver_id", driverID), zap.Error(err))
		}
	}
	if s.Events != nil {
		ev := ingest.LocationEvent{DriverID: driverID, Name: name, Coord: c, At: s.now()}
		if err := s.Events.PublishLocation(ctx, ev); err != nil {
			s.log().Warn("publish location failed", zap.Int64("driver_id", driverID), zap.Error(err))
		}
	}
	return nil
}

// Subscribe opens a SubscriptionDays window for the driver.
func (s *Service) Subscribe(ctx context.Context, driverID int64, name string) (time.Time, error) {
	days := s.SubscriptionDays
	if days <= 0 {
		days = DefaultSubscriptionDays
	}
	return s.Store.SubscribeDriver(ctx, driverID, name, days)
}

type DriverProfile struct {
	DriverID        int64              `json:"driver_id"`
	Name            string             `json:"name"`
	Stats           models.DriverStats `json:"stats"`
	Rank            int                `json:"rank"`
	Subscribed      bool               `json:"subscribed"`
	SubscribedUntil string             `json:"subscribed_until,omitempty"`
}

// Profile summarizes a driver for the stats view. Drivers without any
// activity get zero stats and the unranked position.
func (s *Service) Profile(driverID int64) DriverProfile {
	d, _ := s.Store.Driver(driverID)
	ds, _ := s.Store.DriverStats(driverID)
	name := ds.Name
	if name == "" {
		name = d.Name
	}
	return DriverProfile{
		DriverID:        driverID,
		Name:            name,
		Stats:           ds,
		Rank:            s.Store.GetDriverRank(driverID),
		Subscribed:      s.Store.IsDriverSubscribed(driverID),
		SubscribedUntil: d.SubscribedUntil,
	}
}

func (s *Service) transition(ctx context.Context, orderID string, to models.OrderStatus, fn func(o *models.Order) error) (models.Order, error) {
	var out models.Order
	err := s.mutate(ctx, orderID, func(o *models.Order) error {
		if err := checkTransition(o, to); err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		o.Status = to
		out = *o
		return nil
	})
	return out, err
}

func (s *Service) mutate(ctx context.Context, orderID string, fn func(o *models.Order) error) error {
	return orderErr(orderID, s.Store.MutateOrder(ctx, orderID, fn))
}

func orderErr(orderID string, err error) error {
	if errors.Is(err, stats.ErrOrderNotFound) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return err
}

// etaMinutes estimates driver-to-restaurant plus restaurant-to-customer.
func (s *Service) etaMinutes(ctx context.Context, drv models.Driver, o models.Order) int {
	total := o.DurationMin
	if rest, ok := s.Catalog.Lookup(o.Restaurant); ok && drv.Location != nil {
		total += s.Trips.Trip(ctx, *drv.Location, rest.Coord).Minutes
	}
	return int(math.Ceil(total))
}

func (s *Service) publish(ctx context.Context, o models.Order) {
	if s.Events == nil {
		return
	}
	ev := ingest.OrderEvent{OrderID: o.ID, Status: o.Status, Restaurant: o.Restaurant, DriverID: o.DriverID, Total: o.Total, At: s.now()}
	if err := s.Events.PublishOrderEvent(ctx, ev); err != nil {
		s.log().Warn("publish order event failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}
