package delivery

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/example/delivery-dispatch/internal/dispatch"
	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/restaurants"
)

// ratingWeight converts one missing rating star into minutes of pickup ETA
// when ranking candidates.
const ratingWeight = 0.5

type candidate struct {
	driverID int64
	etaMin   float64
	cost     float64
}

// offer pushes a new order to the best connected, subscribed drivers.
// It returns how many offers were delivered.
func (s *Service) offer(ctx context.Context, o models.Order, rest restaurants.Restaurant) int {
	if s.Dispatch == nil {
		return 0
	}
	cands := s.candidates(ctx, rest.Coord)
	if len(cands) == 0 {
		s.log().Info("no drivers to offer order", zap.String("order_id", o.ID))
		return 0
	}
	topN := s.OfferTopN
	if topN <= 0 {
		topN = DefaultOfferTopN
	}
	if len(cands) > topN {
		cands = cands[:topN]
	}

	nav, _ := geo.NavigationURL(rest.Coord, o.Customer.Coord)
	sent := 0
	for _, c := range cands {
		off := dispatch.Offer{
			OrderID:       o.ID,
			Restaurant:    rest.Name,
			Pickup:        rest.Coord,
			PickupAddress: rest.Address,
			Dropoff:       o.Customer.Coord,
			DropoffAddr:   o.Customer.Address,
			DistanceKm:    o.DistanceKm,
			DurationMin:   o.DurationMin,
			DriverPay:     o.DriverPay,
			NavigationURL: nav,
		}
		if !math.IsInf(c.etaMin, 1) {
			off.PickupETA = c.etaMin
		}
		if err := s.Dispatch.Offer(c.driverID, off); err == nil {
			sent++
		}
	}
	s.log().Info("order offered", zap.String("order_id", o.ID), zap.Int("candidates", len(cands)), zap.Int("delivered", sent))
	return sent
}

// candidates ranks connected, subscribed drivers by pickup ETA plus a
// rating penalty. With a Locator, only drivers it reports near the
// restaurant qualify; drivers with no known position rank last.
func (s *Service) candidates(ctx context.Context, pickup models.Coord) []candidate {
	var near map[int64]float64
	if s.Locator != nil {
		radius := s.DeliveryRadiusKm
		hits, err := s.Locator.Nearby(ctx, pickup, radius, 0)
		if err != nil {
			s.log().Warn("locator nearby failed, using all connected drivers", zap.Error(err))
		} else {
			near = make(map[int64]float64, len(hits))
			for _, h := range hits {
				near[h.DriverID] = h.DistanceKm
			}
		}
	}

	out := make([]candidate, 0)
	for _, id := range s.Dispatch.Connected() {
		if !s.Store.IsDriverSubscribed(id) {
			continue
		}
		km, ok := near[id]
		if near != nil && !ok {
			continue
		}
		if near == nil {
			km = math.Inf(1)
			if d, found := s.Store.Driver(id); found && d.Location != nil {
				km = geo.StraightLineKm(*d.Location, pickup)
			}
		}
		eta := math.Inf(1)
		if !math.IsInf(km, 1) {
			eta = geo.EstimateMinutes(km)
		}
		rating := 5.0
		if ds, found := s.Store.DriverStats(id); found {
			rating = ds.Rating
		}
		out = append(out, candidate{driverID: id, etaMin: eta, cost: eta + ratingWeight*(5.0-rating)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].cost != out[j].cost {
			return out[i].cost < out[j].cost
		}
		return out[i].driverID < out[j].driverID
	})
	return out
}
