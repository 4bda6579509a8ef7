package geo

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/observability"
)

// CitySpeedKmh is the average speed used to estimate a duration when no
// road route is available.
const CitySpeedKmh = 25.0

// TripMetrics is the geometry a price is computed from.
type TripMetrics struct {
	Km        float64 `json:"km"`
	Minutes   float64 `json:"minutes"`
	Estimated bool    `json:"estimated"`
}

// Resolver puts a Provider, a RouteCache and the great-circle fallback
// together. A nil Provider always falls back.
type Resolver struct {
	provider Provider
	cache    *RouteCache
	log      *zap.Logger
}

func NewResolver(p Provider, cache *RouteCache, log *zap.Logger) *Resolver {
	return &Resolver{provider: p, cache: cache, log: logging.OrNop(log)}
}

// Geocode returns NotFound (false) when no provider is configured.
func (r *Resolver) Geocode(ctx context.Context, address string, proximity *models.Coord) (Place, bool) {
	if r.provider == nil {
		return Place{}, false
	}
	return r.provider.Geocode(ctx, address, proximity)
}

// Trip measures the drive from a to b. When routing is unavailable the
// distance is the great-circle distance and the duration is estimated at
// CitySpeedKmh.
func (r *Resolver) Trip(ctx context.Context, a, b models.Coord) TripMetrics {
	if rt, ok := r.route(ctx, a, b); ok {
		return TripMetrics{Km: rt.Km, Minutes: rt.Minutes}
	}
	observability.GeoFallbacks.Inc()
	km := StraightLineKm(a, b)
	r.log.Warn("route unavailable, using straight-line distance", zap.Float64("km", km))
	return TripMetrics{Km: km, Minutes: EstimateMinutes(km), Estimated: true}
}

func (r *Resolver) route(ctx context.Context, a, b models.Coord) (Route, bool) {
	if r.cache != nil {
		if rt, ok := r.cache.Get(a, b); ok {
			observability.RouteCacheHits.Inc()
			return rt, true
		}
	}
	if r.provider == nil {
		return Route{}, false
	}
	rt, ok := r.provider.Route(ctx, a, b)
	if ok && r.cache != nil {
		r.cache.Set(a, b, rt)
	}
	return rt, ok
}

// EstimateMinutes converts a distance to minutes at CitySpeedKmh.
func EstimateMinutes(km float64) float64 {
	if km <= 0 {
		return 0
	}
	return round(km/CitySpeedKmh*60, 1)
}
