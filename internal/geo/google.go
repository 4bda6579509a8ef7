package geo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/observability"
)

// proximityBox is the half-width, in degrees, of the bounds used to bias
// geocoding toward a proximity point.
const proximityBox = 0.25

// GoogleProvider resolves addresses and routes through the Google Maps
// Geocoding and Directions APIs.
type GoogleProvider struct {
	client  *maps.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewGoogleProvider creates a provider with the given API key. Extra client
// options (such as maps.WithBaseURL in tests) are passed through.
func NewGoogleProvider(apiKey string, perSec float64, log *zap.Logger, opts ...maps.ClientOption) (*GoogleProvider, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey), maps.WithHTTPClient(&http.Client{Timeout: defaultTimeout})}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleProvider{
		client:  client,
		limiter: newLimiter(perSec),
		log:     logging.OrNop(log).With(zap.String("provider", "google")),
	}, nil
}

func (g *GoogleProvider) Geocode(ctx context.Context, address string, proximity *models.Coord) (Place, bool) {
	r := &maps.GeocodingRequest{
		Address: address,
		Region:  "us",
	}
	if proximity != nil {
		r.Bounds = &maps.LatLngBounds{
			NorthEast: maps.LatLng{Lat: proximity.Lat + proximityBox, Lng: proximity.Lon + proximityBox},
			SouthWest: maps.LatLng{Lat: proximity.Lat - proximityBox, Lng: proximity.Lon - proximityBox},
		}
	}
	if err := g.wait(ctx, "geocode"); err != nil {
		g.log.Error("geocode failed", zap.String("address", address), zap.Error(err))
		return Place{}, false
	}
	start := time.Now()
	results, err := g.client.Geocode(ctx, r)
	observability.GeoLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.GeoRequests.WithLabelValues("google", "geocode", "error").Inc()
		g.log.Error("geocode failed", zap.String("address", address), zap.Error(err))
		return Place{}, false
	}
	if len(results) == 0 {
		observability.GeoRequests.WithLabelValues("google", "geocode", "not_found").Inc()
		return Place{}, false
	}
	observability.GeoRequests.WithLabelValues("google", "geocode", "ok").Inc()
	res := results[0]
	p := Place{
		Coord:   models.Coord{Lat: res.Geometry.Location.Lat, Lon: res.Geometry.Location.Lng},
		Address: res.FormattedAddress,
	}
	if p.Address == "" {
		p.Address = address
	}
	return p, true
}

func (g *GoogleProvider) Route(ctx context.Context, origin, dest models.Coord) (Route, bool) {
	r := &maps.DirectionsRequest{
		Origin:      latLon(origin),
		Destination: latLon(dest),
		Mode:        maps.TravelModeDriving,
	}
	if err := g.wait(ctx, "route"); err != nil {
		g.log.Error("directions failed", zap.Error(err))
		return Route{}, false
	}
	start := time.Now()
	routes, _, err := g.client.Directions(ctx, r)
	observability.GeoLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.GeoRequests.WithLabelValues("google", "route", "error").Inc()
		g.log.Error("directions failed", zap.Error(err))
		return Route{}, false
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		observability.GeoRequests.WithLabelValues("google", "route", "not_found").Inc()
		return Route{}, false
	}
	observability.GeoRequests.WithLabelValues("google", "route", "ok").Inc()
	leg := routes[0].Legs[0]
	return Route{
		Km:      round(float64(leg.Distance.Meters)/1000, 2),
		Minutes: round(leg.Duration.Minutes(), 1),
	}, true
}

func (g *GoogleProvider) wait(ctx context.Context, op string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		observability.GeoRequests.WithLabelValues("google", op, "rate_limited").Inc()
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}
