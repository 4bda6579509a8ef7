package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/observability"
)

const (
	DefaultMapboxURL = "https://api.mapbox.com"
	defaultTimeout   = 10 * time.Second
)

// MapboxProvider performs geocoding and driving directions against the
// Mapbox REST API.
type MapboxProvider struct {
	BaseURL string
	Token   string
	Client  *http.Client

	limiter *rate.Limiter
	log     *zap.Logger
}

// NewMapboxProvider builds a provider allowing perSec requests per second
// (burst of the same size). perSec <= 0 disables limiting.
func NewMapboxProvider(token string, perSec float64, log *zap.Logger) *MapboxProvider {
	return &MapboxProvider{
		BaseURL: DefaultMapboxURL,
		Token:   token,
		Client:  &http.Client{Timeout: defaultTimeout},
		limiter: newLimiter(perSec),
		log:     logging.OrNop(log).With(zap.String("provider", "mapbox")),
	}
}

func (m *MapboxProvider) Geocode(ctx context.Context, address string, proximity *models.Coord) (Place, bool) {
	q := url.Values{}
	q.Set("access_token", m.Token)
	q.Set("limit", "1")
	q.Set("country", "US")
	q.Set("types", "address,poi")
	if proximity != nil {
		q.Set("proximity", lonLat(*proximity))
	}
	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", m.BaseURL, url.PathEscape(address), q.Encode())

	var out struct {
		Features []struct {
			PlaceName string `json:"place_name"`
			Geometry  struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := m.getJSON(ctx, "geocode", endpoint, &out); err != nil {
		m.log.Error("geocode failed", zap.String("address", address), zap.Error(err))
		return Place{}, false
	}
	if len(out.Features) == 0 || len(out.Features[0].Geometry.Coordinates) < 2 {
		observability.GeoRequests.WithLabelValues("mapbox", "geocode", "not_found").Inc()
		return Place{}, false
	}
	f := out.Features[0]
	p := Place{Coord: models.Coord{Lat: f.Geometry.Coordinates[1], Lon: f.Geometry.Coordinates[0]}, Address: f.PlaceName}
	if p.Address == "" {
		p.Address = address
	}
	observability.GeoRequests.WithLabelValues("mapbox", "geocode", "ok").Inc()
	return p, true
}

func (m *MapboxProvider) Route(ctx context.Context, origin, dest models.Coord) (Route, bool) {
	q := url.Values{}
	q.Set("access_token", m.Token)
	q.Set("overview", "false")
	endpoint := fmt.Sprintf("%s/directions/v5/mapbox/driving/%s;%s.json?%s", m.BaseURL, lonLat(origin), lonLat(dest), q.Encode())

	var out struct {
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"routes"`
	}
	if err := m.getJSON(ctx, "route", endpoint, &out); err != nil {
		m.log.Error("directions failed", zap.Error(err))
		return Route{}, false
	}
	if len(out.Routes) == 0 {
		observability.GeoRequests.WithLabelValues("mapbox", "route", "not_found").Inc()
		return Route{}, false
	}
	observability.GeoRequests.WithLabelValues("mapbox", "route", "ok").Inc()
	r := out.Routes[0]
	return Route{Km: round(r.Distance/1000, 2), Minutes: round(r.Duration/60, 1)}, true
}

func (m *MapboxProvider) getJSON(ctx context.Context, op, endpoint string, v any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		observability.GeoRequests.WithLabelValues("mapbox", op, "rate_limited").Inc()
		return fmt.Errorf("rate limit: %w", err)
	}
	start := time.Now()
	defer func() { observability.GeoLatency.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		observability.GeoRequests.WithLabelValues("mapbox", op, "error").Inc()
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		observability.GeoRequests.WithLabelValues("mapbox", op, "error").Inc()
		return fmt.Errorf("mapbox %s: status %d", op, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		observability.GeoRequests.WithLabelValues("mapbox", op, "error").Inc()
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}
