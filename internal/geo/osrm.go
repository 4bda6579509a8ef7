package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/observability"
)

// OSRMProvider routes against a self-hosted OSRM server. OSRM has no
// geocoder, so Geocode always reports NotFound.
type OSRMProvider struct {
	Endpoint string
	Client   *http.Client

	limiter *rate.Limiter
	log     *zap.Logger
}

func NewOSRMProvider(endpoint string, perSec float64, log *zap.Logger) *OSRMProvider {
	return &OSRMProvider{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 2 * time.Second},
		limiter:  newLimiter(perSec),
		log:      logging.OrNop(log).With(zap.String("provider", "osrm")),
	}
}

func (o *OSRMProvider) Geocode(context.Context, string, *models.Coord) (Place, bool) {
	return Place{}, false
}

// Route queries /route/v1/driving between the two points.
func (o *OSRMProvider) Route(ctx context.Context, origin, dest models.Coord) (Route, bool) {
	out, err := o.route(ctx, origin, dest)
	if err != nil {
		o.log.Error("osrm route failed", zap.Error(err))
		observability.GeoRequests.WithLabelValues("osrm", "route", "error").Inc()
		return Route{}, false
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		observability.GeoRequests.WithLabelValues("osrm", "route", "not_found").Inc()
		return Route{}, false
	}
	observability.GeoRequests.WithLabelValues("osrm", "route", "ok").Inc()
	r := out.Routes[0]
	return Route{Km: round(r.Distance/1000, 2), Minutes: round(r.Duration/60, 1)}, true
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (o *OSRMProvider) route(ctx context.Context, from, to models.Coord) (osrmResponse, error) {
	var out osrmResponse
	if err := o.limiter.Wait(ctx); err != nil {
		return out, fmt.Errorf("rate limit: %w", err)
	}
	start := time.Now()
	defer func() { observability.GeoLatency.Observe(time.Since(start).Seconds()) }()

	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false", o.Endpoint, from.Lon, from.Lat, to.Lon, to.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return out, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	// OSRM answers 400 with a JSON body for NoRoute and friends.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return out, fmt.Errorf("osrm: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode osrm response: %w", err)
	}
	return out, nil
}
