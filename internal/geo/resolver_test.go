package geo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/delivery-dispatch/internal/clock"
	"github.com/example/delivery-dispatch/internal/models"
)

type fakeProvider struct {
	route      Route
	routeOK    bool
	routeCalls int
	place      Place
	placeOK    bool
}

func (f *fakeProvider) Geocode(ctx context.Context, address string, proximity *models.Coord) (Place, bool) {
	return f.place, f.placeOK
}

func (f *fakeProvider) Route(ctx context.Context, origin, dest models.Coord) (Route, bool) {
	f.routeCalls++
	return f.route, f.routeOK
}

func TestTripUsesRoute(t *testing.T) {
	p := &fakeProvider{route: Route{Km: 6.8, Minutes: 19.5}, routeOK: true}
	r := NewResolver(p, nil, nil)

	got := r.Trip(context.Background(), downtown, timesSquare)
	assert.Equal(t, TripMetrics{Km: 6.8, Minutes: 19.5}, got)
}

func TestTripFallsBackToGreatCircle(t *testing.T) {
	p := &fakeProvider{}
	r := NewResolver(p, nil, nil)

	got := r.Trip(context.Background(), downtown, timesSquare)
	assert.Equal(t, TripMetrics{Km: 5.31, Minutes: 12.7, Estimated: true}, got)

	got = NewResolver(nil, nil, nil).Trip(context.Background(), downtown, timesSquare)
	assert.True(t, got.Estimated)
}

func TestTripCachesRoutes(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p := &fakeProvider{route: Route{Km: 6.8, Minutes: 19.5}, routeOK: true}
	r := NewResolver(p, NewRouteCache(time.Minute, clk), nil)
	ctx := context.Background()

	r.Trip(ctx, downtown, timesSquare)
	r.Trip(ctx, downtown, timesSquare)
	assert.Equal(t, 1, p.routeCalls)

	clk.Advance(2 * time.Minute)
	r.Trip(ctx, downtown, timesSquare)
	assert.Equal(t, 2, p.routeCalls)
}

func TestFailedRoutesAreNotCached(t *testing.T) {
	p := &fakeProvider{}
	r := NewResolver(p, NewRouteCache(time.Hour, nil), nil)
	ctx := context.Background()

	r.Trip(ctx, downtown, timesSquare)
	r.Trip(ctx, downtown, timesSquare)
	assert.Equal(t, 2, p.routeCalls)
}

func TestResolverGeocodeWithoutProvider(t *testing.T) {
	_, ok := NewResolver(nil, nil, nil).Geocode(context.Background(), "1 Main St", nil)
	assert.False(t, ok)
}

func TestEstimateMinutes(t *testing.T) {
	assert.Zero(t, EstimateMinutes(0))
	assert.Equal(t, 60.0, EstimateMinutes(25))
	assert.Equal(t, 2.4, EstimateMinutes(1))
}
