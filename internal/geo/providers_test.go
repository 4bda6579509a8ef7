package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/example/delivery-dispatch/internal/models"
)

func newMapbox(t *testing.T, h http.HandlerFunc) *MapboxProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := NewMapboxProvider("pk.test", 0, nil)
	m.BaseURL = srv.URL
	return m
}

func TestMapboxGeocode(t *testing.T) {
	m := newMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocoding/v5/mapbox.places/350 5th Ave.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "pk.test", q.Get("access_token"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "US", q.Get("country"))
		assert.Equal(t, "address,poi", q.Get("types"))
		assert.Equal(t, "-74.006,40.7128", q.Get("proximity"))
		_, _ = w.Write([]byte(`{"features":[{"place_name":"350 5th Ave, New York, NY 10118","geometry":{"coordinates":[-73.9857,40.7484]}}]}`))
	})

	p, ok := m.Geocode(context.Background(), "350 5th Ave", &downtown)
	require.True(t, ok)
	assert.Equal(t, models.Coord{Lat: 40.7484, Lon: -73.9857}, p.Coord)
	assert.Equal(t, "350 5th Ave, New York, NY 10118", p.Address)
}

func TestMapboxGeocodeNotFound(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"empty": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"features":[]}`))
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := newMapbox(t, h).Geocode(context.Background(), "nowhere", nil)
			assert.False(t, ok)
		})
	}
}

func TestMapboxRoute(t *testing.T) {
	m := newMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/directions/v5/mapbox/driving/-74.006,40.7128;-73.9855,40.758.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"routes":[{"distance":6789.4,"duration":1171}]}`))
	})

	rt, ok := m.Route(context.Background(), downtown, timesSquare)
	require.True(t, ok)
	assert.Equal(t, Route{Km: 6.79, Minutes: 19.5}, rt)
}

func TestMapboxRouteUnavailable(t *testing.T) {
	m := newMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[],"code":"NoRoute"}`))
	})
	_, ok := m.Route(context.Background(), downtown, timesSquare)
	assert.False(t, ok)

	m.BaseURL = "http://127.0.0.1:1"
	_, ok = m.Route(context.Background(), downtown, timesSquare)
	assert.False(t, ok)
}

func TestGoogleGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "350 5th Ave", r.URL.Query().Get("address"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"350 5th Ave, New York, NY 10118, USA","geometry":{"location":{"lat":40.7484,"lng":-73.9857}}}]}`))
	}))
	defer srv.Close()

	g, err := NewGoogleProvider("AIza-test", 0, nil, maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	p, ok := g.Geocode(context.Background(), "350 5th Ave", &downtown)
	require.True(t, ok)
	assert.Equal(t, models.Coord{Lat: 40.7484, Lon: -73.9857}, p.Coord)
	assert.Equal(t, "350 5th Ave, New York, NY 10118, USA", p.Address)
}

func TestGoogleRouteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","routes":[]}`))
	}))
	defer srv.Close()

	g, err := NewGoogleProvider("AIza-test", 0, nil, maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, ok := g.Route(context.Background(), downtown, timesSquare)
	assert.False(t, ok)
}

func TestOSRMRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route/v1/driving/-74.006000,40.712800;-73.985500,40.758000", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":6123.4,"duration":1110}]}`))
	}))
	defer srv.Close()

	o := NewOSRMProvider(srv.URL, 0, nil)
	rt, ok := o.Route(context.Background(), models.Coord{Lat: 40.7128, Lon: -74.006}, models.Coord{Lat: 40.758, Lon: -73.9855})
	require.True(t, ok)
	assert.Equal(t, Route{Km: 6.12, Minutes: 18.5}, rt)

	_, ok = o.Geocode(context.Background(), "10 Astor Pl", nil)
	assert.False(t, ok)
}

func TestOSRMNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	_, ok := NewOSRMProvider(srv.URL, 0, nil).Route(context.Background(), models.Coord{Lat: 1, Lon: 1}, models.Coord{Lat: 2, Lon: 2})
	assert.False(t, ok)
}
