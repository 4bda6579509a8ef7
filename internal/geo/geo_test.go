package geo

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/delivery-dispatch/internal/models"
)

var (
	downtown    = models.Coord{Lat: 40.7128, Lon: -74.0060}
	timesSquare = models.Coord{Lat: 40.7580, Lon: -73.9855}
)

func TestHaversineZero(t *testing.T) {
	assert.Zero(t, Haversine(0, 0, 0, 0))
}

func TestStraightLineKm(t *testing.T) {
	assert.Equal(t, 5.31, StraightLineKm(downtown, timesSquare))
	assert.Equal(t, StraightLineKm(timesSquare, downtown), StraightLineKm(downtown, timesSquare))
	assert.Equal(t, 111.19, StraightLineKm(models.Coord{}, models.Coord{Lon: 1}))
	assert.Zero(t, StraightLineKm(downtown, downtown))
}

func TestValidateCoord(t *testing.T) {
	bad := []models.Coord{
		{Lat: math.NaN()},
		{Lon: math.Inf(1)},
		{Lat: 90.5},
		{Lat: -91},
		{Lon: 180.01},
		{Lon: -181},
	}
	for _, c := range bad {
		err := ValidateCoord(c)
		var ice *InvalidCoordinateError
		assert.ErrorAs(t, err, &ice, "%+v", c)
	}
	assert.NoError(t, ValidateCoord(models.Coord{Lat: 90, Lon: -180}))
	assert.NoError(t, ValidateCoord(downtown))
}

func TestStaticMapURL(t *testing.T) {
	u, err := StaticMapURL("pk.test", downtown, timesSquare, 0, 0)
	require.NoError(t, err)
	assert.Equal(t,
		"https://api.mapbox.com/styles/v1/mapbox/dark-v11/static/pin-s-a+f44336(-74.006,40.7128),pin-s-b+4caf50(-73.9855,40.758)/auto/800x400@2x?access_token=pk.test",
		u)

	u, err = StaticMapURL("pk.test", downtown, timesSquare, 300, 200)
	require.NoError(t, err)
	assert.Contains(t, u, "/auto/300x200@2x")

	_, err = StaticMapURL("pk.test", downtown, models.Coord{Lat: 123}, 0, 0)
	var ice *InvalidCoordinateError
	assert.ErrorAs(t, err, &ice)
}

func TestNavigationURL(t *testing.T) {
	u, err := NavigationURL(downtown, timesSquare)
	require.NoError(t, err)
	assert.Equal(t,
		"https://www.google.com/maps/dir/?api=1&origin=40.7128,-74.006&destination=40.758,-73.9855&travelmode=driving",
		u)

	_, err = NavigationURL(models.Coord{Lon: math.NaN()}, timesSquare)
	assert.Error(t, err)
}

func TestIndexNearby(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, 1, timesSquare))
	require.NoError(t, idx.Upsert(ctx, 2, models.Coord{Lat: 40.7130, Lon: -74.0062}))
	require.NoError(t, idx.Upsert(ctx, 3, models.Coord{Lat: 41.5, Lon: -74.0}))
	assert.Error(t, idx.Upsert(ctx, 4, models.Coord{Lat: 100}))
	assert.Equal(t, 3, idx.Len())

	got, err := idx.Nearby(ctx, downtown, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].DriverID)
	assert.Equal(t, int64(1), got[1].DriverID)
	assert.Equal(t, 5.31, got[1].DistanceKm)

	got, err = idx.Nearby(ctx, downtown, 0, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].DriverID)

	// moving a driver replaces its position
	require.NoError(t, idx.Upsert(ctx, 3, downtown))
	got, err = idx.Nearby(ctx, downtown, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got[0].DriverID)
}
