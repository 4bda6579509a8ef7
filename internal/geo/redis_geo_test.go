package geo

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/delivery-dispatch/internal/models"
)

// recordingHook answers GEO commands locally and keeps their arguments.
type recordingHook struct {
	args [][]any
	hits []redis.GeoLocation
}

func (h *recordingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *recordingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.args = append(h.args, cmd.Args())
		if c, ok := cmd.(*redis.GeoLocationCmd); ok {
			c.SetVal(h.hits)
		}
		return nil
	}
}

func (h *recordingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newHookedLocator(h *recordingHook) *RedisLocator {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(h)
	return NewRedisLocator(client, "drivers_geo")
}

func TestRedisLocatorNearbyUnboundedRadius(t *testing.T) {
	h := &recordingHook{hits: []redis.GeoLocation{
		{Name: "7", Longitude: -74.0, Latitude: 41.5, Dist: 87.3},
		{Name: "not-a-driver", Longitude: -74.0, Latitude: 40.7},
	}}
	l := newHookedLocator(h)

	hits, err := l.Nearby(context.Background(), models.Coord{Lat: 40.7128, Lon: -74.006}, 0, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(7), hits[0].DriverID)
	assert.Equal(t, 87.3, hits[0].DistanceKm)

	require.Len(t, h.args, 1)
	assert.Contains(t, h.args[0], wholeEarthKm)
}

func TestRedisLocatorNearbyKeepsRadius(t *testing.T) {
	h := &recordingHook{}
	l := newHookedLocator(h)

	_, err := l.Nearby(context.Background(), models.Coord{Lat: 40.7128, Lon: -74.006}, 2.5, 10)
	require.NoError(t, err)
	require.Len(t, h.args, 1)
	assert.Contains(t, h.args[0], 2.5)
	assert.NotContains(t, h.args[0], wholeEarthKm)
}

func TestRedisLocatorUpsertRejectsBadCoord(t *testing.T) {
	h := &recordingHook{}
	l := newHookedLocator(h)

	var ice *InvalidCoordinateError
	assert.ErrorAs(t, l.Upsert(context.Background(), 3, models.Coord{Lat: 91}), &ice)
	assert.Empty(t, h.args)
}
