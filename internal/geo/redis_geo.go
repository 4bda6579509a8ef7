package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/delivery-dispatch/internal/models"
)

// RedisLocator implements Locator using Redis GEO commands. It lets the
// HTTP server and the location consumer share one driver index.
type RedisLocator struct {
	client *redis.Client
	key    string
}

// wholeEarthKm exceeds the longest great-circle distance on Redis' sphere,
// so a search with it is unbounded.
const wholeEarthKm = 20040.0

func NewRedisLocator(client *redis.Client, key string) *RedisLocator {
	return &RedisLocator{client: client, key: key}
}

func (r *RedisLocator) Upsert(ctx context.Context, driverID int64, c models.Coord) error {
	if err := ValidateCoord(c); err != nil {
		return err
	}
	name := strconv.FormatInt(driverID, 10)
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: c.Lon, Latitude: c.Lat, Name: name}).Err(); err != nil {
		return fmt.Errorf("geoadd driver %d: %w", driverID, err)
	}
	// metadata is informational; a failure here does not undo the position
	_ = r.client.HSet(ctx, metaKey(name), "updated", time.Now().UTC().Format(time.RFC3339)).Err()
	return nil
}

func (r *RedisLocator) Nearby(ctx context.Context, c models.Coord, radiusKm float64, limit int) ([]Nearby, error) {
	if radiusKm <= 0 {
		radiusKm = wholeEarthKm
	}
	res, err := r.client.GeoRadius(ctx, r.key, c.Lon, c.Lat, &redis.GeoRadiusQuery{
		Radius: radiusKm, Unit: "km", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius: %w", err)
	}
	out := make([]Nearby, 0, len(res))
	for _, g := range res {
		id, err := strconv.ParseInt(g.Name, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Nearby{
			DriverID:   id,
			Coord:      models.Coord{Lat: g.Latitude, Lon: g.Longitude},
			DistanceKm: round(g.Dist, 2),
		})
	}
	return out, nil
}

func metaKey(name string) string { return "driver:meta:" + name }
