package geo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/example/delivery-dispatch/internal/models"
)

// Place is a geocoded address.
type Place struct {
	Coord   models.Coord `json:"coord"`
	Address string       `json:"address"`
}

// Route is a road route between two points.
type Route struct {
	Km      float64 `json:"km"`
	Minutes float64 `json:"minutes"`
}

// Provider resolves addresses and road routes against an external service.
// A false result means NotFound (Geocode) or Unavailable (Route); transport
// failures are logged by the provider and never returned.
type Provider interface {
	Geocode(ctx context.Context, address string, proximity *models.Coord) (Place, bool)
	Route(ctx context.Context, origin, dest models.Coord) (Route, bool)
}

// InvalidCoordinateError reports a coordinate outside WGS84 bounds.
type InvalidCoordinateError struct {
	Coord models.Coord
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate (%v, %v)", e.Coord.Lat, e.Coord.Lon)
}

// ValidateCoord rejects NaN, infinite and out-of-range values.
func ValidateCoord(c models.Coord) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) ||
		c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return &InvalidCoordinateError{Coord: c}
	}
	return nil
}

const earthRadiusKm = 6371.0

// Haversine distance in kilometers
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// StraightLineKm is the great-circle distance between a and b rounded to
// cents of a kilometer.
func StraightLineKm(a, b models.Coord) float64 {
	return round(Haversine(a.Lat, a.Lon, b.Lat, b.Lon), 2)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Locator tracks where drivers are and answers proximity queries. In
// Nearby, radiusKm <= 0 searches without a distance bound and limit <= 0
// returns every hit.
type Locator interface {
	Upsert(ctx context.Context, driverID int64, c models.Coord) error
	Nearby(ctx context.Context, c models.Coord, radiusKm float64, limit int) ([]Nearby, error)
}

// Nearby is one locator hit, closest first.
type Nearby struct {
	DriverID   int64        `json:"driver_id"`
	Coord      models.Coord `json:"coord"`
	DistanceKm float64      `json:"distance_km"`
}

// Index is an in-process Locator.
type Index struct {
	mu      sync.RWMutex
	drivers map[int64]models.Coord
}

func NewIndex() *Index {
	return &Index{drivers: make(map[int64]models.Coord)}
}

func (g *Index) Upsert(_ context.Context, driverID int64, c models.Coord) error {
	if err := ValidateCoord(c); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drivers[driverID] = c
	return nil
}

func (g *Index) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.drivers)
}

// naive scan; fine for a single city's fleet
func (g *Index) Nearby(_ context.Context, c models.Coord, radiusKm float64, limit int) ([]Nearby, error) {
	g.mu.RLock()
	out := make([]Nearby, 0, len(g.drivers))
	for id, p := range g.drivers {
		dist := Haversine(c.Lat, c.Lon, p.Lat, p.Lon)
		if radiusKm > 0 && dist > radiusKm {
			continue
		}
		out = append(out, Nearby{DriverID: id, Coord: p, DistanceKm: round(dist, 2)})
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].DriverID < out[j].DriverID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
