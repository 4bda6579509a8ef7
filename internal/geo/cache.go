package geo

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/delivery-dispatch/internal/clock"
	"github.com/example/delivery-dispatch/internal/models"
)

// RouteCache is a small in-memory TTL cache for route lookups keyed by a
// coordinate pair rounded to ~10m.
type RouteCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	clock clock.Clock
}

type cacheEntry struct {
	v  Route
	ts time.Time
}

func NewRouteCache(ttl time.Duration, clk clock.Clock) *RouteCache {
	if clk == nil {
		clk = clock.Real{}
	}
	return &RouteCache{store: make(map[string]cacheEntry), ttl: ttl, clock: clk}
}

func keyFor(a, b models.Coord) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coord) string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Get returns the cached route if present and not expired.
func (c *RouteCache) Get(a, b models.Coord) (Route, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return Route{}, false
	}
	if c.clock.Now().Sub(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return Route{}, false
	}
	return e.v, true
}

func (c *RouteCache) Set(a, b models.Coord, r Route) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: r, ts: c.clock.Now()}
	c.mu.Unlock()
}
