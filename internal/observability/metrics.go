package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "delivery_dispatch"

var (
	OrdersPlaced    = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "orders_placed_total", Help: "Orders created from restaurant pages"})
	OrdersCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "orders_completed_total", Help: "Orders delivered"})
	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "orders_cancelled_total", Help: "Orders cancelled"})
	PlatformProfit  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "platform_profit_total", Help: "Platform profit booked, in currency units"})

	DriverFirstLocations = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "driver_first_locations_total", Help: "Drivers whose stored record received its first position"})

	GeoRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "geo_requests_total", Help: "Geocoding and routing calls by provider, op and outcome"},
		[]string{"provider", "op", "outcome"},
	)
	GeoFallbacks    = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "geo_route_fallbacks_total", Help: "Trips priced on great-circle distance"})
	RouteCacheHits  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "route_cache_hits_total", Help: "Route lookups served from cache"})
	GeoLatency      = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geo_latency_seconds", Help: "External geo call latency"})
	StoreRecoveries = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "store_recoveries_total", Help: "Times the state document was reinitialized after a read failure"})
	StoreFlushErrs  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "store_flush_errors_total", Help: "Failed state document writes"})

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_total", Help: "Customer notifications by kind and outcome"},
		[]string{"kind", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
