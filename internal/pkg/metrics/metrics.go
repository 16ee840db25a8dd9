package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "localshop",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "localshop",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "localshop",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Geocoding metrics
	GeocodeProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "localshop",
		Subsystem: "geocode",
		Name:      "provider_requests_total",
		Help:      "Geocoding provider calls by operation and outcome",
	}, []string{"provider", "operation", "outcome"})

	GeocodeProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "localshop",
		Subsystem: "geocode",
		Name:      "provider_request_duration_seconds",
		Help:      "Latency of geocoding provider calls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	}, []string{"provider", "operation"})

	GeocodeResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "localshop",
		Subsystem: "geocode",
		Name:      "resolutions_total",
		Help:      "Resolver outcomes: cached, resolved, failed, rate_limited",
	}, []string{"operation", "outcome"})

	RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "localshop",
		Subsystem: "ratelimit",
		Name:      "denials_total",
		Help:      "Admissions denied by the geocoding rate limiter",
	}, []string{"operation"})

	// Search metrics
	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "localshop",
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Shop searches by answering branch",
	}, []string{"mode"})

	SearchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "localshop",
		Subsystem: "search",
		Name:      "text_fallbacks_total",
		Help:      "Searches that degraded from geocoding to tokenized text matching",
	})

	ShopEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "localshop",
		Subsystem: "events",
		Name:      "shop_events_total",
		Help:      "Shop events published or consumed",
	}, []string{"direction", "type"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "localshop",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "localshop",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "localshop",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "localshop",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "localshop",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "localshop",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
func UpdateDBPoolMetrics(stat interface{}) {
	// Structural match keeps pgxpool out of this package.
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
