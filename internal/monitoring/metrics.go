package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns the service's Prometheus registry: HTTP request
// metrics plus scan pipeline counters.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeConnections   prometheus.Gauge

	scansTotal         *prometheus.CounterVec
	scanDuration       *prometheus.HistogramVec
	pagesTotal         *prometheus.CounterVec
	opportunitiesTotal prometheus.Counter
}

func NewMetricsCollector(serviceName string) *MetricsCollector {
	// Sanitize service name for Prometheus (replace hyphens with underscores)
	name := strings.ReplaceAll(serviceName, "-", "_")

	mc := &MetricsCollector{
		serviceName: name,
		registry:    prometheus.NewRegistry(),
	}

	mc.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	mc.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	mc.activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: name + "_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	mc.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_scans_total",
			Help: "Scans run, by outcome",
		},
		[]string{"outcome"},
	)
	mc.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name + "_scan_duration_seconds",
			Help:    "Wall time of a scan, by outcome",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)
	mc.pagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_pages_total",
			Help: "Candidate pages examined, by outcome",
		},
		[]string{"outcome"},
	)
	mc.opportunitiesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: name + "_opportunities_total",
			Help: "Link opportunities reported",
		},
	)

	mc.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		mc.httpRequestsTotal,
		mc.httpRequestDuration,
		mc.activeConnections,
		mc.scansTotal,
		mc.scanDuration,
		mc.pagesTotal,
		mc.opportunitiesTotal,
	)

	return mc
}

// Registry exposes the underlying registry, mainly for tests.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// MetricsMiddleware returns middleware that collects HTTP metrics
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		mc.activeConnections.Inc()
		defer mc.activeConnections.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		mc.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		mc.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	handler := promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

func (mc *MetricsCollector) ScanFinished(outcome string, duration time.Duration) {
	mc.scansTotal.WithLabelValues(outcome).Inc()
	mc.scanDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (mc *MetricsCollector) PageExamined(outcome string) {
	mc.pagesTotal.WithLabelValues(outcome).Inc()
}

func (mc *MetricsCollector) OpportunitiesFound(n int) {
	mc.opportunitiesTotal.Add(float64(n))
}
