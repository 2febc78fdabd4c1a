package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	vouchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchd_requests_total",
		Help: "Total HTTP requests by method, route, and response status.",
	}, []string{"method", "path", "status"})

	vouchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vouchd_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	vouchesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_vouches_created_total",
		Help: "Total vouch records created.",
	})

	vouchesRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchd_vouches_removed_total",
		Help: "Total vouch records soft-deleted, by cause.",
	}, []string{"cause"}) // "delete" or "purge"

	exportDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchd_export_deliveries_total",
		Help: "Total CSV export deliveries by outcome.",
	}, []string{"status"})

	upstreamProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchd_upstream_probes_total",
		Help: "Total upstream health probes by target and result.",
	}, []string{"upstream", "result"})
)

// RecordUpstreamProbe is the health monitor's metrics hook.
func RecordUpstreamProbe(upstream string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	upstreamProbesTotal.WithLabelValues(upstream, result).Inc()
}

// PrometheusMiddleware records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		vouchRequestsTotal.WithLabelValues(method, path, status).Inc()
		vouchRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
