package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "luxio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "luxio_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "luxio_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	paymentInitiations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "luxio_payment_initiations_total",
			Help: "Payment initiations by method and outcome",
		},
		[]string{"method", "status"},
	)

	authFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "luxio_auth_failures_total",
			Help: "Rejected requests by error code",
		},
		[]string{"code"},
	)
)

// PrometheusMiddleware collects per-route request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)
	}
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordOrderOperation 记录订单操作指标
func RecordOrderOperation(operation string, success bool) {
	orderOperations.WithLabelValues(operation, outcome(success)).Inc()
}

func RecordPaymentInit(method string, success bool) {
	paymentInitiations.WithLabelValues(method, outcome(success)).Inc()
}

func recordAuthFailure(code string) {
	authFailures.WithLabelValues(code).Inc()
}
