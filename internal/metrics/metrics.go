package metrics

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
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_operations_total",
			Help: "Order commands by outcome",
		},
		[]string{"operation", "status"},
	)

	orderOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_order_operation_duration_seconds",
			Help:    "Duration of order commands including the transaction",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Committed order status transitions",
		},
		[]string{"from", "to"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_notifications_total",
			Help: "Notification sends by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	paymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payment_callbacks_total",
			Help: "Gateway callbacks by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// PrometheusMiddleware records request count and latency per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func RecordOrderOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}

func RecordTransition(from, to string) {
	orderTransitions.WithLabelValues(from, to).Inc()
}

func RecordNotification(kind string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	notifications.WithLabelValues(kind, outcome).Inc()
}

// RecordDroppedNotification counts messages refused by a full queue.
func RecordDroppedNotification(kind string) {
	notifications.WithLabelValues(kind, "dropped").Inc()
}

func RecordPaymentCallback(kind, outcome string) {
	paymentCallbacks.WithLabelValues(kind, outcome).Inc()
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveOperation records the elapsed time under the order operation name.
func (t *Timer) ObserveOperation(operation string) {
	orderOperationDuration.WithLabelValues(operation).Observe(t.Duration().Seconds())
}
