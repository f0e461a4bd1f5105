package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec
	HTTPActiveRequests  prometheus.Gauge

	// Rate limiting metrics
	RateLimitExceededTotal *prometheus.CounterVec

	// Redis metrics
	RedisOperationDuration *prometheus.HistogramVec
	RedisOperationsTotal   *prometheus.CounterVec

	// Realtime metrics
	RealtimeConnections prometheus.Gauge
	RealtimeEventsTotal *prometheus.CounterVec

	// Domain metrics
	MessagesPersistedTotal *prometheus.CounterVec
	NotificationsTotal     *prometheus.CounterVec
	OTPIssuedTotal         *prometheus.CounterVec
	OTPVerificationsTotal  *prometheus.CounterVec
	PostsCreatedTotal      prometheus.Counter
	FollowsTotal           *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveRequests: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "http_active_requests",
					Help: "Number of requests currently being served",
				},
			),

			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"scope", "backend"},
			),

			RedisOperationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "redis_operation_duration_seconds",
					Help:    "Redis operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation"},
			),
			RedisOperationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "redis_operations_total",
					Help: "Total number of Redis operations",
				},
				[]string{"operation", "status"},
			),

			RealtimeConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "realtime_connections_active",
					Help: "Number of open WebSocket connections",
				},
			),
			RealtimeEventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "realtime_events_total",
					Help: "WebSocket events by direction and type",
				},
				[]string{"direction", "type"},
			),

			MessagesPersistedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "messages_persisted_total",
					Help: "Messages written to the store",
				},
				[]string{"message_type"},
			),
			NotificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_total",
					Help: "Notification attempts by type and outcome (created or suppressed)",
				},
				[]string{"type", "outcome"},
			),
			OTPIssuedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "otp_issued_total",
					Help: "One-time codes issued",
				},
				[]string{"purpose"},
			),
			OTPVerificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "otp_verifications_total",
					Help: "One-time code verification attempts",
				},
				[]string{"purpose", "result"},
			),
			PostsCreatedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "posts_created_total",
					Help: "Posts created",
				},
			),
			FollowsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "follows_total",
					Help: "Follow graph changes",
				},
				[]string{"action"},
			),

			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}

// RegisterDBStats exposes connection pool stats for db.
func RegisterDBStats(db *sql.DB, name string) error {
	return prometheus.Register(collectors.NewDBStatsCollector(db, name))
}

func RecordRateLimitExceeded(scope, backend string) {
	Get().RateLimitExceededTotal.WithLabelValues(scope, backend).Inc()
}

func RecordRedisOperation(operation string, duration time.Duration, err error) {
	m := Get()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RedisOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.RedisOperationsTotal.WithLabelValues(operation, status).Inc()
}

func RecordRealtimeEvent(direction, eventType string) {
	Get().RealtimeEventsTotal.WithLabelValues(direction, eventType).Inc()
}

func RecordMessagePersisted(messageType string) {
	Get().MessagesPersistedTotal.WithLabelValues(messageType).Inc()
}

func RecordNotification(notificationType string, created bool) {
	outcome := "created"
	if !created {
		outcome = "suppressed"
	}
	Get().NotificationsTotal.WithLabelValues(notificationType, outcome).Inc()
}

func RecordOTPIssued(purpose string) {
	Get().OTPIssuedTotal.WithLabelValues(purpose).Inc()
}

func RecordOTPVerification(purpose, result string) {
	Get().OTPVerificationsTotal.WithLabelValues(purpose, result).Inc()
}

func RecordPostCreated() {
	Get().PostsCreatedTotal.Inc()
}

func RecordFollow(action string) {
	Get().FollowsTotal.WithLabelValues(action).Inc()
}

// RecordError counts an error by type and route.
func RecordError(errorType, endpoint string) {
	Get().ErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}
