package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rallypoint_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rallypoint_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rallypoint_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rallypoint_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rallypoint_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// InvitationTransitionsTotal counts invitation state transitions by kind and outcome.
	InvitationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rallypoint_invitation_transitions_total",
		Help: "Total invitation state transitions by kind and outcome",
	}, []string{"kind", "outcome"})

	// UpstreamCallLatency records latency of external service calls.
	UpstreamCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rallypoint_upstream_call_latency_seconds",
		Help:    "External service call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "operation"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}

// RecordWebSocketEvent increments the WebSocket events counter for the event type.
func RecordWebSocketEvent(eventType string) {
	WebSocketEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordBackpressureDrop increments the backpressure drop counter.
func RecordBackpressureDrop(hub, reason string) {
	WebSocketBackpressureDrops.WithLabelValues(hub, reason).Inc()
}

// RecordInvitationTransition increments the invitation transition counter.
func RecordInvitationTransition(kind, outcome string) {
	InvitationTransitionsTotal.WithLabelValues(kind, outcome).Inc()
}

// TrackUpstreamCall returns a function that records upstream call latency when called.
func TrackUpstreamCall(service, operation string) func() {
	start := time.Now()
	return func() {
		UpstreamCallLatency.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
	}
}
