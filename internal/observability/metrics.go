package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jammer_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// JamSearchQueries counts proximity searches by execution path, so the
	// optimized/fallback split shows up on dashboards.
	JamSearchQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jammer_jam_search_queries_total",
		Help: "Total jam proximity searches by execution path (db or memory)",
	}, []string{"path"})

	// MessageThroughput counts chat messages processed per room type.
	MessageThroughput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jammer_message_throughput_total",
		Help: "Total number of chat messages processed",
	}, []string{"room_type"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jammer_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client's
	// send buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jammer_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ConnectionEvents counts connection lifecycle transitions.
	ConnectionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jammer_connection_events_total",
		Help: "Total connection lifecycle events by kind",
	}, []string{"event"})
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
