package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections_active",
			Help: "Open websocket connections",
		},
	)

	UsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_users_online",
			Help: "Users with at least one bound connection",
		},
	)

	SlowConsumerDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_slow_consumer_drops_total",
			Help: "Connections closed because their send buffer was full",
		},
	)

	// Event metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_received_total",
			Help: "Inbound websocket events",
		},
		[]string{"event"},
	)

	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages stored",
		},
		[]string{"kind"}, // "private" or "group"
	)

	MessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_failed_total",
			Help: "Messages rejected or not stored",
		},
		[]string{"reason"},
	)

	CallsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_calls_ended_total",
			Help: "Pairwise calls ended, by reason",
		},
		[]string{"reason"}, // "missed", "rejected" or "unspecified"
	)

	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_signals_relayed_total",
			Help: "Call signaling events forwarded",
		},
		[]string{"event"},
	)

	// Infrastructure metrics
	PersistLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_persist_latency_seconds",
			Help:    "Message store latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)
