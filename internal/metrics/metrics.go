package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrolink_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agrolink_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrolink_users_registered_total",
			Help: "Total users registered",
		},
		[]string{"role"},
	)

	// Chat metrics
	ChatConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agrolink_chat_connections",
			Help: "Currently connected chat sessions",
		},
	)

	ChatRoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agrolink_chat_rooms_active",
			Help: "Rooms with at least one joined connection",
		},
	)

	RoomJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrolink_chat_room_joins_total",
			Help: "join_room events by result",
		},
		[]string{"result"}, // joined, forbidden, invalid
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrolink_chat_messages_total",
			Help: "Chat messages handled by outcome",
		},
		[]string{"outcome"}, // persisted, broadcast_only, rejected, persist_failed, rate_limited
	)

	BroadcastDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agrolink_chat_broadcast_deliveries_total",
			Help: "Events queued to room members",
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agrolink_chat_broadcast_dropped_total",
			Help: "Events dropped because a connection outbox was full",
		},
	)

	RelayEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrolink_chat_relay_events_total",
			Help: "Cross-instance relay events",
		},
		[]string{"direction"}, // published, received
	)

	ConversationBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agrolink_chat_conversation_build_seconds",
			Help:    "Time to build a user's conversation list",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrolink_rate_limit_hits_total",
			Help: "Total rate limit hits by rule",
		},
		[]string{"rule"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrolink_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agrolink_store_latency_seconds",
			Help:    "Message store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
		[]string{"backend", "op"},
	)
)
