// Package metrics holds the gateway's prometheus collectors. It lives
// outside internal/ so domain code (the auth resolvers, in particular)
// can record against the same counters the HTTP middleware exposes,
// without reaching into an internal package from outside its tree.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// InFlight counts requests currently being served by the gateway.
var InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "blockserver_requests_in_progress",
	Help: "A gauge of requests currently being served by the gateway.",
})

// Requests counts completed requests by status code and method.
var Requests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blockserver_http_requests_total",
		Help: "A counter for requests to the gateway.",
	},
	[]string{"code", "method"},
)

// Duration is partitioned by the HTTP method and handler. It uses custom
// buckets based on the expected request duration.
var Duration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blockserver_http_request_duration_seconds",
		Help:    "A histogram of latencies for requests.",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
	},
	[]string{"handler", "method"},
)

// ResponseSize has no labels, making it a zero-dimensional ObserverVec.
var ResponseSize = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blockserver_http_response_size_bytes",
		Help:    "A histogram of response sizes for requests.",
		Buckets: prometheus.ExponentialBuckets(1024, 8, 6),
	},
	[]string{},
)

// RequestSize has no labels, making it a zero-dimensional ObserverVec.
var RequestSize = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blockserver_http_request_size_bytes",
		Help:    "A histogram of request sizes for requests.",
		Buckets: prometheus.ExponentialBuckets(1024, 8, 6),
	},
	[]string{},
)

// HTTPErrors counts error responses written through the request engine's
// writeError, by error taxonomy kind.
var HTTPErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blockserver_http_errors_total",
		Help: "A counter of gateway error responses by kind.",
	},
	[]string{"kind"},
)

// AuthCacheHits counts auth resolver cache lookups by outcome (hit/miss),
// incremented by the remote auth resolver on every Auth/GetUser call made
// while a cache is wired to it.
var AuthCacheHits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blockserver_auth_cache_hits_total",
		Help: "A counter of auth cache lookups by outcome (hit/miss).",
	},
	[]string{"outcome"},
)

// WebsocketConnections counts currently open change-notification connections.
var WebsocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "blockserver_websocket_connections",
	Help: "A gauge of currently open websocket change-notification connections.",
})

// WebsocketConnectionDuration samples how long a websocket connection stayed
// open, from upgrade to close.
var WebsocketConnectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "blockserver_websocket_connection_duration_seconds",
	Help:    "A histogram of websocket change-notification connection lifetimes.",
	Buckets: prometheus.ExponentialBuckets(1, 4, 8),
})

// DBPoolWaitSeconds accumulates time spent retrying an operation against the
// usage ledger after a transient pool-exhaustion error.
var DBPoolWaitSeconds = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "blockserver_db_pool_wait_seconds_total",
	Help: "Total seconds spent retrying usage-ledger operations after transient pool exhaustion.",
})

// Collectors returns every metric this package holds, for wiring into a
// prometheus.Registry at startup.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		InFlight, Requests, Duration, ResponseSize, RequestSize,
		HTTPErrors, AuthCacheHits, WebsocketConnections, WebsocketConnectionDuration,
		DBPoolWaitSeconds,
	}
}
