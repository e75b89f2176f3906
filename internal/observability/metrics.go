package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_search", Name: "searches_total", Help: "Backend search requests issued, by kind (reset or page)"},
		[]string{"kind"},
	)
	StaleResponsesDropped = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_search", Name: "stale_responses_dropped_total", Help: "Search responses discarded because their session version was superseded"})
	TransportFailures     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_search", Name: "transport_failures_total", Help: "Search requests that failed at the transport level"})

	AutocompleteQueries   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_search", Name: "autocomplete_queries_total", Help: "City autocomplete queries issued after debouncing"})
	AutocompleteCacheHits = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_search", Name: "autocomplete_cache_hits_total", Help: "City autocomplete queries served from cache"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_search", Name: "sessions_active", Help: "Search sessions currently open"})
	WSConnections  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_search", Name: "ws_connections", Help: "WebSocket connections currently pushing session updates"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_search", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_search",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
