package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisepal_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wisepal_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wisepal_users_registered_total",
			Help: "Total users registered",
		},
	)

	ChatExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisepal_chat_exchanges_total",
			Help: "Chat exchanges by outcome",
		},
		[]string{"outcome"}, // "ok", "unavailable", "ai_error", "store_error"
	)

	// AI provider
	AIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wisepal_ai_request_duration_seconds",
			Help:    "Latency of completion calls to the AI provider",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60},
		},
	)
)
