// Package metrics exposes Prometheus counters and histograms for the login
// and registration flows, following the same promauto-over-a-private-
// registry shape used throughout this module's corpus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "verdant"

// Registry is this module's private Prometheus registry, so importing the
// package never pollutes prometheus.DefaultRegisterer in a host process.
var Registry = prometheus.NewRegistry()

var (
	// LoginAttempts counts login attempts by outcome: success,
	// unauthorized, password_reset, unknown_server.
	LoginAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "attempts_total",
			Help:      "Total number of login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RegistrationsCompleted counts successful registrations.
	RegistrationsCompleted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "completed_total",
			Help:      "Total number of completed registrations",
		},
	)

	// SessionsActive tracks the number of in-flight server login sessions.
	SessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of in-flight server-side login sessions",
		},
	)

	// SessionsExpired counts sessions removed by the TTL sweep without
	// ever being finalized.
	SessionsExpired = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "expired_total",
			Help:      "Total number of login sessions that expired before completion",
		},
	)

	// HandshakeDuration tracks the wall-clock time of each protocol
	// phase, labeled by phase name (start, finish).
	HandshakeDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "duration_seconds",
			Help:      "Duration of each login handshake phase",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"phase"},
	)
)

// Handler returns the HTTP handler serving this registry's metrics, for
// mounting at the configured MetricsConfig.Path.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
