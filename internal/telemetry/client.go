package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of outbound backend requests",
		},
		[]string{"code", "method"},
	)

	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Outbound backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Bearer token refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"breaker"},
	)
)

// Transport wraps next with outbound request metrics. A nil next uses
// http.DefaultTransport.
func Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(backendRequestsTotal,
		promhttp.InstrumentRoundTripperDuration(backendRequestDuration, next))
}

func RecordRefresh(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	tokenRefreshes.WithLabelValues(outcome).Inc()
}

func RecordBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}
