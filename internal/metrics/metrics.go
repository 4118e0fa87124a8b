// Package metrics exposes Prometheus collectors for the scan service.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal       *prometheus.CounterVec
	fetchBytesTotal          *prometheus.CounterVec
	fallbackTotal            *prometheus.CounterVec
	blockedOriginsGauge      prometheus.Gauge
	sourceObservationsTotal  *prometheus.CounterVec
	sourceDurationSeconds    *prometheus.HistogramVec
	entitiesDiscoveredGauge  prometheus.Gauge
	runsTotal                *prometheus.CounterVec
	throttleDelaySecondsHist prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfold_fetch_attempts_total",
				Help: "Total fetch attempts, labeled by origin and outcome.",
			},
			[]string{"origin", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfold_fetch_bytes_total",
				Help: "Total bytes retrieved, labeled by origin.",
			},
			[]string{"origin"},
		)

		fallbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfold_fallback_total",
				Help: "Total fallback retrievals, labeled by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		blockedOriginsGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalfold_blocked_origins",
				Help: "Number of origins currently marked as blocked.",
			},
		)

		sourceObservationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfold_source_observations_total",
				Help: "Raw observations collected, labeled by source.",
			},
			[]string{"source"},
		)

		sourceDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalfold_source_duration_seconds",
				Help:    "Histogram of per-source collection latencies.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		)

		entitiesDiscoveredGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalfold_entities_discovered",
				Help: "Distinct entities produced by the most recent fold.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalfold_runs_total",
				Help: "Total scan runs, labeled by status.",
			},
			[]string{"status"},
		)

		throttleDelaySecondsHist = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signalfold_throttle_delay_seconds",
				Help:    "Histogram of request throttle wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// SanitizeOrigin sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeOrigin(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch increments the fetch counters for one attempt.
func ObserveFetch(rawURL, outcome string, bytesFetched int) {
	origin := SanitizeOrigin(rawURL)
	fetchAttemptsTotal.WithLabelValues(origin, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(origin).Add(float64(bytesFetched))
	}
}

// ObserveFallback increments the fallback counter for one strategy call.
func ObserveFallback(strategy, outcome string) {
	fallbackTotal.WithLabelValues(strategy, outcome).Inc()
}

// SetBlockedOrigins records the current size of the blocked-origin registry.
func SetBlockedOrigins(n int) {
	blockedOriginsGauge.Set(float64(n))
}

// ObserveSource records one adapter pass.
func ObserveSource(source string, observations int, duration time.Duration) {
	sourceObservationsTotal.WithLabelValues(source).Add(float64(observations))
	sourceDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// SetEntitiesDiscovered records the entity count from the latest fold.
func SetEntitiesDiscovered(n int) {
	entitiesDiscoveredGauge.Set(float64(n))
}

// ObserveRun increments the run counter for the given status.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveThrottleDelay records the duration of a throttle wait.
func ObserveThrottleDelay(duration time.Duration) {
	throttleDelaySecondsHist.Observe(duration.Seconds())
}
