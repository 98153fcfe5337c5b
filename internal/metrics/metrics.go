package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	SearchesTotal    *prometheus.CounterVec
	SearchDuration   *prometheus.HistogramVec
	SearchesInFlight prometheus.Gauge

	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	RetriesTotal         *prometheus.CounterVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	StaleServedTotal prometheus.Counter

	RateLimitRejectionsTotal *prometheus.CounterVec

	CircuitState       *prometheus.GaugeVec
	CircuitTransitions *prometheus.CounterVec

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		SearchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_explorer_searches_total",
				Help: "Total number of search requests by provenance and status",
			},
			[]string{"provider", "provenance", "status"},
		),
		SearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "video_explorer_search_duration_seconds",
				Help:    "End-to-end search duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),
		SearchesInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "video_explorer_searches_in_flight",
				Help: "Number of searches currently being processed",
			},
		),

		ProviderCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_explorer_provider_calls_total",
				Help: "Total number of live provider API calls",
			},
			[]string{"provider", "status"},
		),
		ProviderCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "video_explorer_provider_call_duration_seconds",
				Help:    "Provider API call duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),
		RetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_explorer_retries_total",
				Help: "Total number of transient-failure retries",
			},
			[]string{"provider"},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "video_explorer_cache_hits_total",
				Help: "Total number of fresh cache hits",
			},
		),
		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "video_explorer_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),
		StaleServedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "video_explorer_cache_stale_served_total",
				Help: "Total number of stale entries served as fallback",
			},
		),

		RateLimitRejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_explorer_rate_limit_rejections_total",
				Help: "Total number of admissions rejected by the rate limiter",
			},
			[]string{"provider"},
		),

		CircuitState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "video_explorer_circuit_state",
				Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"provider"},
		),
		CircuitTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_explorer_circuit_transitions_total",
				Help: "Total number of circuit breaker transitions",
			},
			[]string{"provider", "to"},
		),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_explorer_requests_total",
				Help: "Total number of frontend requests by type and status",
			},
			[]string{"type", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "video_explorer_request_duration_seconds",
				Help:    "Frontend request handling duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"type"},
		),
	}

	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordSearch(provider, provenance, status string, duration time.Duration) {
	m.SearchesTotal.WithLabelValues(provider, provenance, status).Inc()
	m.SearchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordProviderCall(provider, status string, duration time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(provider, status).Inc()
	m.ProviderCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordRetry(provider string) {
	m.RetriesTotal.WithLabelValues(provider).Inc()
}

func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordStaleServed() {
	m.StaleServedTotal.Inc()
}

func (m *Metrics) RecordRateLimitRejection(provider string) {
	m.RateLimitRejectionsTotal.WithLabelValues(provider).Inc()
}

func (m *Metrics) SetCircuitState(provider, state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	m.CircuitState.WithLabelValues(provider).Set(v)
}

func (m *Metrics) RecordCircuitTransition(provider, to string) {
	m.CircuitTransitions.WithLabelValues(provider, to).Inc()
}

func (m *Metrics) RecordRequest(reqType, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(reqType, status).Inc()
	m.RequestDuration.WithLabelValues(reqType).Observe(duration.Seconds())
}

func (m *Metrics) IncSearchesInFlight() {
	m.SearchesInFlight.Inc()
}

func (m *Metrics) DecSearchesInFlight() {
	m.SearchesInFlight.Dec()
}
