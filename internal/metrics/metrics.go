package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LikeToggles     *prometheus.CounterVec
	UploadBytes     prometheus.Counter
	ProbeCache      *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapreel",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "snapreel",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LikeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapreel",
			Name:      "like_toggles_total",
			Help:      "Like toggles by resulting state.",
		}, []string{"result"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snapreel",
			Name:      "media_upload_bytes_total",
			Help:      "Bytes written to object storage.",
		}),
		ProbeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapreel",
			Name:      "probe_cache_lookups_total",
			Help:      "Media probe cache lookups by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.LikeToggles,
		m.UploadBytes,
		m.ProbeCache,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveLike records the outcome of a like toggle.
func (m *Metrics) ObserveLike(liked bool) {
	if m == nil {
		return
	}
	result := "unliked"
	if liked {
		result = "liked"
	}
	m.LikeToggles.WithLabelValues(result).Inc()
}

// ObserveUpload adds n uploaded bytes.
func (m *Metrics) ObserveUpload(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.UploadBytes.Add(float64(n))
}

// ObserveProbeCache counts a cache hit or miss.
func (m *Metrics) ObserveProbeCache(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.ProbeCache.WithLabelValues(outcome).Inc()
}
