package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gardenrelay"

// Attempt results for UpstreamAttempts.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Registry holds all Prometheus metrics for the relay on a private registry,
// so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	UpstreamConnected   prometheus.Gauge
	UpstreamAttempts    *prometheus.CounterVec
	SnapshotUpdates     prometheus.Counter
	MalformedMessages   prometheus.Counter
	LastUpdateTimestamp prometheus.Gauge
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// NewRegistry creates and registers every relay metric plus the Go and
// process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		UpstreamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_connected",
			Help:      "1 while the upstream link is healthy, 0 otherwise",
		}),
		UpstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream connection or poll attempts by source and result",
		}, []string{"source", "result"}),
		SnapshotUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_updates_total",
			Help:      "Successful snapshot writes from upstream payloads",
		}),
		MalformedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_messages_total",
			Help:      "Upstream payloads skipped because they could not be parsed",
		}),
		LastUpdateTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last successful snapshot write",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"route"}),
	}

	r.reg.MustRegister(
		r.UpstreamConnected,
		r.UpstreamAttempts,
		r.SnapshotUpdates,
		r.MalformedMessages,
		r.LastUpdateTimestamp,
		r.HTTPRequests,
		r.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// SnapshotUpdated records a successful write.
func (r *Registry) SnapshotUpdated(at time.Time) {
	r.SnapshotUpdates.Inc()
	r.LastUpdateTimestamp.Set(float64(at.UnixNano()) / 1e9)
}

// MalformedMessage records a skipped payload.
func (r *Registry) MalformedMessage() {
	r.MalformedMessages.Inc()
}

// Attempt records the outcome of one connect or poll.
func (r *Registry) Attempt(source string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.UpstreamAttempts.WithLabelValues(source, result).Inc()
}

// SetConnected mirrors the snapshot's connectivity flag.
func (r *Registry) SetConnected(connected bool) {
	if connected {
		r.UpstreamConnected.Set(1)
		return
	}
	r.UpstreamConnected.Set(0)
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(route string, code int, d time.Duration) {
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
