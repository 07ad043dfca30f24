package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fibermap/internal/domain"
	"fibermap/internal/topology"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	mutations           *prometheus.CounterVec
	elements            *prometheus.GaugeVec
	utilization         *prometheus.GaugeVec
	revision            prometheus.Gauge
	sseClients          prometheus.Gauge
}

// New creates a fresh Metrics registry with HTTP and topology metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fibermap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fibermap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fibermap",
		Name:      "mutations_total",
		Help:      "Topology mutations by operation and outcome code",
	}, []string{"op", "result"})

	elements := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fibermap",
		Name:      "elements",
		Help:      "Number of topology elements by kind and status",
	}, []string{"kind", "status"})

	utilization := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fibermap",
		Name:      "capacity_utilization_ratio",
		Help:      "Used over declared capacity for each capacity-bearing element",
	}, []string{"id", "kind"})

	revision := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fibermap",
		Name:      "topology_revision",
		Help:      "Revision of the committed topology",
	})

	sseClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fibermap",
		Name:      "sse_clients",
		Help:      "Connected server-sent-event clients",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		mutations,
		elements,
		utilization,
		revision,
		sseClients,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		mutations:           mutations,
		elements:            elements,
		utilization:         utilization,
		revision:            revision,
		sseClients:          sseClients,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveMutation counts one mutation attempt; result is "ok" or the
// domain error code.
func (m *Metrics) ObserveMutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = domain.Code(err)
	}
	m.mutations.WithLabelValues(op, result).Inc()
}

// RecordTopology replaces the element and utilisation gauges with the state
// of reg.
func (m *Metrics) RecordTopology(reg *topology.Registry) {
	if m == nil {
		return
	}
	m.elements.Reset()
	for _, kind := range domain.Kinds() {
		for _, status := range []domain.Status{domain.StatusActive, domain.StatusInactive, domain.StatusMaintenance, domain.StatusOpen, domain.StatusResolved} {
			if status.AllowedFor(kind) {
				m.elements.WithLabelValues(string(kind), string(status)).Set(0)
			}
		}
	}
	for _, el := range reg.List("") {
		base := el.Common()
		m.elements.WithLabelValues(string(base.Kind), string(base.Status)).Inc()
	}

	m.utilization.Reset()
	for _, u := range reg.Utilization() {
		ratio := 0.0
		if u.Capacity > 0 {
			ratio = float64(u.Used) / float64(u.Capacity)
		}
		m.utilization.WithLabelValues(u.ID, string(u.Kind)).Set(ratio)
	}

	m.revision.Set(float64(reg.Revision()))
}

// SetSSEClients records the number of connected event-stream clients.
func (m *Metrics) SetSSEClients(n int) {
	if m == nil {
		return
	}
	m.sseClients.Set(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
