package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rdara/mock-collector/internal/build"
)

const (
	defaultNamespace = "mock_collector"
)

const (
	TransportHTTP  = "http"
	TransportHTTPS = "https"
)

// registry is the prometheus registry for mock collector metrics
var registry = prometheus.NewRegistry()

var (
	// BuildInfo provides build information of the mock collector
	BuildInfo = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace:   defaultNamespace,
			Name:        "build_info",
			Help:        "Build information of the mock collector",
			ConstLabels: build.InfoMap(),
		},
	)

	// RequestsTotal counts the agent requests answered, by method and transport
	RequestsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: defaultNamespace,
			Name:      "requests_total",
			Help:      "Total number of agent requests answered by the mock collector.",
		},
		[]string{"method", "transport"},
	)

	// StartsTotal counts collector constructions by the state they ended in
	StartsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: defaultNamespace,
			Name:      "starts_total",
			Help:      "Total number of collector constructions, by resulting state (running or port_conflict).",
		},
		[]string{"state"},
	)

	// ShutdownErrorsTotal counts failures while stopping the listeners
	ShutdownErrorsTotal = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: defaultNamespace,
			Name:      "shutdown_errors_total",
			Help:      "Total number of errors encountered while stopping the collector listeners.",
		},
	)
)

//nolint:gochecknoinits // Runtime collectors belong to the same registry as the collector metrics.
func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	BuildInfo.Set(1)
}

// Registry returns the gatherer backing the /metrics endpoint.
func Registry() prometheus.Gatherer {
	return registry
}

// RecordRequest counts one answered request.
func RecordRequest(method, transport string) {
	RequestsTotal.WithLabelValues(method, transport).Inc()
}

func RecordStart(state string) {
	StartsTotal.WithLabelValues(state).Inc()
}
