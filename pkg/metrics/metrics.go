// Package metrics exports connection manager activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
)

const namespace = "dbclient"

// Observer implements datasource.Observer with Prometheus collectors.
type Observer struct {
	registry *prometheus.Registry

	activeConnections prometheus.Gauge
	connectAttempts   *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
	queryErrors       *prometheus.CounterVec
}

var _ datasource.Observer = (*Observer)(nil)

// NewObserver creates an Observer with its own registry, which also carries
// the Go runtime and process collectors.
func NewObserver() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of registered database connections",
		}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connect calls by engine and result",
		}, []string{"engine", "result"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine", "status"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Failed queries by engine and error kind",
		}, []string{"engine", "kind"}),
	}

	o.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		o.activeConnections,
		o.connectAttempts,
		o.queryDuration,
		o.queryErrors,
	)
	return o
}

func (o *Observer) ConnectAttempt(engine datasource.EngineKind, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	o.connectAttempts.WithLabelValues(string(engine), result).Inc()
}

func (o *Observer) ConnectionsChanged(active int) {
	o.activeConnections.Set(float64(active))
}

func (o *Observer) QueryCompleted(engine datasource.EngineKind, duration time.Duration, kind apperrors.Kind) {
	status := "ok"
	if kind != "" {
		status = "error"
		o.queryErrors.WithLabelValues(string(engine), string(kind)).Inc()
	}
	o.queryDuration.WithLabelValues(string(engine), status).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}

// RegisterRoutes mounts GET /metrics.
func (o *Observer) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /metrics", o.Handler())
}
