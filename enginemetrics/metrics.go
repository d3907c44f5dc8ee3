// Package enginemetrics exposes the engine's Prometheus metrics, adapted
// from the teacher's runtime/metrics/prometheus exporter: package-level
// collectors registered into a prometheus.Registry, served at /metrics.
package enginemetrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace                = "ruleflow"
	defaultReadHeaderTimeout = 10 * time.Second
)

// FilteredOutMessages counts messages dropped by the `drop_message`
// built-in (spec.md §6, §8 scenario 4).
var FilteredOutMessages = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "filtered_out_messages_total",
	Help:      "Total number of messages dropped via filterOut",
})

// ReloadsTotal counts completed reloads, by outcome.
var ReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "reloads_total",
	Help:      "Total number of program reloads",
}, []string{"status"}) // status: success, error

// ReloadDuration histograms how long a reload took to rebuild and publish.
var ReloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "reload_duration_seconds",
	Help:      "Duration of program reloads in seconds",
	Buckets:   prometheus.DefBuckets,
})

// EvaluationErrorsTotal counts contained EvaluationErrors, by phase.
var EvaluationErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "evaluation_errors_total",
	Help:      "Total number of contained rule evaluation errors",
}, []string{"phase"}) // phase: predicate, action

// StageSlicesTotal counts stage slices executed.
var StageSlicesTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "stage_slices_total",
	Help:      "Total number of stage slices executed",
})

var allMetrics = []prometheus.Collector{
	FilteredOutMessages,
	ReloadsTotal,
	ReloadDuration,
	EvaluationErrorsTotal,
	StageSlicesTotal,
}

// Exporter serves the engine's Prometheus metrics over HTTP.
type Exporter struct {
	addr     string
	server   *http.Server
	registry *prometheus.Registry
	mu       sync.Mutex
	started  bool
}

// NewExporter creates an Exporter serving metrics at addr.
func NewExporter(addr string) *Exporter {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Exporter{addr: addr, registry: reg}
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Start serves /metrics and /health. Blocks until Shutdown or an error.
func (e *Exporter) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	e.server = &http.Server{Addr: e.addr, Handler: mux, ReadHeaderTimeout: defaultReadHeaderTimeout}
	e.started = true
	e.mu.Unlock()
	return e.server.ListenAndServe()
}

// Shutdown gracefully stops the exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server == nil || !e.started {
		return nil
	}
	e.started = false
	return e.server.Shutdown(ctx)
}
