package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the evaluator with query-count and latency
// observability. Metrics are registered against an injected registerer
// rather than the package-global default, so multiple evaluators in one
// process (or in tests) never collide on metric names.
type Metrics struct {
	queries *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics registers the evaluator's metrics against reg and returns a
// ready-to-use Metrics. reg is typically a dedicated *prometheus.Registry
// rather than prometheus.DefaultRegisterer, so tests can construct one
// per case without global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerquery_queries_total",
			Help: "Total number of queries evaluated, by kind and result.",
		}, []string{"kind", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgerquery_evaluation_seconds",
			Help:    "Query evaluation latency in seconds, by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	reg.MustRegister(m.queries, m.latency)
	return m
}

// startTimer returns the current time, or the zero Time if m is nil. A
// nil *Metrics disables instrumentation entirely rather than forcing
// every caller to guard against it (Evaluator accepts nil metrics).
func (m *Metrics) startTimer() time.Time {
	if m == nil {
		return time.Time{}
	}
	return time.Now()
}

// observe records one evaluation of kind that started at start and
// finished with err (nil on success). No-op if m is nil or start is the
// zero Time (i.e. timing was never started).
func (m *Metrics) observe(kind QueryKind, start time.Time, err error) {
	if m == nil || start.IsZero() {
		return
	}
	label := kind.String()
	if label == "" {
		label = "unknown"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.queries.WithLabelValues(label, result).Inc()
	m.latency.WithLabelValues(label).Observe(time.Since(start).Seconds())
}
