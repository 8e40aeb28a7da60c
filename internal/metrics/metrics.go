// Package metrics counts indexing outcomes and answer calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portfolio_rag"

// Recorder holds the collectors of one process. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	ensureOutcomes *prometheus.CounterVec
	ensureFailures *prometheus.CounterVec
	buildDuration  *prometheus.HistogramVec
	indexedDocs    prometheus.Gauge
	asks           *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ensureOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ensure_outcomes_total",
				Help:      "Index ensure calls by outcome (empty, reused, rebuilt, merged).",
			},
			[]string{"outcome"},
		),
		ensureFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ensure_failures_total",
				Help:      "Failed index ensure calls by error code.",
			},
			[]string{"code"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_build_seconds",
				Help:      "Time spent embedding and persisting documents.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		indexedDocs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_documents",
			Help:      "Documents in the current index.",
		}),
		asks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asks_total",
				Help:      "Answer requests by result (ok, not_ready, failed).",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(r.ensureOutcomes, r.ensureFailures, r.buildDuration, r.indexedDocs, r.asks)
	}
	return r
}

func (r *Recorder) EnsureOutcome(outcome string, documents int) {
	if r == nil {
		return
	}
	r.ensureOutcomes.WithLabelValues(outcome).Inc()
	r.indexedDocs.Set(float64(documents))
}

func (r *Recorder) EnsureFailure(code string) {
	if r == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	r.ensureFailures.WithLabelValues(code).Inc()
}

func (r *Recorder) BuildDuration(kind string, d time.Duration) {
	if r == nil {
		return
	}
	r.buildDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (r *Recorder) Ask(result string) {
	if r == nil {
		return
	}
	r.asks.WithLabelValues(result).Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
