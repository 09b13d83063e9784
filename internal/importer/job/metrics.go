package job

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes a running job's progress counters as Prometheus gauges
// (spec.md §4.9 "progress"), the same shape of instrumentation
// cuemby-warren and mdzesseis-log_capturer_go expose for their own
// long-running pipelines. Each Job gets its own private registry rather
// than registering against prometheus.DefaultRegisterer, so multiple
// jobs (e.g. import then reindex) can run in the same process without a
// duplicate-registration panic.
type Metrics struct {
	Processed prometheus.Gauge
	Total     prometheus.Gauge
	Skipped   prometheus.Gauge
	WeightIn  prometheus.Gauge
	WeightOut prometheus.Gauge

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	m := &Metrics{
		Processed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obacore", Subsystem: "import", Name: "entries_processed",
			Help: "Entries whose id2entry and index writes have committed.",
		}),
		Total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obacore", Subsystem: "import", Name: "entries_total",
			Help: "Total entry IDs assigned to this job's ID range.",
		}),
		Skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obacore", Subsystem: "import", Name: "entries_skipped",
			Help: "Entries skipped by the producer or foreman (schema violation, duplicate DN, oversize, unresolved parent).",
		}),
		WeightIn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obacore", Subsystem: "import", Name: "queue_weight_in_bytes",
			Help: "Cumulative byte weight enqueued to the write queue.",
		}),
		WeightOut: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obacore", Subsystem: "import", Name: "queue_weight_out_bytes",
			Help: "Cumulative byte weight drained and applied by the writer.",
		}),
	}
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.Processed, m.Total, m.Skipped, m.WeightIn, m.WeightOut)
	return m
}

// Registry returns the job's private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
