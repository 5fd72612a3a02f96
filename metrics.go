package snvindex

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instruments the Engine updates as it
// inserts sequences and serves reads, per spec.md §4.K. The HTTP
// exposition of these belongs to the external REST layer (cmd/snv-server
// wires them to promhttp); the core only produces the numbers.
type Metrics struct {
	registry *prometheus.Registry

	insertsTotal      *prometheus.CounterVec
	insertDuration    prometheus.Histogram
	edgesTotal        prometheus.Counter
	workingSetSize    prometheus.Gauge
	workingSetHits    prometheus.Counter
	workingSetMisses  prometheus.Counter
	clusterAdvances   *prometheus.CounterVec
}

// NewMetrics registers a fresh set of instruments on a private registry,
// so multiple Engines in the same process (as in tests) never collide on
// prometheus's default global registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		insertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snvindex_inserts_total",
			Help: "Total number of sequences inserted, by validity.",
		}, []string{"invalid"}),
		insertDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "snvindex_insert_duration_seconds",
			Help:    "Wall-clock time for a single Insert call, including pairwise comparison.",
			Buckets: prometheus.DefBuckets,
		}),
		edgesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snvindex_edges_total",
			Help: "Total number of edges recorded in the sparse matrix.",
		}),
		workingSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snvindex_working_set_size",
			Help: "Number of rehydrated sequences currently cached in RAM.",
		}),
		workingSetHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snvindex_working_set_hits_total",
			Help: "CompressedStore.Get calls served from the in-RAM working set.",
		}),
		workingSetMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snvindex_working_set_misses_total",
			Help: "CompressedStore.Get calls that rehydrated from PersistencePort.",
		}),
		clusterAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snvindex_cluster_change_id_advances_total",
			Help: "Number of times each clustering algorithm's change-id advanced.",
		}, []string{"algorithm"}),
	}
	reg.MustRegister(
		m.insertsTotal, m.insertDuration, m.edgesTotal,
		m.workingSetSize, m.workingSetHits, m.workingSetMisses,
		m.clusterAdvances,
	)
	return m
}

// Registry exposes the private registry for an external /metrics route.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeInsert(invalid bool) {
	label := "false"
	if invalid {
		label = "true"
	}
	m.insertsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) observeInsertDuration(seconds float64) {
	m.insertDuration.Observe(seconds)
}

func (m *Metrics) addEdges(n int) {
	m.edgesTotal.Add(float64(n))
}

func (m *Metrics) setWorkingSetSize(n int) {
	m.workingSetSize.Set(float64(n))
}

func (m *Metrics) observeWorkingSetHit()  { m.workingSetHits.Inc() }
func (m *Metrics) observeWorkingSetMiss() { m.workingSetMisses.Inc() }

func (m *Metrics) observeClusterAdvance(algorithm string) {
	m.clusterAdvances.WithLabelValues(algorithm).Inc()
}
