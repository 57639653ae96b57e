package wikigraph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what the assembler does.  A nil *Metrics is fine and
// counts nothing.
type Metrics struct {
	chunks       *prometheus.CounterVec
	pages        *prometheus.CounterVec
	edges        prometheus.Counter
	unresolved   prometheus.Counter
	chunkSeconds *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg, if
// reg isn't nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikigraph",
			Name:      "chunks_total",
			Help:      "Dump blocks processed, by phase and outcome.",
		}, []string{"phase", "status"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikigraph",
			Name:      "pages_total",
			Help:      "Article pages parsed, by phase.",
		}, []string{"phase"}),
		edges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wikigraph",
			Name:      "edges_total",
			Help:      "Edges resolved against the node index.",
		}),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wikigraph",
			Name:      "unresolved_links_total",
			Help:      "Link references whose target is not an article.",
		}),
		chunkSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wikigraph",
			Name:      "chunk_seconds",
			Help:      "Time to decompress and parse one block.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(m.chunks, m.pages, m.edges, m.unresolved, m.chunkSeconds)
	}
	return m
}

func (m *Metrics) observe(phase Phase, res *ChunkResult, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if res.Err != nil {
		status = "failed"
	}
	m.chunks.WithLabelValues(phase.String(), status).Inc()
	m.pages.WithLabelValues(phase.String()).Add(float64(res.Pages))
	m.chunkSeconds.WithLabelValues(phase.String()).Observe(d.Seconds())
	if phase == PhaseEdges {
		m.edges.Add(float64(len(res.Edges)))
		m.unresolved.Add(float64(res.Unresolved))
	}
}
