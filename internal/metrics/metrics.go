package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by the resource client, the loader and
// the inventory editor. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	loads     *prometheus.CounterVec
	loadTime  prometheus.Histogram
	mutations *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelfinv",
			Name:      "resource_requests_total",
			Help:      "Requests made to the collection server by resource, method and outcome.",
		}, []string{"resource", "method", "outcome"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelfinv",
			Name:      "library_loads_total",
			Help:      "Four-collection loads by outcome.",
		}, []string{"outcome"}),
		loadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shelfinv",
			Name:      "library_load_seconds",
			Help:      "Duration of four-collection loads.",
			Buckets:   prometheus.DefBuckets,
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelfinv",
			Name:      "inventory_mutations_total",
			Help:      "Inventory mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(m.requests, m.loads, m.loadTime, m.mutations)
	return m
}

func (m *Metrics) Request(resource, method, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(resource, method, outcome).Inc()
}

func (m *Metrics) Load(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(outcome).Inc()
	m.loadTime.Observe(elapsed.Seconds())
}

func (m *Metrics) Mutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}
