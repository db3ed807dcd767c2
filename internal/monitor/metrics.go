package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the Prometheus series the coordinator (and, for
// DispatchTotal, the RPC dispatcher) emits. It is additive to, not a
// replacement for, the required tab-separated statistics line (spec §6);
// mirrors the teacher's package-level collector style
// (internal/metrics/metrics.go) but scoped as a struct so multiple
// Coordinators in the same process (e.g. in tests) don't collide on
// registration.
type Metrics struct {
	PeersByState     *prometheus.GaugeVec
	SupportersActive prometheus.Gauge
	TickDuration     prometheus.Histogram
	DispatchTotal    *prometheus.CounterVec
	AssignmentsTotal prometheus.Counter
}

// NewMetrics constructs and registers a Metrics set against reg. Pass a
// fresh prometheus.Registry in tests to avoid duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PeersByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "supporter_monitor_peers",
			Help: "Number of monitored peers, by classification state.",
		}, []string{"state"}),
		SupportersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supporter_monitor_supporters_active",
			Help: "Number of supporters with a non-empty roster.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "supporter_monitor_tick_duration_seconds",
			Help:    "Wall-clock duration of a single coordinator tick.",
			Buckets: prometheus.DefBuckets,
		}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "supporter_monitor_dispatch_total",
			Help: "Supporter RPC attempts (liveness pings and peer-list pushes), by result.",
		}, []string{"result"}),
		AssignmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "supporter_monitor_assignments_total",
			Help: "Peer-to-supporter assignments made across all ticks.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PeersByState, m.SupportersActive, m.TickDuration, m.DispatchTotal, m.AssignmentsTotal)
	}
	return m
}
