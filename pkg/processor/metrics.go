package processor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/valence-labs/corechain/pkg/chainctx"
)

// engineMetrics is additive ambient instrumentation (SPEC_FULL.md §7): it
// never gates or alters dispatch behaviour, and is a no-op when the Ctx
// carries no registry.
type engineMetrics struct {
	ticks      *prometheus.CounterVec
	inFlight   prometheus.Gauge
}

func newEngineMetrics(cctx chainctx.Ctx) *engineMetrics {
	if cctx.Metrics == nil {
		return &engineMetrics{}
	}
	m := &engineMetrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corechain_processor_ticks_total",
			Help: "Total processor ticks, labeled by the action taken.",
		}, []string{"action"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corechain_processor_batches_in_flight",
			Help: "Batches queued or parked awaiting a callback, for this domain's processor.",
		}),
	}
	cctx.Metrics.MustRegister(m.ticks, m.inFlight)
	return m
}

func (m *engineMetrics) observe(action Action) {
	if m == nil || m.ticks == nil {
		return
	}
	m.ticks.WithLabelValues(string(action)).Inc()
}

// setInFlight records the current total of queued + parked batches, called
// whenever Engine's queues/pending map change shape.
func (m *engineMetrics) setInFlight(n int) {
	if m == nil || m.inFlight == nil {
		return
	}
	m.inFlight.Set(float64(n))
}
