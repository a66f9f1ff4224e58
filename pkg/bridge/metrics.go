package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/domain"
)

// bridgeMetrics is additive ambient instrumentation (SPEC_FULL.md §7): it
// never gates or alters handshake/correlation behaviour, and is a no-op when
// the Ctx carries no registry, mirroring pkg/processor's engineMetrics.
type bridgeMetrics struct {
	timeouts   *prometheus.CounterVec
	proxyState *prometheus.GaugeVec
}

func newBridgeMetrics(cctx chainctx.Ctx) *bridgeMetrics {
	if cctx.Metrics == nil {
		return &bridgeMetrics{}
	}
	m := &bridgeMetrics{
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corechain_bridge_timeouts_total",
			Help: "Bridge correlation timeouts, labeled by whether the timeout was retriable.",
		}, []string{"retriable"}),
		proxyState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corechain_bridge_proxy_state",
			Help: "Current state of a bridge proxy (1 for the active state, 0 otherwise), labeled by state name.",
		}, []string{"state"}),
	}
	cctx.Metrics.MustRegister(m.timeouts, m.proxyState)
	return m
}

func (m *bridgeMetrics) observeTimeout(retriable bool) {
	if m == nil || m.timeouts == nil {
		return
	}
	label := "false"
	if retriable {
		label = "true"
	}
	m.timeouts.WithLabelValues(label).Inc()
}

// proxyStateNames enumerates every domain.ProxyState for gauge bookkeeping:
// setProxyState zeroes every other state's series so exactly one reads 1.
var proxyStateNames = map[domain.ProxyState]string{
	domain.ProxyPendingResponse: "pending_response",
	domain.ProxyCreated:         "created",
	domain.ProxyTimedOut:        "timed_out",
	domain.ProxyUnexpectedError: "unexpected_error",
}

func (m *bridgeMetrics) setProxyState(state domain.ProxyState) {
	if m == nil || m.proxyState == nil {
		return
	}
	for s, name := range proxyStateNames {
		v := 0.0
		if s == state {
			v = 1
		}
		m.proxyState.WithLabelValues(name).Set(v)
	}
}
