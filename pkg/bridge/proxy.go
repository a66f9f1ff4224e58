package bridge

import (
	"sync"

	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/domain"
)

// Proxy is one direction of one external domain's handshake state machine
// (spec.md §4.4):
//
//	PendingResponse --ack--> Created
//	       |
//	       +--timeout--> TimedOut --retry--> PendingResponse
//
// A program maintains two Proxy values per external domain: the
// authorization's proxy on the remote chain, and the remote processor's
// proxy back on main.
type Proxy struct {
	mu    sync.Mutex
	state domain.ProxyState
	err   string

	cctx    chainctx.Ctx
	metrics *bridgeMetrics
}

// NewProxy constructs a Proxy in its initial PendingResponse state, reporting
// to cctx's logger/metrics registry on every transition.
func NewProxy(cctx chainctx.Ctx) *Proxy {
	p := &Proxy{state: domain.ProxyPendingResponse, cctx: cctx, metrics: newBridgeMetrics(cctx)}
	p.metrics.setProxyState(p.state)
	return p
}

// State returns the proxy's current lifecycle state.
func (p *Proxy) State() domain.ProxyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Ack transitions PendingResponse -> Created. Any other starting state is a
// programming error in the caller (the adapter only ever acks a proxy it
// itself put into PendingResponse) and is reported via ExecutionError rather
// than silently ignored.
func (p *Proxy) Ack() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.ProxyPendingResponse {
		return domain.NewExecutionError(domain.CodeProxyNotCreated, "proxy acked while not in PendingResponse")
	}
	p.state = domain.ProxyCreated
	p.metrics.setProxyState(p.state)
	p.cctx.Log().Info().Str("state", p.state.String()).Log("bridge: proxy acked")
	return nil
}

// Timeout transitions PendingResponse -> TimedOut.
func (p *Proxy) Timeout() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.ProxyPendingResponse {
		return domain.NewExecutionError(domain.CodeProxyNotCreated, "proxy timed out while not in PendingResponse")
	}
	p.state = domain.ProxyTimedOut
	p.metrics.setProxyState(p.state)
	p.metrics.observeTimeout(true) // recoverable via retry_bridge_creation
	p.cctx.Log().Warning().Str("state", p.state.String()).Log("bridge: proxy creation timed out")
	return nil
}

// RetryCreation is retry_bridge_creation(): permissionless, valid only from
// TimedOut, transitioning back to PendingResponse.
func (p *Proxy) RetryCreation() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.ProxyTimedOut {
		return domain.ErrNotRetriable
	}
	p.state = domain.ProxyPendingResponse
	p.metrics.setProxyState(p.state)
	p.cctx.Log().Notice().Str("state", p.state.String()).Log("bridge: proxy creation retried")
	return nil
}

// RequireCreated returns a domain-specific error unless the proxy has
// reached Created, per "All contract operations that require a remote
// Created proxy fail with a domain-specific error until the state reaches
// Created."
func (p *Proxy) RequireCreated() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.ProxyCreated {
		return domain.NewBridgeError(domain.CodeProxyNotCreated, "remote proxy has not reached Created")
	}
	return nil
}
