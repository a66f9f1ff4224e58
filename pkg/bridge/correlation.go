package bridge

import (
	"sync"

	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/domain"
)

// CorrelationState tags a dispatched send_msgs invocation's bridge-facing
// lifecycle, distinct from the MessageBatch's own ExecutionResult: Pending
// while awaiting an ack, Timeout once the per-channel deadline has fired
// without one.
type CorrelationState uint8

const (
	CorrelationPending CorrelationState = iota
	CorrelationTimeout
)

// Correlation tracks one dispatched batch's bridge-facing state across a
// timeout/retry cycle (spec.md §4.4 "Retry").
type Correlation struct {
	mu          sync.Mutex
	executionId domain.ExecutionId
	ttl         domain.TTL
	state       CorrelationState

	cctx    chainctx.Ctx
	metrics *bridgeMetrics
}

// NewCorrelation constructs a Correlation in the Pending state for a batch
// dispatched with the given TTL policy, reporting timeouts to cctx's
// logger/metrics registry.
func NewCorrelation(cctx chainctx.Ctx, executionId domain.ExecutionId, ttl domain.TTL) *Correlation {
	return &Correlation{executionId: executionId, ttl: ttl, state: CorrelationPending, cctx: cctx, metrics: newBridgeMetrics(cctx)}
}

// State returns the correlation's current state.
func (c *Correlation) State() CorrelationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Timeout transitions Pending -> Timeout and classifies the terminal (or
// semi-terminal) ExecutionResult per spec.md's TTL matrix:
//
//   - Absent TTL         -> Timeout(retriable=false); token returned.
//   - Never              -> Timeout(retriable=true); token stays escrowed.
//   - AtTime/AtHeight     -> Timeout(retriable=true) iff now < TTL, else
//     Timeout(retriable=false).
//
// Calling Timeout when not Pending is a no-op returning the zero
// ExecutionResult and false, so callers can detect "already timed out" and
// skip re-reporting.
func (c *Correlation) Timeout(nowTime, nowHeight uint64) (domain.ExecutionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CorrelationPending {
		return domain.ExecutionResult{}, false
	}
	c.state = CorrelationTimeout

	var retriable bool
	switch c.ttl.Kind {
	case domain.TTLNone:
		retriable = false
	case domain.TTLNever:
		retriable = true
	case domain.TTLAtTime, domain.TTLAtHeight:
		retriable = !c.ttl.Expired(nowTime, nowHeight)
	}

	c.metrics.observeTimeout(retriable)
	c.cctx.Log().Warning().Uint64("execution_id", uint64(c.executionId)).Bool("retriable", retriable).Log("bridge: correlation timed out")

	return domain.Timeout(retriable), true
}

// Retry is retry_msgs(execution_id): valid only from Timeout, transitioning
// back to Pending. Any other starting state fails NotRetriable.
func (c *Correlation) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CorrelationTimeout {
		return domain.ErrNotRetriable
	}
	c.state = CorrelationPending
	return nil
}
