package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/valence-labs/corechain/pkg/domain"
)

// PendingCall is the handle returned by Transport.Dispatch: the caller awaits
// it for at most one acknowledgement, exactly mirroring the abstract
// contract from spec.md §4.4 ("send an opaque message blob ... receive at
// most one acknowledgement").
type PendingCall struct {
	executionId domain.ExecutionId
	payload     []byte
	done        chan struct{}

	mu  sync.Mutex
	ack []byte
}

// Payload returns the dispatched blob, for transports that need to replay it
// (retry_msgs resubmits the same payload).
func (c *PendingCall) Payload() []byte { return c.payload }

// Wait blocks until either an acknowledgement is delivered or ctx is
// cancelled, whichever comes first. A cancelled context surfaces as a
// BridgeError rather than ctx.Err() directly, since every caller in this
// module ultimately wants a domain error it can match on.
func (c *PendingCall) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.ack, nil
	case <-ctx.Done():
		return nil, domain.NewBridgeError(domain.CodeNotRetriable, fmt.Sprintf("await cancelled for execution %d: %v", c.executionId, ctx.Err()))
	}
}

// Transport is the correlated send/ack primitive underlying one logical
// bridge channel (manager->proxy or processor->proxy). It is single-writer
// safe for concurrent Dispatch/Deliver calls from independent goroutines
// (the cross-domain delivery path and the local dispatch path are
// necessarily different call sites).
type Transport struct {
	mu      sync.Mutex
	pending map[domain.ExecutionId]*PendingCall
}

// NewTransport constructs an empty Transport.
func NewTransport() *Transport {
	return &Transport{pending: map[domain.ExecutionId]*PendingCall{}}
}

// Dispatch registers a new pending call for executionId carrying payload,
// returning the handle to await the eventual (at most one) acknowledgement.
// Dispatching the same executionId twice without an intervening Deliver or
// Forget replaces the prior pending call, matching retry_msgs's "prior state
// transitions to Pending" resubmission semantics.
func (t *Transport) Dispatch(executionId domain.ExecutionId, payload []byte) *PendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	call := &PendingCall{executionId: executionId, payload: payload, done: make(chan struct{})}
	t.pending[executionId] = call
	return call
}

// Deliver completes the pending call for executionId with ack, if one is
// outstanding. Delivering to an executionId with no pending call (already
// acked, timed out, or never dispatched) is reported, not panicked, since a
// duplicate/late delivery is an expected cross-domain race (spec.md §4.4:
// "Deliveries on a single channel are not ordered").
func (t *Transport) Deliver(executionId domain.ExecutionId, ack []byte) error {
	t.mu.Lock()
	call, ok := t.pending[executionId]
	if ok {
		delete(t.pending, executionId)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("bridge: no pending call for execution %d", executionId)
	}

	call.mu.Lock()
	call.ack = ack
	call.mu.Unlock()
	close(call.done)
	return nil
}

// Forget removes executionId's pending call without delivering an
// acknowledgement, used when a timeout fires and the sender gives up
// awaiting (the caller separately classifies the ExecutionResult via
// Correlation.Timeout).
func (t *Transport) Forget(executionId domain.ExecutionId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, executionId)
}

// Pending reports whether executionId currently has an outstanding call.
func (t *Transport) Pending(executionId domain.ExecutionId) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[executionId]
	return ok
}
