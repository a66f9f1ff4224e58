package authorization

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/valence-labs/corechain/pkg/bridge"
	"github.com/valence-labs/corechain/pkg/domain"
)

// localEngine is the subset of *processor.Engine's surface LocalRouter
// needs, kept narrow to avoid a hard import-cycle-shaped dependency on the
// concrete type in tests that fake it out.
type localEngine interface {
	Enqueue(batch domain.MessageBatch) domain.BatchId
	InsertMsgs(priority domain.Priority, position int, batch domain.MessageBatch) (domain.BatchId, error)
	EvictMsgs(ctx context.Context, priority domain.Priority, position int) (domain.ExecutionId, error)
}

// LocalRouter routes a main-domain send_msgs directly into the program's
// main processor.Engine, and additionally supports the owner-bypass queue
// operations (it implements QueueAdmin).
type LocalRouter struct {
	engine localEngine
}

// NewLocalRouter wraps engine for registration against domain.MainDomain.
func NewLocalRouter(engine localEngine) *LocalRouter {
	return &LocalRouter{engine: engine}
}

func (r *LocalRouter) Route(ctx context.Context, dom domain.Domain, batch domain.MessageBatch) (domain.BatchId, error) {
	return r.engine.Enqueue(batch), nil
}

func (r *LocalRouter) InsertMsgs(priority domain.Priority, position int, batch domain.MessageBatch) (domain.BatchId, error) {
	return r.engine.InsertMsgs(priority, position, batch)
}

func (r *LocalRouter) EvictMsgs(ctx context.Context, priority domain.Priority, position int) (domain.ExecutionId, error) {
	return r.engine.EvictMsgs(ctx, priority, position)
}

// wireBatch is the gob-encoded form of the "Batch envelope (manager ->
// processor, cross-domain)" from spec.md §6.
type wireBatch struct {
	ExecutionId domain.ExecutionId
	Subroutine  domain.Subroutine
	Messages    [][]byte
	Priority    domain.Priority
}

// BridgeRouter routes an external-domain send_msgs across a bridge.Proxy /
// bridge.Transport pair: it requires the authorization-side proxy to have
// reached Created, then dispatches the gob-encoded batch envelope and
// returns without awaiting the remote engine's acknowledgement (spec.md §5:
// "the sender does not await a synchronous reply").
type BridgeRouter struct {
	proxy     *bridge.Proxy
	transport *bridge.Transport

	mu     sync.Mutex
	outbox []*bridge.PendingCall
}

// NewBridgeRouter binds a BridgeRouter to one external domain's
// authorization-side proxy and send transport.
func NewBridgeRouter(proxy *bridge.Proxy, transport *bridge.Transport) *BridgeRouter {
	return &BridgeRouter{proxy: proxy, transport: transport}
}

func (r *BridgeRouter) Route(ctx context.Context, dom domain.Domain, batch domain.MessageBatch) (domain.BatchId, error) {
	if err := r.proxy.RequireCreated(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	wb := wireBatch{ExecutionId: batch.ExecutionId, Subroutine: batch.Subroutine, Messages: batch.Messages, Priority: batch.Priority}
	if err := gob.NewEncoder(&buf).Encode(wb); err != nil {
		return 0, fmt.Errorf("authorization: encoding batch envelope for execution %d: %w", batch.ExecutionId, err)
	}

	call := r.transport.Dispatch(batch.ExecutionId, buf.Bytes())
	r.mu.Lock()
	r.outbox = append(r.outbox, call)
	r.mu.Unlock()
	return 0, nil
}

// DrainOutbox returns and clears every batch dispatched across the bridge
// since the last drain, for whatever simulates cross-domain delivery (in
// this module, the tests) to pick up and deliver into the remote engine.
func (r *BridgeRouter) DrainOutbox() []*bridge.PendingCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.outbox
	r.outbox = nil
	return out
}

// DecodeBatch reverses wireBatch's gob encoding, used by whatever drives
// delivery on the remote domain to reconstruct a domain.MessageBatch ready
// for Engine.Enqueue.
func DecodeBatch(payload []byte) (domain.MessageBatch, error) {
	var wb wireBatch
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&wb); err != nil {
		return domain.MessageBatch{}, fmt.Errorf("authorization: decoding batch envelope: %w", err)
	}
	return domain.MessageBatch{
		ExecutionId: wb.ExecutionId,
		Subroutine:  wb.Subroutine,
		Messages:    wb.Messages,
		Priority:    wb.Priority,
		Label:       "", // the remote engine does not need the label; callbacks reference it via execution_id round-trip
	}, nil
}
