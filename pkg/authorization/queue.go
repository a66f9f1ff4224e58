package authorization

import (
	"context"
	"fmt"

	"github.com/valence-labs/corechain/pkg/domain"
)

// QueueAdmin is the owner-bypass surface a QueueRouter may additionally
// implement, letting insert_msgs/evict_msgs splice a processor's queues
// directly, above max_concurrent_executions (spec.md §4.3). A router that
// only implements QueueRouter (e.g. a remote domain fronted purely by the
// bridge, with no local admin path) simply doesn't support these calls.
type QueueAdmin interface {
	InsertMsgs(priority domain.Priority, position int, batch domain.MessageBatch) (domain.BatchId, error)
	EvictMsgs(ctx context.Context, priority domain.Priority, position int) (domain.ExecutionId, error)
}

// InsertMsgs splices messages into label's target processor's queue at
// position within priority, bypassing the concurrency gate and message
// validation that send_msgs applies (owner/sub-owner only).
func (m *Manager) InsertMsgs(ctx context.Context, caller, label string, priority domain.Priority, position int, messages [][]byte) (domain.BatchId, error) {
	m.mu.Lock()
	if !m.isOwnerOrSubOwner(caller) {
		m.mu.Unlock()
		return 0, domain.NewPolicyError(domain.CodeNotOwner, "only the owner or a sub-owner may insert_msgs")
	}
	a, ok := m.auths[label]
	if !ok {
		m.mu.Unlock()
		return 0, domain.NewPolicyError(domain.CodeDoesNotExist, label)
	}
	router, ok := m.routers[a.Subroutine.Domain()]
	if !ok {
		m.mu.Unlock()
		return 0, domain.ErrDomainNotRegistered
	}
	admin, ok := router.(QueueAdmin)
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("authorization: domain %s's router does not support insert_msgs", a.Subroutine.Domain())
	}

	nowHeight, nowTime := m.cctx.Clock.Height(), m.cctx.Clock.Now()
	execId := domain.ExecutionId(m.execId.Next())
	a.InFlight++
	m.callbacks[execId] = &domain.ProcessorCallbackInfo{
		ExecutionId:     execId,
		Label:           label,
		Messages:        messages,
		ExecutionResult: domain.Pending(),
	}
	sub := a.Subroutine
	m.mu.Unlock()

	batchId, err := admin.InsertMsgs(priority, position, domain.MessageBatch{
		ExecutionId:      execId,
		Subroutine:       sub,
		Messages:         messages,
		Priority:         priority,
		Label:            label,
		EnqueuedAtHeight: nowHeight,
		EnqueuedAtTime:   nowTime,
	})
	if err != nil {
		m.mu.Lock()
		delete(m.callbacks, execId)
		a.InFlight--
		m.mu.Unlock()
		return 0, err
	}
	return batchId, nil
}

// EvictMsgs removes the batch at position within priority's queue on dom,
// reporting RemovedByOwner back through ProcessorCallback (owner/sub-owner
// only).
func (m *Manager) EvictMsgs(ctx context.Context, caller string, dom domain.Domain, priority domain.Priority, position int) (domain.ExecutionId, error) {
	m.mu.Lock()
	if !m.isOwnerOrSubOwner(caller) {
		m.mu.Unlock()
		return 0, domain.NewPolicyError(domain.CodeNotOwner, "only the owner or a sub-owner may evict_msgs")
	}
	router, ok := m.routers[dom]
	if !ok {
		m.mu.Unlock()
		return 0, domain.ErrDomainNotRegistered
	}
	admin, ok := router.(QueueAdmin)
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("authorization: domain %s's router does not support evict_msgs", dom)
	}
	m.mu.Unlock()

	return admin.EvictMsgs(ctx, priority, position)
}
