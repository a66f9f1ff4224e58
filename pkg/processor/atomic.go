package processor

import (
	"context"

	"github.com/valence-labs/corechain/pkg/domain"
)

// executeAtomicEntry is the only call site permitted to invoke
// Executor.ExecuteAtomic, gated by selfToken (spec.md §4.2a: atomic dispatch
// must originate from the processor's own tick loop, never a direct
// external call).
func (e *Engine) executeAtomicEntry(caller string, ctx context.Context, sub domain.Subroutine, messages [][]byte) error {
	if caller != selfToken {
		return domain.ErrNotProcessor
	}
	return e.executor.ExecuteAtomic(ctx, sub, messages)
}

func (e *Engine) tickAtomic(ctx context.Context, batch *domain.MessageBatch) (TickEvent, error) {
	err := e.executeAtomicEntry(selfToken, ctx, batch.Subroutine, batch.Messages)
	ev := TickEvent{Action: ActionExecuteAtomic, BatchId: batch.Id, ExecutionId: batch.ExecutionId, Priority: batch.Priority}

	if err == nil {
		e.metrics.observe(ActionExecuteAtomic)
		return ev, e.report(ctx, batch, domain.Success())
	}

	retryLogic := batch.Subroutine.AtomicRetryLogic
	attempt := batch.Retry.Attempt + 1
	if retryLogic != nil && !retryLogic.Exhausted(attempt) {
		nowHeight, nowTime := e.cctx.Clock.Height(), e.cctx.Clock.Now()
		height, at, useHeight := retryLogic.NextEligible(nowHeight, nowTime)
		batch.Retry = domain.RetryState{
			Attempt:               attempt,
			HasNextEligible:       true,
			NextEligibleUseHeight: useHeight,
			NextEligibleHeight:    height,
			NextEligibleTime:      at,
		}
		e.mu.Lock()
		e.pushBack(batch)
		e.reportInFlightLocked()
		e.mu.Unlock()
		e.metrics.observe(ActionPushedBack)
		ev.Action = ActionPushedBack
		return ev, nil
	}

	e.metrics.observe(ActionExecuteAtomic)
	return ev, e.report(ctx, batch, domain.Rejected(err.Error()))
}

// report forwards a terminal ExecutionResult to the sink, removing batch from
// e.pending if it was parked there.
func (e *Engine) report(ctx context.Context, batch *domain.MessageBatch, result domain.ExecutionResult) error {
	e.mu.Lock()
	delete(e.pending, batch.ExecutionId)
	e.reportInFlightLocked()
	e.mu.Unlock()

	if b := e.cctx.Log().Info(); b.Enabled() {
		b.Uint64("execution_id", uint64(batch.ExecutionId)).
			Str("label", batch.Label).
			Str("result", result.Kind.String()).
			Log("processor: reporting terminal result")
	}

	return e.sink.ProcessorCallback(ctx, batch.ExecutionId, batch.Label, result)
}
