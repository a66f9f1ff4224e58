package processor

import (
	"context"

	"github.com/valence-labs/corechain/pkg/domain"
)

func (e *Engine) tickNonAtomic(ctx context.Context, batch *domain.MessageBatch) (TickEvent, error) {
	i := batch.Cursor
	fn := batch.Subroutine.Functions[i]
	msg := batch.Messages[i]

	ev := TickEvent{Action: ActionExecuteNonAtomic, BatchId: batch.Id, ExecutionId: batch.ExecutionId, Priority: batch.Priority}

	err := e.executor.ExecuteFunction(ctx, fn, msg)
	if err != nil {
		return e.nonAtomicFailure(ctx, batch, fn, ev, err)
	}

	if fn.CallbackConfirmation != nil {
		e.mu.Lock()
		batch.PendingCallback = &domain.PendingCallback{
			ExpectedBytes:   fn.CallbackConfirmation.ExpectedBytes,
			ExpectedAddress: fn.ContractAddress,
			FnIndex:         i,
		}
		e.pending[batch.ExecutionId] = batch
		e.reportInFlightLocked()
		e.mu.Unlock()
		e.metrics.observe(ActionParkedForCallback)
		ev.Action = ActionParkedForCallback
		return ev, nil
	}

	return e.advanceCursor(ctx, batch, ev)
}

// advanceCursor moves batch past its just-completed function (success path,
// whether executed directly or confirmed via a parked callback), resetting
// retry state for the next function and either closing out the batch with
// Success or pushing it to the back of its queue for the next tick.
func (e *Engine) advanceCursor(ctx context.Context, batch *domain.MessageBatch, ev TickEvent) (TickEvent, error) {
	batch.Cursor++
	batch.Retry = domain.RetryState{}
	batch.PendingCallback = nil

	if batch.Cursor >= len(batch.Subroutine.Functions) {
		e.metrics.observe(ActionDone)
		return ev, e.report(ctx, batch, domain.Success())
	}

	e.mu.Lock()
	delete(e.pending, batch.ExecutionId)
	e.pushBack(batch)
	e.reportInFlightLocked()
	e.mu.Unlock()
	e.metrics.observe(ActionExecuteNonAtomic)
	return ev, nil
}

// nonAtomicFailure applies fn's per-function retry_logic to a failed
// attempt (whether from direct execution or a mismatched parked callback),
// either scheduling a retry-shift or terminating the batch.
func (e *Engine) nonAtomicFailure(ctx context.Context, batch *domain.MessageBatch, fn domain.Function, ev TickEvent, cause error) (TickEvent, error) {
	retryLogic := fn.RetryLogic
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
		batch.PendingCallback = nil
		e.mu.Lock()
		delete(e.pending, batch.ExecutionId)
		e.pushBack(batch)
		e.reportInFlightLocked()
		e.mu.Unlock()
		e.metrics.observe(ActionPushedBack)
		ev.Action = ActionPushedBack
		e.cctx.Log().Debug().Uint64("execution_id", uint64(batch.ExecutionId)).Int("attempt", attempt).Err(cause).Log("processor: non-atomic function failed, scheduled retry")
		return ev, nil
	}

	e.metrics.observe(ActionExecuteNonAtomic)
	if batch.Cursor > 0 {
		return ev, e.report(ctx, batch, domain.PartiallyExecuted(uint32(batch.Cursor), cause.Error()))
	}
	return ev, e.report(ctx, batch, domain.Rejected(cause.Error()))
}
